// Copyright 2025 Ekjot Singh
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package kv

import (
	"encoding/binary"
	"fmt"
)

// Index key values store the matching record's id as the key's value
// payload, decoded back into a Thing once the table is known from the
// IndexDefinition. Two id shapes are supported: string and int64,
// tagged by a leading type byte so the decoder never has to guess.
const (
	idTagString byte = 1
	idTagInt64  byte = 2
)

// EncodeThingID encodes a record id (string or int64) as an index
// value payload.
func EncodeThingID(id interface{}) ([]byte, error) {
	switch x := id.(type) {
	case string:
		buf := make([]byte, 1+len(x))
		buf[0] = idTagString
		copy(buf[1:], x)
		return buf, nil
	case int64:
		buf := make([]byte, 9)
		buf[0] = idTagInt64
		binary.BigEndian.PutUint64(buf[1:], uint64(x))
		return buf, nil
	case int:
		return EncodeThingID(int64(x))
	default:
		return nil, fmt.Errorf("kv: unsupported thing id type %T", id)
	}
}

// DecodeThingID decodes a value payload produced by EncodeThingID.
func DecodeThingID(buf []byte) (interface{}, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("kv: empty thing id payload")
	}
	switch buf[0] {
	case idTagString:
		return string(buf[1:]), nil
	case idTagInt64:
		if len(buf) != 9 {
			return nil, fmt.Errorf("kv: malformed int64 thing id payload")
		}
		return int64(binary.BigEndian.Uint64(buf[1:])), nil
	default:
		return nil, fmt.Errorf("kv: unknown thing id tag %d", buf[0])
	}
}

// DecodeThing decodes an index value payload into a Thing for table.
func DecodeThing(table string, value []byte) (Thing, error) {
	id, err := DecodeThingID(value)
	if err != nil {
		return Thing{}, err
	}
	return Thing{Table: table, ID: id}, nil
}
