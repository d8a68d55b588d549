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

// Package keycodec builds the opaque, collation-preserving storage keys
// the index iterators scan over: (namespace, database, table, index,
// encoded_value, record_id). Encoding is such that lexicographic byte
// order on the encoded key matches the indexed value's natural order,
// and a range bound's inclusivity is folded into the encoded
// start/end key by choosing the successor/predecessor key rather than
// carried as a runtime flag through the scan. Grounded on the
// tid/idx key-range construction in distsql/request_builder.go
// (TableRangesToKVRanges, encodeHandleKey) and kv.Key.{Next,PrefixNext}.
package keycodec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ekjotsingh/idxexec/kv"
)

// indexPrefix builds the shared key prefix for all entries of one index:
// (ns, db, table, index_name).
func indexPrefix(ns, db, table, index string) []byte {
	buf := make([]byte, 0, len(ns)+len(db)+len(table)+len(index)+8)
	buf = appendSegment(buf, ns)
	buf = appendSegment(buf, db)
	buf = appendSegment(buf, table)
	buf = appendSegment(buf, index)
	return buf
}

// appendSegment appends a length-prefixed segment so that distinct
// (ns,db,table,index) tuples never alias across a segment boundary.
func appendSegment(buf []byte, s string) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

// EncodeValue encodes an indexed field value such that byte-lexicographic
// order matches the value's natural order ("collation-preserving").
// Supported kinds: string, []byte, bool, int, int64, uint64, float64 and
// float32; any other type (including int32, uint and uint32) is an
// error. Callers needing a custom collation should pre-transform the
// value before calling EncodeValue.
func EncodeValue(v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case string:
		return []byte(x), nil
	case []byte:
		return x, nil
	case bool:
		if x {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case int:
		return encodeInt64(int64(x)), nil
	case int64:
		return encodeInt64(x), nil
	case uint64:
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], x)
		return buf[:], nil
	case float64:
		return encodeFloat64(x), nil
	case float32:
		return encodeFloat64(float64(x)), nil
	default:
		return nil, fmt.Errorf("keycodec: unsupported value type %T", v)
	}
}

// encodeInt64 flips the sign bit so two's-complement ordering becomes
// unsigned-lexicographic ordering.
func encodeInt64(v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v)^(1<<63))
	return buf[:]
}

// encodeFloat64 maps IEEE754 bit patterns onto an order-preserving
// unsigned encoding: flip the sign bit for positives, flip all bits for
// negatives.
func encodeFloat64(f float64) []byte {
	bits := float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], bits)
	return buf[:]
}

func float64bits(f float64) uint64 {
	return math.Float64bits(f)
}

// IndexValueKey builds the full key for one (index, value) pair,
// excluding the trailing record id, i.e. the common prefix an equality
// scan ranges over.
func IndexValueKey(ns, db, table, index string, value interface{}) ([]byte, error) {
	enc, err := EncodeValue(value)
	if err != nil {
		return nil, err
	}
	buf := indexPrefix(ns, db, table, index)
	return appendSegment(buf, string(enc)), nil
}

// EqualityRange returns the [start, end) key range that scans exactly
// the entries for one indexed value, regardless of trailing record id.
func EqualityRange(ns, db, table, index string, value interface{}) (kv.KeyRange, error) {
	prefix, err := IndexValueKey(ns, db, table, index, value)
	if err != nil {
		return kv.KeyRange{}, err
	}
	return kv.KeyRange{StartKey: kv.Key(prefix), EndKey: kv.Key(prefix).PrefixNext()}, nil
}

// BoundRange returns the [start, end) key range for a Range operator's
// from/to bounds, folding each bound's inclusivity into the chosen
// successor/predecessor key rather than carrying an inclusive flag
// through the scan.
func BoundRange(ns, db, table, index string, fromVal interface{}, fromInclusive bool, to interface{}, toInclusive bool) (kv.KeyRange, error) {
	prefix := indexPrefix(ns, db, table, index)

	var startKey kv.Key
	if fromVal == nil {
		startKey = kv.Key(prefix)
	} else {
		enc, err := EncodeValue(fromVal)
		if err != nil {
			return kv.KeyRange{}, err
		}
		startKey = kv.Key(appendSegment(append([]byte{}, prefix...), string(enc)))
		if !fromInclusive {
			startKey = startKey.PrefixNext()
		}
	}

	var endKey kv.Key
	if to == nil {
		endKey = kv.Key(prefix).PrefixNext()
	} else {
		enc, err := EncodeValue(to)
		if err != nil {
			return kv.KeyRange{}, err
		}
		endKey = kv.Key(appendSegment(append([]byte{}, prefix...), string(enc)))
		if toInclusive {
			endKey = endKey.PrefixNext()
		}
	}

	return kv.KeyRange{StartKey: startKey, EndKey: endKey}, nil
}
