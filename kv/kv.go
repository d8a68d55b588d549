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

// Package kv defines the storage-facing interfaces the index executor is
// built against. Physical KV storage, transaction begin/commit and key
// encoding internals live outside this module; only the shapes consumed
// by the executor are declared here.
package kv

import (
	"bytes"
	"context"
	"fmt"
)

// Key represents a byte slice used as a storage key.
type Key []byte

// Cmp returns the comparison result of two keys.
func (k Key) Cmp(another Key) int {
	return bytes.Compare(k, another)
}

// Next returns the next key in byte-order.
func (k Key) Next() Key {
	buf := make([]byte, len(k)+1)
	copy(buf, k)
	return buf
}

// PrefixNext returns the next prefix key.
//
// Assume there are keys like:
//
//	rowkey1
//	rowkey1_column1
//	rowkey1_column2
//	rowkey2
//
// If we seek 'rowkey1' Next, we will get 'rowkey1_column1'.
// If we seek 'rowkey1' PrefixNext, we will get 'rowkey2'.
func (k Key) PrefixNext() Key {
	buf := make([]byte, len(k))
	copy(buf, k)
	var i int
	for i = len(buf) - 1; i >= 0; i-- {
		buf[i]++
		if buf[i] != 0 {
			break
		}
	}
	if i == -1 {
		copy(buf, k)
		buf = append(buf, 0) //nolint:makezero
	}
	return buf
}

// Clone returns a deep copy of the key.
func (k Key) Clone() Key {
	ck := make([]byte, len(k))
	copy(ck, k)
	return ck
}

// KeyRange represents a range of keys, inclusive of StartKey and exclusive
// of EndKey. Range-bound inclusivity is folded into the encoded keys
// themselves (see package keycodec) rather than carried as a runtime flag.
type KeyRange struct {
	StartKey Key
	EndKey   Key
}

// Pair is a decoded key/value entry read from storage.
type Pair struct {
	Key   Key
	Value []byte
}

// Retriever reads single values and scans key ranges. It is the minimal
// read surface the executor needs from a transaction snapshot.
type Retriever interface {
	// Get looks up the value for a single key.
	Get(ctx context.Context, k Key) ([]byte, error)
	// Iter returns an Iterator positioned at the first key >= k, stopping
	// before upperBound (or end-of-keyspace if upperBound is nil).
	Iter(k Key, upperBound Key) (Iterator, error)
}

// Iterator is a resumable cursor over an ordered key range. The suspension
// point is Next; dropping the iterator via Close releases any held
// read cursor.
type Iterator interface {
	Valid() bool
	Key() Key
	Value() []byte
	Next() error
	Close()
}

// Transaction is the storage handle the executor is built and driven
// against. A single storage call acquires the transaction's mutual
// exclusion for its duration only; it is never held across a suspension
// point beyond that one call.
type Transaction interface {
	Retriever
	// StartTS is the transaction's start timestamp, used for read
	// consistency and for stable ordering of writes that postdate a scan.
	StartTS() uint64
}

// DocIds is the per-index mapping between a record's Thing and its
// compact DocId handle, shared (read-mostly) state behind a
// reader-writer lock.
type DocIds interface {
	GetDocID(ctx context.Context, txn Transaction, thg Thing) (DocID, bool, error)
	GetThing(ctx context.Context, txn Transaction, id DocID) (Thing, bool, error)
}

// DocID is a compact integer handle for a record used inside full-text
// and vector index structures.
type DocID uint64

// Thing is a record identifier: (table, id). Opaque to the executor
// beyond equality and encoding to a storage key.
type Thing struct {
	Table string
	ID    interface{}
}

// Key encodes the Thing's identity for equality/map-key purposes. Thing.ID
// must be a comparable, string-formattable value (string, int64, etc.)
func (t Thing) Key() string {
	return t.Table + "\x00" + toKeyString(t.ID)
}

// ThingSet is a deduplicated set of Things, keyed by Thing.Key().
type ThingSet map[string]Thing

// Add inserts t into the set.
func (s ThingSet) Add(t Thing) { s[t.Key()] = t }

// Contains reports whether t is in the set.
func (s ThingSet) Contains(t Thing) bool {
	_, ok := s[t.Key()]
	return ok
}

func toKeyString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
