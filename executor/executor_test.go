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

package executor

import (
	"context"
	"sort"

	"github.com/ekjotsingh/idxexec/kv"
)

// memStore is an in-memory kv.Transaction backing the iterator tests:
// a sorted slice of kv.Pair, scanned via a simple cursor. Grounded on
// the teacher's store/tikv/scan.go Scanner shape, minus the network
// round trips.
type memStore struct {
	pairs []kv.Pair
}

func newMemStore() *memStore { return &memStore{} }

func (m *memStore) put(key kv.Key, value []byte) {
	m.pairs = append(m.pairs, kv.Pair{Key: key.Clone(), Value: value})
	sort.Slice(m.pairs, func(i, j int) bool { return m.pairs[i].Key.Cmp(m.pairs[j].Key) < 0 })
}

func (m *memStore) Get(ctx context.Context, k kv.Key) ([]byte, error) {
	for _, p := range m.pairs {
		if p.Key.Cmp(k) == 0 {
			return p.Value, nil
		}
	}
	return nil, kv.ErrNotFound
}

func (m *memStore) Iter(k kv.Key, upperBound kv.Key) (kv.Iterator, error) {
	var out []kv.Pair
	for _, p := range m.pairs {
		if p.Key.Cmp(k) < 0 {
			continue
		}
		if upperBound != nil && p.Key.Cmp(upperBound) >= 0 {
			continue
		}
		out = append(out, p)
	}
	return &memIterator{pairs: out}, nil
}

func (m *memStore) StartTS() uint64 { return 1 }

type memIterator struct {
	pairs []kv.Pair
	idx   int
}

func (it *memIterator) Valid() bool    { return it.idx < len(it.pairs) }
func (it *memIterator) Key() kv.Key    { return it.pairs[it.idx].Key }
func (it *memIterator) Value() []byte  { return it.pairs[it.idx].Value }
func (it *memIterator) Next() error    { it.idx++; return nil }
func (it *memIterator) Close()         {}
