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

package mtree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekjotsingh/idxexec/kv"
)

type fakeVectorIndex struct {
	res []kv.DocID
	err error
}

func (f *fakeVectorIndex) KnnSearch(ctx context.Context, txn kv.Transaction, vector []float32, k int) ([]kv.DocID, error) {
	return f.res, f.err
}

type fakeDocIds struct{ things map[kv.DocID]kv.Thing }

func (f *fakeDocIds) GetDocID(ctx context.Context, txn kv.Transaction, thg kv.Thing) (kv.DocID, bool, error) {
	for id, t := range f.things {
		if t.Key() == thg.Key() {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (f *fakeDocIds) GetThing(ctx context.Context, txn kv.Transaction, id kv.DocID) (kv.Thing, bool, error) {
	t, ok := f.things[id]
	return t, ok, nil
}

func TestNewEntryEagerSearch(t *testing.T) {
	tree := &fakeVectorIndex{res: []kv.DocID{3, 1}}
	docIds := &fakeDocIds{things: map[kv.DocID]kv.Thing{1: {Table: "p", ID: int64(1)}, 3: {Table: "p", ID: int64(3)}}}

	entry, err := NewEntry(context.Background(), nil, tree, docIds, []float32{0, 0, 0}, 2)
	require.NoError(t, err)
	require.Equal(t, []kv.DocID{3, 1}, entry.Res)
}

func TestNewEntryPropagatesSearchError(t *testing.T) {
	tree := &fakeVectorIndex{err: errBoom}
	_, err := NewEntry(context.Background(), nil, tree, &fakeDocIds{}, nil, 1)
	require.Error(t, err)
}

var errBoom = &boomErr{}

type boomErr struct{}

func (e *boomErr) Error() string { return "boom" }
