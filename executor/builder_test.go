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
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"

	"github.com/ekjotsingh/idxexec/ft"
	"github.com/ekjotsingh/idxexec/idxplan"
	"github.com/ekjotsingh/idxexec/kv"
	"github.com/ekjotsingh/idxexec/mtree"
)

// fakeOpener counts how many times each open method is invoked, so the
// at-most-once-construction invariant is directly observable from a
// test. The opener only sees the IndexDefinition, not its IndexRef, so
// every open is counted under key 0.
type fakeOpener struct {
	ftOpens  map[idxplan.IndexRef]int
	vecOpens map[idxplan.IndexRef]int
	ix       *ft.Index
	vix      mtree.VectorIndex
	docIds   kv.DocIds
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{ftOpens: map[idxplan.IndexRef]int{}, vecOpens: map[idxplan.IndexRef]int{}}
}

func (f *fakeOpener) OpenFullText(ctx context.Context, txn kv.Transaction, def idxplan.IndexDefinition) (*ft.Index, error) {
	f.ftOpens[0]++
	return f.ix, nil
}

func (f *fakeOpener) OpenVector(ctx context.Context, txn kv.Transaction, def idxplan.IndexDefinition) (mtree.VectorIndex, error) {
	f.vecOpens[0]++
	return f.vix, nil
}

func (f *fakeOpener) DocIds(def idxplan.IndexDefinition) kv.DocIds { return f.docIds }

type fakeFieldResolver struct {
	vectors map[string][]float32
}

func (f *fakeFieldResolver) VectorField(ctx context.Context, txn kv.Transaction, thg kv.Thing, field string) ([]float32, bool, error) {
	v, ok := f.vectors[thg.Key()]
	return v, ok, nil
}

func buildFtIndex(t *testing.T) (*ft.Index, *memDocIdsExec) {
	t.Helper()
	docIds := newMemDocIdsExec()
	var ix *ft.Index
	ix = ft.NewIndex("book", ft.NewSnowballAnalyzer("english"), docIds,
		ft.DefaultBM25Params(func() float64 { return ix.AvgDocLen() }, func(id kv.DocID) int { return ix.DocLen(id) }))
	require.NoError(t, ix.Put(1, "the quick brown fox"))
	require.NoError(t, ix.Put(2, "the quick silver car"))
	docIds.put(1, kv.Thing{Table: "book", ID: int64(1)})
	docIds.put(2, kv.Thing{Table: "book", ID: int64(2)})
	return ix, docIds
}

type memDocIdsExec struct {
	byThing map[string]kv.DocID
	byID    map[kv.DocID]kv.Thing
}

func newMemDocIdsExec() *memDocIdsExec {
	return &memDocIdsExec{byThing: map[string]kv.DocID{}, byID: map[kv.DocID]kv.Thing{}}
}

func (m *memDocIdsExec) put(id kv.DocID, thg kv.Thing) {
	m.byThing[thg.Key()] = id
	m.byID[id] = thg
}

func (m *memDocIdsExec) GetDocID(ctx context.Context, txn kv.Transaction, thg kv.Thing) (kv.DocID, bool, error) {
	id, ok := m.byThing[thg.Key()]
	return id, ok, nil
}

func (m *memDocIdsExec) GetThing(ctx context.Context, txn kv.Transaction, id kv.DocID) (kv.Thing, bool, error) {
	thg, ok := m.byID[id]
	return thg, ok, nil
}

func TestBuilderOpensFullTextBackendAtMostOnce(t *testing.T) {
	ix, docIds := buildFtIndex(t)
	opener := newFakeOpener()
	opener.ix = ix
	opener.docIds = docIds

	def := idxplan.IndexDefinition{Name: "by_body", Table: "book", Kind: idxplan.FullText}
	im := idxplan.IndexesMap{
		Definitions: []idxplan.IndexDefinition{def},
		Options: []idxplan.ExpressionOption{
			{Expr: "e1", Opt: idxplan.IndexOption{Ref: 0, Op: idxplan.Operator{Kind: idxplan.OpMatches, Query: "quick", MatchRef: idxplan.NoMatchRef}}},
			{Expr: "e2", Opt: idxplan.IndexOption{Ref: 0, Op: idxplan.Operator{Kind: idxplan.OpMatches, Query: "fox", MatchRef: idxplan.NoMatchRef}}},
		},
	}

	b := NewBuilder(DefaultConfig("ns", "db"), "book", opener, nil)
	require.NoError(t, b.Build(context.Background(), nil, im, nil))
	require.Equal(t, 1, opener.ftOpens[0])

	qe := b.Finish()
	require.True(t, qe.IsIteratorExpression("e1"))
	require.True(t, qe.IsIteratorExpression("e2"))
}

func TestBuilderDuplicateMatchRefFails(t *testing.T) {
	ix, docIds := buildFtIndex(t)
	opener := newFakeOpener()
	opener.ix = ix
	opener.docIds = docIds

	def := idxplan.IndexDefinition{Name: "by_body", Table: "book", Kind: idxplan.FullText}
	im := idxplan.IndexesMap{
		Definitions: []idxplan.IndexDefinition{def},
		Options: []idxplan.ExpressionOption{
			{Expr: "e1", Opt: idxplan.IndexOption{Ref: 0, Op: idxplan.Operator{Kind: idxplan.OpMatches, Query: "quick", MatchRef: 7}}},
			{Expr: "e2", Opt: idxplan.IndexOption{Ref: 0, Op: idxplan.Operator{Kind: idxplan.OpMatches, Query: "fox", MatchRef: 7}}},
		},
	}

	b := NewBuilder(DefaultConfig("ns", "db"), "book", opener, nil)
	err := b.Build(context.Background(), nil, im, nil)
	require.Error(t, err)

	dup, ok := errors.Cause(err).(*DuplicatedMatchRef)
	require.True(t, ok)
	require.Equal(t, idxplan.MatchRef(7), dup.Ref)
}
