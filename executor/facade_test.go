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

	"github.com/ekjotsingh/idxexec/idxplan"
	"github.com/ekjotsingh/idxexec/kv"
)

// Scenario 4: full-text Matches + score.
func TestMatchesAndScore(t *testing.T) {
	ix, docIds := buildFtIndex(t)
	opener := newFakeOpener()
	opener.ix = ix
	opener.docIds = docIds

	def := idxplan.IndexDefinition{Name: "by_body", Table: "book", Kind: idxplan.FullText}
	opt := idxplan.IndexOption{Ref: 0, Op: idxplan.Operator{Kind: idxplan.OpMatches, Query: "quick brown", MatchRef: 1}}
	im := idxplan.IndexesMap{
		Definitions: []idxplan.IndexDefinition{def},
		Options:     []idxplan.ExpressionOption{{Expr: "e1", Opt: opt}},
	}

	b := NewBuilder(DefaultConfig("ns", "db"), "book", opener, nil)
	require.NoError(t, b.Build(context.Background(), nil, im, nil))
	qe := b.Finish()

	matching := kv.Thing{Table: "book", ID: int64(1)}
	nonMatching := kv.Thing{Table: "book", ID: int64(2)}

	ok, err := qe.Matches(context.Background(), nil, matching, "book", "e1", nil, nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = qe.Matches(context.Background(), nil, nonMatching, "book", "e1", nil, nil)
	require.NoError(t, err)
	require.False(t, ok)

	score, err := qe.Score(context.Background(), nil, 1, matching, nil)
	require.NoError(t, err)
	require.NotNil(t, score)
	require.Greater(t, *score, 0.0)

	noScore, err := qe.Score(context.Background(), nil, 1, nonMatching, nil)
	require.NoError(t, err)
	require.Nil(t, noScore)
}

// Scenario 5: duplicate MatchRef fails the build (see builder_test.go
// for the build-level assertion; this confirms Score surfaces
// NoIndexFoundForMatch for an unknown ref).
func TestScoreUnknownMatchRef(t *testing.T) {
	b := NewBuilder(DefaultConfig("ns", "db"), "book", newFakeOpener(), nil)
	qe := b.Finish()
	_, err := qe.Score(context.Background(), nil, 99, kv.Thing{}, nil)
	require.Error(t, err)
	_, ok := errors.Cause(err).(*NoIndexFoundForMatch)
	require.True(t, ok)
}

// Scenario 6: kNN top-k, two-phase discipline.
func TestKnnTwoPhase(t *testing.T) {
	points := map[string][]float32{
		"a": {1, 0, 0},
		"b": {0, 2, 0},
		"c": {0, 0, 3},
		"d": {0.5, 0, 0},
	}
	resolver := &fakeFieldResolver{vectors: map[string][]float32{}}
	for name, vec := range points {
		resolver.vectors[(kv.Thing{Table: "points", ID: name}).Key()] = vec
	}

	opener := newFakeOpener()
	b := NewBuilder(DefaultConfig("ns", "db"), "points", opener, resolver)
	knnExpr := idxplan.KnnExpression{Expr: "knn1", K: 2, Field: "vec", Vector: []float32{0, 0, 0}, Distance: idxplan.Euclidean}
	require.NoError(t, b.Build(context.Background(), nil, idxplan.IndexesMap{}, []idxplan.KnnExpression{knnExpr}))
	qe := b.Finish()

	require.True(t, qe.HasKnn())

	for name := range points {
		ok, err := qe.Knn(context.Background(), nil, kv.Thing{Table: "points", ID: name}, "knn1")
		require.NoError(t, err)
		require.True(t, ok)
	}

	sets := qe.BuildKnnSet()
	set := sets["knn1"]
	require.Len(t, set, 2)
	require.True(t, set.Contains(kv.Thing{Table: "points", ID: "d"}))
	require.True(t, set.Contains(kv.Thing{Table: "points", ID: "a"}))

	ok, err := qe.Knn(context.Background(), nil, kv.Thing{Table: "points", ID: "d"}, "knn1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = qe.Knn(context.Background(), nil, kv.Thing{Table: "points", ID: "b"}, "knn1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExplainEquality(t *testing.T) {
	opener := newFakeOpener()
	b := NewBuilder(DefaultConfig("ns", "db"), "person", opener, nil)
	def := idxplan.IndexDefinition{Name: "by_name", Table: "person", Kind: idxplan.Standard}
	opt := idxplan.IndexOption{Ref: 0, Op: idxplan.Operator{Kind: idxplan.OpEquality, Value: "a"}, Cost: 1.5}
	im := idxplan.IndexesMap{Definitions: []idxplan.IndexDefinition{def}}
	require.NoError(t, b.Build(context.Background(), nil, im, nil))
	ref := b.AddIterator(idxplan.IteratorEntry{Kind: idxplan.EntrySingle, Expr: "e1", Opt: opt})
	qe := b.Finish()

	row, ok := qe.Explain(ref, nil)
	require.True(t, ok)
	require.Equal(t, "by_name", row.Index)
	require.Equal(t, "equality", row.Operator)
	require.Equal(t, "a", row.Value)
	require.Equal(t, 1.5, row.Cost)
}

func TestExplainJoinUsesEachSubOptionsOwnIndex(t *testing.T) {
	opener := newFakeOpener()
	b := NewBuilder(DefaultConfig("ns", "db"), "book", opener, nil)
	outerDef := idxplan.IndexDefinition{Name: "by_tag", Table: "book", Kind: idxplan.Standard}
	innerDef := idxplan.IndexDefinition{Name: "by_author", Table: "book", Kind: idxplan.Standard}
	im := idxplan.IndexesMap{Definitions: []idxplan.IndexDefinition{outerDef, innerDef}}
	require.NoError(t, b.Build(context.Background(), nil, im, nil))

	opt := idxplan.IndexOption{
		Ref: 0,
		Op: idxplan.Operator{
			Kind: idxplan.OpJoin,
			Join: []idxplan.IndexOption{
				{Ref: 1, Op: idxplan.Operator{Kind: idxplan.OpEquality, Value: "scifi"}},
			},
		},
	}
	ref := b.AddIterator(idxplan.IteratorEntry{Kind: idxplan.EntrySingle, Expr: "e1", Opt: opt})
	qe := b.Finish()

	row, ok := qe.Explain(ref, nil)
	require.True(t, ok)
	require.Equal(t, "by_tag", row.Index)
	require.Equal(t, "join", row.Operator)
	require.Len(t, row.Join, 1)
	require.Equal(t, "by_author", row.Join[0].Index)
	require.Equal(t, "equality", row.Join[0].Operator)
}

func TestExplainUnknownRef(t *testing.T) {
	b := NewBuilder(DefaultConfig("ns", "db"), "person", newFakeOpener(), nil)
	qe := b.Finish()
	_, ok := qe.Explain(42, nil)
	require.False(t, ok)
}
