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

package ft

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekjotsingh/idxexec/kv"
)

func TestDefaultBM25ParamsUsesClassicConstants(t *testing.T) {
	params := DefaultBM25Params(func() float64 { return 10 }, func(kv.DocID) int { return 10 })
	require.Equal(t, 1.2, params.K1)
	require.Equal(t, 0.75, params.B)
}

func TestBM25ScorerRanksMoreFrequentDocHigher(t *testing.T) {
	docLens := map[kv.DocID]int{1: 10, 2: 10}
	avg := func() float64 { return 10 }
	docLen := func(id kv.DocID) int { return docLens[id] }
	params := DefaultBM25Params(avg, docLen)

	termsDocs := TermsDocs{
		{Term: "run", TotalDocs: 2, DocFreqs: map[kv.DocID]int{1: 1, 2: 5}},
	}
	scorer := newBM25Scorer(params, termsDocs)

	require.Greater(t, scorer.Score(2), scorer.Score(1))
}

func TestBM25ScorerZeroForNonMatchingDoc(t *testing.T) {
	avg := func() float64 { return 10 }
	docLen := func(kv.DocID) int { return 10 }
	params := DefaultBM25Params(avg, docLen)
	termsDocs := TermsDocs{
		{Term: "run", TotalDocs: 1, DocFreqs: map[kv.DocID]int{1: 2}},
	}
	scorer := newBM25Scorer(params, termsDocs)
	require.Zero(t, scorer.Score(99))
}

func TestBM25ScorerNilReturnsZero(t *testing.T) {
	var s *BM25Scorer
	require.Zero(t, s.Score(1))
}
