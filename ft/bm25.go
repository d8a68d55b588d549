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
	"math"

	"github.com/ekjotsingh/idxexec/kv"
)

// BM25Params configures the standard BM25 ranking function.
type BM25Params struct {
	K1      float64
	B       float64
	AvgDocLen func() float64
	DocLen    func(kv.DocID) int
}

// DefaultBM25Params returns the conventional k1=1.2, b=0.75 parameters,
// matching the constants used by the fineweb fts_production driver's
// WAND/BM25 search (other_examples).
func DefaultBM25Params(avgDocLen func() float64, docLen func(kv.DocID) int) *BM25Params {
	return &BM25Params{K1: 1.2, B: 0.75, AvgDocLen: avgDocLen, DocLen: docLen}
}

// BM25Scorer is a standard BM25 ranking function bound to one query's
// term statistics (its TermsDocs). Constructed once per Matches
// predicate that names a scoring-enabled index.
type BM25Scorer struct {
	params    *BM25Params
	termsDocs TermsDocs
}

func newBM25Scorer(params *BM25Params, termsDocs TermsDocs) *BM25Scorer {
	return &BM25Scorer{params: params, termsDocs: termsDocs}
}

// Score computes the BM25 score of document id against the scorer's
// query terms. Returns 0 if the document matches none of the query
// terms (callers distinguish "no match" via FtEntry/QueryExecutor
// rather than by score alone, per SPEC_FULL.md §4.4).
func (s *BM25Scorer) Score(id kv.DocID) float64 {
	if s == nil {
		return 0
	}
	avgDL := s.params.AvgDocLen()
	dl := float64(s.params.DocLen(id))
	var total float64
	for _, pl := range s.termsDocs {
		if pl == nil {
			continue
		}
		tf, ok := pl.DocFreqs[id]
		if !ok {
			continue
		}
		n := float64(pl.TotalDocs)
		df := float64(len(pl.DocFreqs))
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		tfF := float64(tf)
		norm := avgDL
		if norm == 0 {
			norm = dl
		}
		tfNorm := (tfF * (s.params.K1 + 1)) / (tfF + s.params.K1*(1-s.params.B+s.params.B*dl/maxf(norm, 1)))
		total += idf * tfNorm
	}
	return total
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
