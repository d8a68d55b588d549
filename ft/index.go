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
	"context"
	"strings"
	"sync"

	"github.com/ekjotsingh/idxexec/kv"
)

// NewIndex builds an in-memory Index handle over a pre-populated term
// dictionary and per-document length table. Index construction and
// maintenance (DDL, the row-level indexer) live outside this module;
// this constructor exists for the executor's own tests and for
// embedding a small standalone FT index in examples.
func NewIndex(name string, analyzer Analyzer, docIds kv.DocIds, scoring *BM25Params) *Index {
	return &Index{
		Name:          name,
		Analyzer:      analyzer,
		ScoringParams: scoring,
		DocIds:        docIds,
		mu:            &sync.RWMutex{},
		terms:         make(map[string]*PostingList),
		docLens:       make(map[kv.DocID]int),
		snapshots:     make(map[string]cachedSnapshot),
	}
}

// Put indexes one document's text under doc id id, updating posting
// lists and the document-length table used by BM25.
func (ix *Index) Put(id kv.DocID, text string) error {
	terms, err := ix.Analyzer.Analyze(text)
	if err != nil {
		return &AnalyzerError{Input: text, Err: err}
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	freqs := make(map[string]int, len(terms))
	for _, t := range terms {
		freqs[t]++
	}
	for t, f := range freqs {
		pl, ok := ix.terms[t]
		if !ok {
			pl = &PostingList{Term: t, DocFreqs: make(map[kv.DocID]int)}
			ix.terms[t] = pl
		}
		pl.DocFreqs[id] = f
		pl.version++
	}
	ix.docLens[id] = len(terms)
	ix.totalDocs++
	ix.totalLen += len(terms)
	for _, pl := range ix.terms {
		pl.TotalDocs = ix.totalDocs
		pl.version++
	}
	return nil
}

// AvgDocLen returns the mean document length across the index, used by
// the BM25 length-normalization term.
func (ix *Index) AvgDocLen() float64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.totalDocs == 0 {
		return 0
	}
	return float64(ix.totalLen) / float64(ix.totalDocs)
}

// DocLen returns the length, in analyzed terms, of document id.
func (ix *Index) DocLen(id kv.DocID) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.docLens[id]
}

// Highlight wraps every occurrence of an analyzed query term found in
// doc with prefix/suffix markers. When partial is true a query term
// need only be a prefix of a document token to match (the original
// SurrealDB executor's "partial" highlighting mode, see SPEC_FULL.md
// §3). Positional data beyond "does this token match" is outside this
// module's in-memory Index; a production FtIndex tracks per-term byte
// offsets and highlights those spans directly.
func (ix *Index) Highlight(ctx context.Context, thg kv.Thing, terms TermsList, prefix, suffix string, partial bool, doc string) (string, error) {
	fields := strings.Fields(doc)
	set := NewTermsSet(terms)
	for i, f := range fields {
		tok, err := ix.Analyzer.Analyze(f)
		if err != nil || len(tok) == 0 {
			continue
		}
		if matchesAny(set, tok[0], partial) {
			fields[i] = prefix + f + suffix
		}
	}
	return strings.Join(fields, " "), nil
}

func matchesAny(set TermsSet, tok string, partial bool) bool {
	if !partial {
		_, ok := set[tok]
		return ok
	}
	for t := range set {
		if strings.HasPrefix(tok, t) {
			return true
		}
	}
	return false
}

// Offset is a single term match's position within a document.
type Offset struct {
	Term  string
	Start int
	End   int
}

// ExtractOffsets returns, for a document's raw text, the term offsets
// of every analyzed query term found in it.
func (ix *Index) ExtractOffsets(ctx context.Context, thg kv.Thing, terms TermsList, partial bool, doc string) ([]Offset, error) {
	set := NewTermsSet(terms)
	var out []Offset
	pos := 0
	for _, f := range strings.Fields(doc) {
		start := strings.Index(doc[pos:], f) + pos
		end := start + len(f)
		pos = end
		tok, err := ix.Analyzer.Analyze(f)
		if err != nil || len(tok) == 0 {
			continue
		}
		if matchesAny(set, tok[0], partial) {
			out = append(out, Offset{Term: tok[0], Start: start, End: end})
		}
	}
	return out, nil
}
