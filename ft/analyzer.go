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

// Package ft builds and evaluates the per-predicate auxiliary state for
// full-text Matches predicates: analyzed query terms, posting lists
// fetched under the current transaction, and an optional BM25 scorer.
// The analyzer/filter/tokenizer pipeline is consumed through the
// Analyzer interface; the inverted index is the in-memory Index type,
// whose NewIndex/Put exist for tests and small standalone use only.
package ft

import (
	"context"
	"strings"
	"sync"

	"github.com/kljensen/snowball"
	"github.com/pingcap/errors"

	"github.com/ekjotsingh/idxexec/kv"
)

// AnalyzerError wraps a failure raised by an Analyzer while extracting
// terms from either the query or a record value.
type AnalyzerError struct {
	Input string
	Err   error
}

func (e *AnalyzerError) Error() string {
	return "ft: analyzer failed on " + truncate(e.Input) + ": " + e.Err.Error()
}

func (e *AnalyzerError) Unwrap() error { return e.Err }

func truncate(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}

// Analyzer turns raw text into an ordered list of normalized terms. It
// is the opaque collaborator named in SPEC_FULL.md §1 as consumed, not
// implemented, by the core; SnowballAnalyzer below is the default
// implementation this module ships for tests and standalone use.
type Analyzer interface {
	// Name identifies the analyzer configuration, used to key cached
	// FtIndex state.
	Name() string
	// Analyze tokenizes and normalizes text into an ordered term list.
	Analyze(text string) ([]string, error)
}

// SnowballAnalyzer lowercases, splits on whitespace/punctuation and
// stems each token with the Snowball algorithm for the given language.
// Grounded on the tokenizer+snowball pipeline in the fineweb
// fts_production driver (other_examples), which stems each token with
// github.com/kljensen/snowball and falls back to a lowercase token on
// stemmer error.
type SnowballAnalyzer struct {
	Language string
}

// NewSnowballAnalyzer returns an analyzer stemming with the given
// Snowball language (e.g. "english").
func NewSnowballAnalyzer(language string) *SnowballAnalyzer {
	if language == "" {
		language = "english"
	}
	return &SnowballAnalyzer{Language: language}
}

// Name implements Analyzer.
func (a *SnowballAnalyzer) Name() string {
	return "snowball:" + a.Language
}

// Analyze implements Analyzer.
func (a *SnowballAnalyzer) Analyze(text string) ([]string, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r == '_' || isAlnum(r))
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		lower := strings.ToLower(f)
		stemmed, err := snowball.Stem(lower, a.Language, false)
		if err != nil {
			terms = append(terms, lower)
			continue
		}
		terms = append(terms, stemmed)
	}
	return terms, nil
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// TermsList is the ordered list of analyzed query terms (duplicates
// preserved, in query order).
type TermsList []string

// TermsSet is the deduplicated set over a TermsList.
type TermsSet map[string]struct{}

// NewTermsSet deduplicates a TermsList into a TermsSet.
func NewTermsSet(terms TermsList) TermsSet {
	set := make(TermsSet, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	return set
}

// Subset reports whether every term in s is present in other.
func (s TermsSet) Subset(other TermsSet) bool {
	for t := range s {
		if _, ok := other[t]; !ok {
			return false
		}
	}
	return true
}

// PostingList is the set of DocIds containing one term, together with
// enough per-document statistics for BM25 scoring.
type PostingList struct {
	Term      string
	DocFreqs  map[kv.DocID]int // term frequency within each document
	TotalDocs int               // number of documents in the index (N)

	// version bumps on every Put that touches this term, so a cached
	// snapshot can be checked for staleness without re-hashing DocFreqs.
	version int
}

// Contains reports whether id appears in the posting list.
func (p *PostingList) Contains(id kv.DocID) bool {
	if p == nil {
		return false
	}
	_, ok := p.DocFreqs[id]
	return ok
}

// TermsDocs holds, for each query term position, the matched posting
// list or nil if the term is absent from the dictionary. Its length
// always equals len(TermsList), per SPEC_FULL.md §3's FtEntry invariant.
type TermsDocs []*PostingList

// ExtractQueryingTerms analyzes q and returns both the ordered term
// list and its deduplicated set.
func ExtractQueryingTerms(a Analyzer, q string) (TermsList, TermsSet, error) {
	terms, err := a.Analyze(q)
	if err != nil {
		return nil, nil, errors.Trace(&AnalyzerError{Input: q, Err: err})
	}
	return TermsList(terms), NewTermsSet(terms), nil
}

// Index is the full-text inverted index collaborator: term dictionary,
// posting lists, and positional-data routines for highlight/offsets.
// It is a concrete in-memory struct; the executor only reads it, and
// its NewIndex/Put (index.go) are the only way this module fills it.
type Index struct {
	Name          string
	Analyzer      Analyzer
	ScoringParams *BM25Params // nil if the index was defined without scoring

	// DocIds is the shared DocId<->Thing mapping for this index's table.
	DocIds kv.DocIds

	// terms is the term dictionary: term -> posting list. Guarded by mu,
	// along with the document-length bookkeeping used for BM25.
	mu        *sync.RWMutex
	terms     map[string]*PostingList
	docLens   map[kv.DocID]int
	totalDocs int
	totalLen  int

	// snapMu guards snapshots, the Snappy-compressed per-term posting
	// list cache GetTermsDocs reuses for repeated hot-term lookups.
	snapMu    sync.Mutex
	snapshots map[string]cachedSnapshot
}

// cachedSnapshot pairs a Snappy-encoded PostingList with the term
// version it was taken at, so a later Put invalidates it implicitly.
type cachedSnapshot struct {
	data    []byte
	version int
}

// GetTermsDocs resolves each query term's posting list under txn. A
// storage-suspending call per SPEC_FULL.md §4. Resolved posting lists
// are cached as Snappy snapshots keyed by term: a Matches predicate
// that repeatedly queries the same hot term still looks the term up in
// the live dictionary to check its version, and when the cached
// snapshot is current returns the decoded snapshot instead of the live
// posting list.
func (ix *Index) GetTermsDocs(ctx context.Context, txn kv.Transaction, terms TermsList) (TermsDocs, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(TermsDocs, len(terms))
	for i, t := range terms {
		pl := ix.terms[t]
		if pl == nil {
			continue
		}
		resolved, err := ix.snapshotTerm(t, pl)
		if err != nil {
			return nil, kv.WrapStorage("ft.GetTermsDocs", err)
		}
		out[i] = resolved
	}
	return out, nil
}

// snapshotTerm returns pl reconstructed from its cached Snappy
// snapshot when one is current, otherwise takes and caches a fresh
// snapshot before returning pl itself.
func (ix *Index) snapshotTerm(term string, pl *PostingList) (*PostingList, error) {
	ix.snapMu.Lock()
	defer ix.snapMu.Unlock()

	if cached, ok := ix.snapshots[term]; ok && cached.version == pl.version {
		return DecodePostingListSnapshot(cached.data)
	}
	ix.snapshots[term] = cachedSnapshot{data: EncodePostingListSnapshot(pl), version: pl.version}
	return pl, nil
}

// NewScorer builds a BM25Scorer over termsDocs iff the index was
// defined with scoring parameters; otherwise returns nil, matching
// SPEC_FULL.md §4.2's "Constructs a BM25Scorer iff...".
func (ix *Index) NewScorer(termsDocs TermsDocs) *BM25Scorer {
	if ix.ScoringParams == nil {
		return nil
	}
	return newBM25Scorer(ix.ScoringParams, termsDocs)
}
