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

	"github.com/opentracing/opentracing-go"

	"github.com/ekjotsingh/idxexec/idxplan"
	"github.com/ekjotsingh/idxexec/kv"
)

// Entry is the per-predicate derived state for one Matches operator:
// the analyzed query terms, the posting lists resolved under the
// current transaction, and an optional BM25 scorer. Defined only when
// the predicate's Operator.Kind is idxplan.OpMatches.
//
// Invariant: QuerySet is the deduplicated set over QueryTerms; Scorer
// is non-nil iff the index was defined with scoring enabled;
// len(TermsDocs) == len(QueryTerms).
type Entry struct {
	Option    idxplan.IndexOption
	Index     *Index
	QueryTerms TermsList
	QuerySet   TermsSet
	TermsDocs  TermsDocs
	Scorer     *BM25Scorer
}

// NewEntry analyzes the Matches query against ix's analyzer, resolves
// each term's posting list under txn, and builds a BM25 scorer iff ix
// was defined with scoring. Failure modes: analyzer error, storage
// error (SPEC_FULL.md §4.2).
func NewEntry(ctx context.Context, txn kv.Transaction, ix *Index, opt idxplan.IndexOption) (*Entry, error) {
	if span := opentracing.SpanFromContext(ctx); span != nil {
		child := span.Tracer().StartSpan("ft.NewEntry", opentracing.ChildOf(span.Context()))
		defer child.Finish()
	}

	terms, set, err := ExtractQueryingTerms(ix.Analyzer, opt.Op.Query)
	if err != nil {
		return nil, err
	}
	termsDocs, err := ix.GetTermsDocs(ctx, txn, terms)
	if err != nil {
		return nil, kv.WrapStorage("ft.GetTermsDocs", err)
	}
	scorer := ix.NewScorer(termsDocs)
	return &Entry{
		Option:     opt,
		Index:      ix,
		QueryTerms: terms,
		QuerySet:   set,
		TermsDocs:  termsDocs,
		Scorer:     scorer,
	}, nil
}

// MatchesDocID reports whether every query term's posting list
// contains id — the doc-id path of QueryExecutor.Matches.
func (e *Entry) MatchesDocID(id kv.DocID) bool {
	if len(e.QuerySet) == 0 {
		return false
	}
	for _, pl := range e.TermsDocs {
		if !pl.Contains(id) {
			return false
		}
	}
	return true
}

// MatchesValue re-analyzes value with the index's analyzer and reports
// whether the query terms set is a subset of the resulting terms set —
// the value-extraction path of QueryExecutor.Matches. An empty
// QuerySet is vacuously a subset of anything, so an empty query
// matches every value here; original_source's matches_with_value
// instead gates on is_matchable() and returns false for an empty
// query. Kept as pure subset: spec.md §4.4's value path is defined as
// subset, not subset-and-nonempty.
func (e *Entry) MatchesValue(value string) (bool, error) {
	terms, err := e.Index.Analyzer.Analyze(value)
	if err != nil {
		return false, &AnalyzerError{Input: value, Err: err}
	}
	return e.QuerySet.Subset(NewTermsSet(terms)), nil
}
