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
	"sync/atomic"

	"github.com/pingcap/errors"

	"github.com/ekjotsingh/idxexec/ft"
	"github.com/ekjotsingh/idxexec/idxplan"
	"github.com/ekjotsingh/idxexec/kv"
	"github.com/ekjotsingh/idxexec/mtree"
)

// Two-phase kNN iteration stage, set once per phase by the row-driver
// (SPEC_FULL.md §4.4/design notes). Implementers must set the stage
// atomically relative to row emission; this module stores it as an
// int32 flipped exactly once by BuildKnnSet.
const (
	stageBuildSet int32 = iota
	stageIterate
)

// innerExecutor is the frozen, shared state behind QueryExecutor. It is
// built once (single-threaded) and then read by many concurrent row
// tasks; the only state mutated after Finish is stage (atomic), the
// KnnPriorityLists (internally synchronized) until BuildKnnSet runs,
// and knnSets, which BuildKnnSet fills.
type innerExecutor struct {
	cfg   Config
	table string
	defs  []idxplan.IndexDefinition

	ftIndexes  map[idxplan.IndexRef]*ft.Index
	vecIndexes map[idxplan.IndexRef]mtree.VectorIndex

	ftEntries       map[idxplan.Expression]*ft.Entry
	matchRefEntries map[idxplan.MatchRef]*ft.Entry
	mtEntries       map[idxplan.Expression]*mtree.Entry

	knnLists map[idxplan.Expression]*mtree.KnnPriorityList
	knnMeta  map[idxplan.Expression]idxplan.KnnExpression
	knnSets  map[idxplan.Expression]kv.ThingSet

	exprOptions map[idxplan.Expression]idxplan.IndexOption
	entries     []idxplan.IteratorEntry

	fields FieldResolver

	stage int32
}

// QueryExecutor is the runtime façade handed to row iteration: cheap
// to clone (a plain struct copy of one pointer) into every concurrent
// row-processing task, matching kv.unionStore's trick of embedding a
// shared *BufferStore so copies share mutable state.
type QueryExecutor struct {
	inner *innerExecutor
}

// NewIterator looks up the IteratorEntry for ref and dispatches on
// index kind and operator. Any unsupported (index_kind, operator)
// combination returns (nil, nil) rather than an error, letting the row
// processor fall back to a full scan (SPEC_FULL.md §7 policy).
func (q QueryExecutor) NewIterator(ctx context.Context, ref idxplan.IteratorRef) (ThingIterator, error) {
	in := q.inner
	if ref < 0 || int(ref) >= len(in.entries) {
		return nil, nil
	}
	entry := in.entries[ref]
	switch entry.Kind {
	case idxplan.EntrySingle:
		return in.newIteratorForOption(ctx, entry.Expr, entry.Opt)
	case idxplan.EntryRange:
		def := in.defs[entry.Ref]
		if def.Kind != idxplan.Standard && def.Kind != idxplan.Unique {
			return nil, nil
		}
		return newRangeIterator(in.cfg.Namespace, in.cfg.Database, def.Table, def.Name, entry.From, entry.To, def.Kind == idxplan.Unique)
	default:
		return nil, nil
	}
}

func (in *innerExecutor) newIteratorForOption(ctx context.Context, expr idxplan.Expression, opt idxplan.IndexOption) (ThingIterator, error) {
	def := in.defs[opt.Ref]
	ns, db := in.cfg.Namespace, in.cfg.Database

	switch def.Kind {
	case idxplan.Standard, idxplan.Unique:
		unique := def.Kind == idxplan.Unique
		switch opt.Op.Kind {
		case idxplan.OpEquality:
			return newEqualIterator(ns, db, def.Table, def.Name, opt.Op.Value, unique)
		case idxplan.OpUnion:
			return newUnionIterator(ns, db, def.Table, def.Name, opt.Op.Values, unique)
		case idxplan.OpRange:
			return newRangeIterator(ns, db, def.Table, def.Name, opt.Op.From, opt.Op.To, unique)
		case idxplan.OpJoin:
			subs := make([]ThingIterator, 0, len(opt.Op.Join))
			for _, sub := range opt.Op.Join {
				subIt, err := in.newIteratorForOption(ctx, expr, sub)
				if err != nil {
					for _, s := range subs {
						s.Close()
					}
					return nil, err
				}
				if subIt == nil {
					for _, s := range subs {
						s.Close()
					}
					return nil, nil
				}
				subs = append(subs, subIt)
			}
			return newJoinIterator(ns, db, def.Table, def.Name, unique, subs), nil
		default:
			return nil, nil
		}
	case idxplan.FullText:
		if opt.Op.Kind != idxplan.OpMatches {
			return nil, nil
		}
		fe, ok := in.ftEntries[expr]
		if !ok {
			return nil, nil
		}
		return newMatchesIterator(fe), nil
	case idxplan.MTree, idxplan.Hnsw:
		if opt.Op.Kind != idxplan.OpKnn {
			return nil, nil
		}
		me, ok := in.mtEntries[expr]
		if !ok {
			return nil, nil
		}
		return newKnnIterator(me), nil
	default:
		return nil, nil
	}
}

// Matches evaluates a predicate with a registered full-text entry
// per-row, for the case where the index was chosen but the scan isn't
// itself driven by the Matches iterator. Two strategies per
// SPEC_FULL.md §4.4: the doc-id path when the predicate's indexed
// table equals the currently iterated table (currentTable), otherwise
// the value-extraction path over the non-indexed operand's raw value.
func (q QueryExecutor) Matches(ctx context.Context, txn kv.Transaction, thg kv.Thing, currentTable string, expr idxplan.Expression, left, right interface{}) (bool, error) {
	fe, ok := q.inner.ftEntries[expr]
	if !ok {
		return false, errors.Trace(&NoIndexFoundForMatch{Expr: expr})
	}
	def := q.inner.defs[fe.Option.Ref]
	if def.Table == currentTable {
		id, found, err := fe.Index.DocIds.GetDocID(ctx, txn, thg)
		if err != nil {
			return false, kv.WrapStorage("Matches.GetDocID", err)
		}
		if !found {
			return false, nil
		}
		return fe.MatchesDocID(id), nil
	}

	value := right
	if fe.Option.Pos == idxplan.Right {
		value = left
	}
	s, ok := value.(string)
	if !ok {
		return false, nil
	}
	return fe.MatchesValue(s)
}

// Highlight defers to the FT index's positional-data routine, keyed by
// matchRef.
func (q QueryExecutor) Highlight(ctx context.Context, txn kv.Transaction, thg kv.Thing, prefix, suffix string, matchRef idxplan.MatchRef, partial bool, doc string) (string, error) {
	fe, ok := q.inner.matchRefEntries[matchRef]
	if !ok {
		return "", errors.Trace(&NoIndexFoundForMatch{Expr: matchRef})
	}
	return fe.Index.Highlight(ctx, thg, fe.QueryTerms, prefix, suffix, partial, doc)
}

// Offsets defers to the FT index's positional-data routine, keyed by
// matchRef.
func (q QueryExecutor) Offsets(ctx context.Context, txn kv.Transaction, thg kv.Thing, matchRef idxplan.MatchRef, partial bool, doc string) ([]OffsetResult, error) {
	fe, ok := q.inner.matchRefEntries[matchRef]
	if !ok {
		return nil, errors.Trace(&NoIndexFoundForMatch{Expr: matchRef})
	}
	offs, err := fe.Index.ExtractOffsets(ctx, thg, fe.QueryTerms, partial, doc)
	if err != nil {
		return nil, err
	}
	out := make([]OffsetResult, len(offs))
	for i, o := range offs {
		out[i] = OffsetResult{Term: o.Term, Start: o.Start, End: o.End}
	}
	return out, nil
}

// OffsetResult is one term match's position within a document, the
// façade-level mirror of ft.Offset.
type OffsetResult struct {
	Term  string
	Start int
	End   int
}

// Score resolves rid's DocId if docID is nil, then delegates to the
// BM25Scorer registered for matchRef. Returns (nil, nil) when the
// index has no scoring enabled or the row does not match the query.
func (q QueryExecutor) Score(ctx context.Context, txn kv.Transaction, matchRef idxplan.MatchRef, rid kv.Thing, docID *kv.DocID) (*float64, error) {
	fe, ok := q.inner.matchRefEntries[matchRef]
	if !ok {
		return nil, errors.Trace(&NoIndexFoundForMatch{Expr: matchRef})
	}
	if fe.Scorer == nil {
		return nil, nil
	}
	id := docID
	if id == nil {
		got, found, err := fe.Index.DocIds.GetDocID(ctx, txn, rid)
		if err != nil {
			return nil, kv.WrapStorage("Score.GetDocID", err)
		}
		if !found {
			return nil, nil
		}
		id = &got
	}
	if !fe.MatchesDocID(*id) {
		return nil, nil
	}
	score := fe.Scorer.Score(*id)
	return &score, nil
}

// Knn implements the two-phase kNN discipline. During the build-set
// stage it computes thg's indexed field vector, computes its distance
// to the target vector, and inserts (distance, thg) into expr's
// KnnPriorityList, always returning true so row iteration proceeds.
// During the iterate stage it returns whether thg is in the pre-built
// top-k set for expr.
func (q QueryExecutor) Knn(ctx context.Context, txn kv.Transaction, thg kv.Thing, expr idxplan.Expression) (bool, error) {
	in := q.inner
	meta, ok := in.knnMeta[expr]
	if !ok {
		return false, nil
	}

	if atomic.LoadInt32(&in.stage) == stageBuildSet {
		vec, found, err := in.fields.VectorField(ctx, txn, thg, meta.Field)
		if err != nil {
			// A population failure on a single row must not abort the
			// scan (SPEC_FULL.md §7): the row is simply not added.
			return true, nil
		}
		if !found {
			return true, nil
		}
		dist, err := mtree.Distance(meta.Distance, vec, meta.Vector)
		if err != nil {
			return true, nil
		}
		in.knnLists[expr].Add(dist, thg)
		return true, nil
	}

	set, ok := in.knnSets[expr]
	if !ok {
		return false, nil
	}
	return set.Contains(thg), nil
}

// BuildKnnSet freezes each priority list into its top-k Thing set and
// flips the executor from the build-set stage to the iterate stage.
// Called exactly once, between the two scan passes.
func (q QueryExecutor) BuildKnnSet() map[idxplan.Expression]kv.ThingSet {
	in := q.inner
	out := make(map[idxplan.Expression]kv.ThingSet, len(in.knnLists))
	for expr, list := range in.knnLists {
		set := list.BuildSet()
		in.knnSets[expr] = set
		out[expr] = set
	}
	atomic.StoreInt32(&in.stage, stageIterate)
	return out
}

// IsIteratorExpression reports whether expr has a chosen access shape
// the executor can turn into a ThingIterator (as opposed to a
// per-record-only evaluator).
func (q QueryExecutor) IsIteratorExpression(expr idxplan.Expression) bool {
	opt, ok := q.inner.exprOptions[expr]
	if !ok {
		return false
	}
	switch opt.Op.Kind {
	case idxplan.OpEquality, idxplan.OpUnion, idxplan.OpJoin, idxplan.OpRange:
		return true
	case idxplan.OpMatches:
		_, ok := q.inner.ftEntries[expr]
		return ok
	case idxplan.OpKnn:
		_, ok := q.inner.mtEntries[expr]
		return ok
	default:
		return false
	}
}

// HasKnn reports whether this plan has any ad-hoc kNN expressions
// requiring the two-phase scan discipline.
func (q QueryExecutor) HasKnn() bool {
	return len(q.inner.knnLists) > 0
}

// IsTable reports whether table is the table this executor was built
// for.
func (q QueryExecutor) IsTable(table string) bool {
	return q.inner.table == table
}
