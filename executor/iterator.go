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

// Package executor implements the query-plan executor for
// index-assisted predicates: a polymorphic lazy cursor
// (ThingIterator) over four index access shapes, the builder that
// materializes per-plan backend state at most once
// (InnerQueryExecutor), and the runtime façade handed to row
// iteration (QueryExecutor). Grounded on the teacher's
// executor/distsql.go IndexReaderExecutor/IndexLookUpExecutor family
// and store/tikv/scan.go's resumable Scanner.
package executor

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pingcap/errors"

	"github.com/ekjotsingh/idxexec/ft"
	"github.com/ekjotsingh/idxexec/idxplan"
	"github.com/ekjotsingh/idxexec/kv"
	"github.com/ekjotsingh/idxexec/kv/keycodec"
	"github.com/ekjotsingh/idxexec/mtree"
)

// Record is one item a ThingIterator yields: a matching record
// identifier and, when the iterator's source tracks it, the record's
// compact DocId handle.
type Record struct {
	Thing kv.Thing
	DocID *kv.DocID
}

// ThingIterator is a polymorphic lazy cursor yielding batches of
// Record in the storage order of its key range (or, for union/join,
// the concatenation of component orders; see SPEC_FULL.md §4.1).
// Dropping an iterator without draining it releases any held read
// cursor via Close.
type ThingIterator interface {
	// NextBatch pulls up to n items. End-of-stream is an empty (nil)
	// batch with err == nil.
	NextBatch(ctx context.Context, txn kv.Transaction, n int) ([]Record, error)
	// Close releases any held read cursor. Safe to call more than once.
	Close()
	// RecordsFetched returns the running count of records yielded so
	// far (SPEC_FULL.md §3's IteratorRecord count-tracking supplement).
	RecordsFetched() int64
}

// observe wraps a NextBatch call with the package's batch counter,
// latency histogram and a tracing child span, following
// executor/distsql.go's IndexReaderExecutor.Next instrumentation.
func observe(ctx context.Context, kind string, fn func() ([]Record, error)) ([]Record, error) {
	if span := opentracing.SpanFromContext(ctx); span != nil {
		child := span.Tracer().StartSpan(kind+".NextBatch", opentracing.ChildOf(span.Context()))
		defer child.Finish()
	}
	start := time.Now()
	recs, err := fn()
	iteratorBatches.WithLabelValues(kind).Inc()
	iteratorBatchLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	return recs, err
}

// baseIterator holds the fields common to every concrete ThingIterator:
// a running fetched-record counter and a closed flag.
type baseIterator struct {
	fetched int64
	closed  bool
}

func (b *baseIterator) RecordsFetched() int64 { return atomic.LoadInt64(&b.fetched) }
func (b *baseIterator) addFetched(n int)      { atomic.AddInt64(&b.fetched, int64(n)) }

// ---- IndexEqual / UniqueEqual --------------------------------------------

// equalIterator range-scans the index key-space under the key prefix
// for one equality value. unique is true for a Unique index, where
// storage yields at most one id per probe.
type equalIterator struct {
	baseIterator
	table  string
	it     kv.Iterator
	opened bool
	rng    kv.KeyRange
	unique bool
}

func newEqualIterator(ns, db, table, index string, value interface{}, unique bool) (*equalIterator, error) {
	rng, err := keycodec.EqualityRange(ns, db, table, index, value)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &equalIterator{table: table, rng: rng, unique: unique}, nil
}

func (it *equalIterator) open(txn kv.Transaction) error {
	cur, err := txn.Iter(it.rng.StartKey, it.rng.EndKey)
	if err != nil {
		return kv.WrapStorage("equalIterator.open", err)
	}
	it.it = cur
	it.opened = true
	return nil
}

func (it *equalIterator) kind() string {
	if it.unique {
		return "UniqueEqual"
	}
	return "IndexEqual"
}

func (it *equalIterator) NextBatch(ctx context.Context, txn kv.Transaction, n int) ([]Record, error) {
	return observe(ctx, it.kind(), func() ([]Record, error) {
		if it.closed {
			return nil, nil
		}
		if !it.opened {
			if err := it.open(txn); err != nil {
				return nil, err
			}
		}
		var out []Record
		for len(out) < n && it.it.Valid() {
			thg, err := kv.DecodeThing(it.table, it.it.Value())
			if err != nil {
				return nil, errors.Trace(err)
			}
			out = append(out, Record{Thing: thg})
			if it.unique {
				// At most one id per probe for a Unique index: the probe
				// is exhausted after its first hit.
				it.closed = true
				break
			}
			if err := it.it.Next(); err != nil {
				return nil, kv.WrapStorage("equalIterator.Next", err)
			}
		}
		it.addFetched(len(out))
		return out, nil
	})
}

func (it *equalIterator) Close() {
	if it.it != nil {
		it.it.Close()
	}
	it.closed = true
}

// ---- IndexUnion / UniqueUnion ---------------------------------------------

// unionIterator drains a sequence of equality probes in list order.
type unionIterator struct {
	baseIterator
	probes []*equalIterator
	cur    int
	unique bool
}

func newUnionIterator(ns, db, table, index string, values []interface{}, unique bool) (*unionIterator, error) {
	probes := make([]*equalIterator, 0, len(values))
	for _, v := range values {
		p, err := newEqualIterator(ns, db, table, index, v, unique)
		if err != nil {
			return nil, err
		}
		probes = append(probes, p)
	}
	return &unionIterator{probes: probes, unique: unique}, nil
}

func (it *unionIterator) kind() string {
	if it.unique {
		return "UniqueUnion"
	}
	return "IndexUnion"
}

func (it *unionIterator) NextBatch(ctx context.Context, txn kv.Transaction, n int) ([]Record, error) {
	var out []Record
	for len(out) < n && it.cur < len(it.probes) {
		need := n - len(out)
		recs, err := it.probes[it.cur].NextBatch(ctx, txn, need)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			it.probes[it.cur].Close()
			it.cur++
			continue
		}
		out = append(out, recs...)
	}
	it.addFetched(len(out))
	return out, nil
}

func (it *unionIterator) Close() {
	for _, p := range it.probes {
		p.Close()
	}
	it.closed = true
}

// ---- IndexRange / UniqueRange ----------------------------------------------

// rangeIterator scans [from, to] honouring each bound's inclusivity,
// folded into the key range by keycodec.BoundRange. Empty range
// (from > to) yields nothing: keycodec produces StartKey >= EndKey and
// NextBatch detects that before opening a cursor, so Iter is never
// called.
type rangeIterator struct {
	baseIterator
	table  string
	it     kv.Iterator
	opened bool
	rng    kv.KeyRange
	unique bool
}

func newRangeIterator(ns, db, table, index string, from, to idxplan.RangeValue, unique bool) (*rangeIterator, error) {
	rng, err := keycodec.BoundRange(ns, db, table, index, from.Value, from.Inclusive, to.Value, to.Inclusive)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &rangeIterator{table: table, rng: rng, unique: unique}, nil
}

func (it *rangeIterator) kind() string {
	if it.unique {
		return "UniqueRange"
	}
	return "IndexRange"
}

func (it *rangeIterator) NextBatch(ctx context.Context, txn kv.Transaction, n int) ([]Record, error) {
	return observe(ctx, it.kind(), func() ([]Record, error) {
		if it.closed {
			return nil, nil
		}
		if !it.opened {
			if it.rng.StartKey.Cmp(it.rng.EndKey) >= 0 {
				it.closed = true
				return nil, nil
			}
			cur, err := txn.Iter(it.rng.StartKey, it.rng.EndKey)
			if err != nil {
				return nil, kv.WrapStorage("rangeIterator.open", err)
			}
			it.it = cur
			it.opened = true
		}
		var out []Record
		for len(out) < n && it.it.Valid() {
			thg, err := kv.DecodeThing(it.table, it.it.Value())
			if err != nil {
				return nil, errors.Trace(err)
			}
			out = append(out, Record{Thing: thg})
			if it.unique {
				// keep scanning: unlike equality, a range may span
				// many distinct unique values, each contributing one id
			}
			if err := it.it.Next(); err != nil {
				return nil, kv.WrapStorage("rangeIterator.Next", err)
			}
		}
		it.addFetched(len(out))
		return out, nil
	})
}

func (it *rangeIterator) Close() {
	if it.it != nil {
		it.it.Close()
	}
	it.closed = true
}

// ---- IndexJoin / UniqueJoin -------------------------------------------------

// joinIterator drains each sub-iterator's probe values in declared
// order, opening one equality scan per probe on the current index
// before advancing to the next probe. The sub-iterators are iterated
// directly (a plain slice cursor) rather than reified as an explicit
// stack of pending work: unlike languages with bounded async-fn
// recursion depth, Go's goroutine stacks grow dynamically, so nothing
// is gained by managing the pending-work list by hand here.
type joinIterator struct {
	baseIterator
	ns, db, table, index string
	unique               bool
	subs                 []ThingIterator // one per nested IndexOption, built eagerly
	subIdx               int
	current              *equalIterator
}

func newJoinIterator(ns, db, table, index string, unique bool, subs []ThingIterator) *joinIterator {
	return &joinIterator{ns: ns, db: db, table: table, index: index, unique: unique, subs: subs}
}

func (it *joinIterator) kind() string {
	if it.unique {
		return "UniqueJoin"
	}
	return "IndexJoin"
}

func (it *joinIterator) NextBatch(ctx context.Context, txn kv.Transaction, n int) ([]Record, error) {
	var out []Record
	for len(out) < n {
		if it.current == nil {
			if it.subIdx >= len(it.subs) {
				break
			}
			probeRecs, err := it.subs[it.subIdx].NextBatch(ctx, txn, 1)
			if err != nil {
				return nil, err
			}
			if len(probeRecs) == 0 {
				it.subs[it.subIdx].Close()
				it.subIdx++
				continue
			}
			eq, err := newEqualIterator(it.ns, it.db, it.table, it.index, probeRecs[0].Thing.ID, it.unique)
			if err != nil {
				return nil, err
			}
			it.current = eq
		}
		recs, err := it.current.NextBatch(ctx, txn, n-len(out))
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			it.current.Close()
			it.current = nil
			continue
		}
		out = append(out, recs...)
	}
	it.addFetched(len(out))
	return out, nil
}

func (it *joinIterator) Close() {
	if it.current != nil {
		it.current.Close()
	}
	for i := it.subIdx; i < len(it.subs); i++ {
		it.subs[i].Close()
	}
	it.closed = true
}

// ---- Matches ----------------------------------------------------------------

// matchesIterator is driven by the full-text inverted index: for each
// query term's posting list, it yields the document's Thing via a
// DocId -> Thing reverse lookup. De-duplication policy (see
// SPEC_FULL.md/design notes open question): a document is yielded once
// per distinct posting-list contribution, i.e. NO de-duplication
// across terms — scoring logic upstream tolerates duplicates, and
// callers needing set semantics should route through
// QueryExecutor.Matches instead of iterating directly.
type matchesIterator struct {
	baseIterator
	entry     *ft.Entry
	termIdx   int
	docIdx    int
	curDocIDs []kv.DocID
}

func newMatchesIterator(entry *ft.Entry) *matchesIterator {
	return &matchesIterator{entry: entry}
}

func (it *matchesIterator) NextBatch(ctx context.Context, txn kv.Transaction, n int) ([]Record, error) {
	return observe(ctx, "Matches", func() ([]Record, error) {
		var out []Record
		for len(out) < n {
			if it.curDocIDs == nil {
				if it.termIdx >= len(it.entry.TermsDocs) {
					break
				}
				pl := it.entry.TermsDocs[it.termIdx]
				it.termIdx++
				if pl == nil {
					continue
				}
				ids := make([]kv.DocID, 0, len(pl.DocFreqs))
				for id := range pl.DocFreqs {
					ids = append(ids, id)
				}
				sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
				it.curDocIDs = ids
				it.docIdx = 0
			}
			if it.docIdx >= len(it.curDocIDs) {
				it.curDocIDs = nil
				continue
			}
			id := it.curDocIDs[it.docIdx]
			it.docIdx++
			thg, ok, err := it.entry.Index.DocIds.GetThing(ctx, txn, id)
			if err != nil {
				return nil, kv.WrapStorage("matchesIterator.GetThing", err)
			}
			if !ok {
				continue
			}
			idCopy := id
			out = append(out, Record{Thing: thg, DocID: &idCopy})
		}
		it.addFetched(len(out))
		return out, nil
	})
}

func (it *matchesIterator) Close() { it.closed = true }

// ---- Knn ----------------------------------------------------------------

// knnIterator emits the Things resolved from an mtree.Entry's Res
// buffer, in the order the ANN index returned them (ascending
// distance).
type knnIterator struct {
	baseIterator
	entry *mtree.Entry
	idx   int
}

func newKnnIterator(entry *mtree.Entry) *knnIterator {
	return &knnIterator{entry: entry}
}

func (it *knnIterator) NextBatch(ctx context.Context, txn kv.Transaction, n int) ([]Record, error) {
	return observe(ctx, "Knn", func() ([]Record, error) {
		var out []Record
		for len(out) < n && it.idx < len(it.entry.Res) {
			id := it.entry.Res[it.idx]
			it.idx++
			thg, ok, err := it.entry.DocIds.GetThing(ctx, txn, id)
			if err != nil {
				return nil, kv.WrapStorage("knnIterator.GetThing", err)
			}
			if !ok {
				continue
			}
			idCopy := id
			out = append(out, Record{Thing: thg, DocID: &idCopy})
		}
		it.addFetched(len(out))
		return out, nil
	})
}

func (it *knnIterator) Close() { it.closed = true }
