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

	"github.com/pingcap/errors"

	"github.com/ekjotsingh/idxexec/ft"
	"github.com/ekjotsingh/idxexec/idxplan"
	"github.com/ekjotsingh/idxexec/kv"
	"github.com/ekjotsingh/idxexec/mtree"
	"github.com/ekjotsingh/idxexec/util/logutil"
	"go.uber.org/zap"
)

// Config carries the executor's tunables, plumbed explicitly rather
// than through globals, matching the teacher's sessionctx.Context /
// session-vars convention.
type Config struct {
	Namespace string
	Database  string
	// BatchSize is the default NextBatch size callers should request
	// when draining an iterator to completion; purely advisory.
	BatchSize int
}

// DefaultConfig returns a Config with a conservative default batch size.
func DefaultConfig(ns, db string) Config {
	return Config{Namespace: ns, Database: db, BatchSize: 1024}
}

// IndexOpener resolves an IndexDefinition to its physical backend. Index
// construction/maintenance and the analyzer/filter/tokenizer pipeline
// are external collaborators (SPEC_FULL.md §1); this interface is the
// seam the builder calls into to obtain them.
type IndexOpener interface {
	OpenFullText(ctx context.Context, txn kv.Transaction, def idxplan.IndexDefinition) (*ft.Index, error)
	OpenVector(ctx context.Context, txn kv.Transaction, def idxplan.IndexDefinition) (mtree.VectorIndex, error)
	// DocIds returns the shared DocId<->Thing map for def's table.
	DocIds(def idxplan.IndexDefinition) kv.DocIds
}

// FieldResolver extracts the value of an indexed field path from a
// record, used by QueryExecutor.Knn's build-set stage for kNN
// predicates that are not resolved by a vector index at build time.
// The row-document processor is the natural implementor
// (SPEC_FULL.md §1).
type FieldResolver interface {
	VectorField(ctx context.Context, txn kv.Transaction, thg kv.Thing, field string) ([]float32, bool, error)
}

// Builder is the InnerQueryExecutor: it walks a compiled IndexesMap and
// materializes per-plan backend instances at most once, binds
// predicates to their derived entries, and installs kNN priority
// lists. Grounded on executor/distsql.go's pattern of building
// IndexReaderExecutor/IndexLookUpExecutor state once from a physical
// plan, and on kv/union_store.go's insert-on-miss map idiom for shared
// handles.
type Builder struct {
	cfg    Config
	table  string
	opener IndexOpener
	fields FieldResolver

	defs []idxplan.IndexDefinition

	ftIndexes  map[idxplan.IndexRef]*ft.Index
	vecIndexes map[idxplan.IndexRef]mtree.VectorIndex

	ftEntries       map[idxplan.Expression]*ft.Entry
	matchRefEntries map[idxplan.MatchRef]*ft.Entry
	mtEntries       map[idxplan.Expression]*mtree.Entry

	knnLists map[idxplan.Expression]*mtree.KnnPriorityList
	knnMeta  map[idxplan.Expression]idxplan.KnnExpression

	exprOptions map[idxplan.Expression]idxplan.IndexOption

	entries []idxplan.IteratorEntry
}

// NewBuilder constructs an empty Builder for one table.
func NewBuilder(cfg Config, table string, opener IndexOpener, fields FieldResolver) *Builder {
	return &Builder{
		cfg:             cfg,
		table:           table,
		opener:          opener,
		fields:          fields,
		ftIndexes:       make(map[idxplan.IndexRef]*ft.Index),
		vecIndexes:      make(map[idxplan.IndexRef]mtree.VectorIndex),
		ftEntries:       make(map[idxplan.Expression]*ft.Entry),
		matchRefEntries: make(map[idxplan.MatchRef]*ft.Entry),
		mtEntries:       make(map[idxplan.Expression]*mtree.Entry),
		knnLists:        make(map[idxplan.Expression]*mtree.KnnPriorityList),
		knnMeta:         make(map[idxplan.Expression]idxplan.KnnExpression),
		exprOptions:     make(map[idxplan.Expression]idxplan.IndexOption),
	}
}

// Build walks im's predicates, instantiating one backend per
// referenced full-text or vector IndexRef (at most once, regardless of
// how many predicates use it — SPEC_FULL.md §3 invariant 1), and
// installs a KnnPriorityList for every ad-hoc kNN expression.
func (b *Builder) Build(ctx context.Context, txn kv.Transaction, im idxplan.IndexesMap, knnExprs []idxplan.KnnExpression) error {
	b.defs = im.Definitions

	for _, eo := range im.Options {
		def := b.defs[eo.Opt.Ref]
		b.exprOptions[eo.Expr] = eo.Opt

		switch {
		case def.Kind == idxplan.FullText && eo.Opt.Op.Kind == idxplan.OpMatches:
			ix, err := b.getOrOpenFullText(ctx, txn, eo.Opt.Ref, def)
			if err != nil {
				return err
			}
			entry, err := ft.NewEntry(ctx, txn, ix, eo.Opt)
			if err != nil {
				return err
			}
			b.ftEntries[eo.Expr] = entry
			if ref := eo.Opt.Op.MatchRef; ref != idxplan.NoMatchRef {
				if _, dup := b.matchRefEntries[ref]; dup {
					logutil.Logger(ctx).Warn("duplicated match reference",
						zap.Int("ref", int(ref)))
					return errors.Trace(&DuplicatedMatchRef{Ref: ref})
				}
				b.matchRefEntries[ref] = entry
			}

		case def.Kind.IsVector() && eo.Opt.Op.Kind == idxplan.OpKnn:
			vix, err := b.getOrOpenVector(ctx, txn, eo.Opt.Ref, def)
			if err != nil {
				return err
			}
			entry, err := mtree.NewEntry(ctx, txn, vix, b.opener.DocIds(def), eo.Opt.Op.Vector, eo.Opt.Op.K)
			if err != nil {
				return err
			}
			b.mtEntries[eo.Expr] = entry
		}
	}

	for _, ke := range knnExprs {
		b.knnLists[ke.Expr] = mtree.NewKnnPriorityList(ke.K)
		b.knnMeta[ke.Expr] = ke
	}

	return nil
}

func (b *Builder) getOrOpenFullText(ctx context.Context, txn kv.Transaction, ref idxplan.IndexRef, def idxplan.IndexDefinition) (*ft.Index, error) {
	if ix, ok := b.ftIndexes[ref]; ok {
		return ix, nil
	}
	ix, err := b.opener.OpenFullText(ctx, txn, def)
	if err != nil {
		return nil, kv.WrapStorage("OpenFullText", err)
	}
	b.ftIndexes[ref] = ix
	return ix, nil
}

func (b *Builder) getOrOpenVector(ctx context.Context, txn kv.Transaction, ref idxplan.IndexRef, def idxplan.IndexDefinition) (mtree.VectorIndex, error) {
	if vix, ok := b.vecIndexes[ref]; ok {
		return vix, nil
	}
	vix, err := b.opener.OpenVector(ctx, txn, def)
	if err != nil {
		return nil, kv.WrapStorage("OpenVector", err)
	}
	b.vecIndexes[ref] = vix
	return vix, nil
}

// AddIterator appends entry to the executor's append-only iterator
// table and returns its stable IteratorRef. Used by the (external)
// planner to register the iterators it will later request by ref.
func (b *Builder) AddIterator(entry idxplan.IteratorEntry) idxplan.IteratorRef {
	b.entries = append(b.entries, entry)
	return idxplan.IteratorRef(len(b.entries) - 1)
}

// Finish freezes the builder's state into a QueryExecutor façade, cheap
// to clone into many concurrent row-processing tasks.
func (b *Builder) Finish() *QueryExecutor {
	inner := &innerExecutor{
		cfg:             b.cfg,
		table:           b.table,
		defs:            b.defs,
		ftIndexes:       b.ftIndexes,
		vecIndexes:      b.vecIndexes,
		ftEntries:       b.ftEntries,
		matchRefEntries: b.matchRefEntries,
		mtEntries:       b.mtEntries,
		knnLists:        b.knnLists,
		knnMeta:         b.knnMeta,
		exprOptions:     b.exprOptions,
		entries:         b.entries,
		fields:          b.fields,
		knnSets:         make(map[idxplan.Expression]kv.ThingSet),
	}
	return &QueryExecutor{inner: inner}
}
