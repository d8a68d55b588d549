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
	"github.com/ekjotsingh/idxexec/idxplan"
)

// ExplainRow is the structured value Explain returns for one
// registered IteratorEntry. Field population mirrors the teacher's
// ExplainInfo-style plan strings, but as a struct rather than a single
// formatted line, so callers can pick whichever fields they need.
type ExplainRow struct {
	Index    string
	Operator string

	// Value is set for OpEquality.
	Value interface{} `json:",omitempty"`
	// Values is set for OpUnion.
	Values []interface{} `json:",omitempty"`
	// From/To are set for OpRange and for EntryRange rows.
	From *idxplan.RangeValue `json:",omitempty"`
	To   *idxplan.RangeValue `json:",omitempty"`
	// Query is set for OpMatches.
	Query string `json:",omitempty"`
	// K/Field are set for OpKnn.
	K     int    `json:",omitempty"`
	Field string `json:",omitempty"`

	// Join lists the nested explanations of an OpJoin's sub-options.
	Join []ExplainRow `json:",omitempty"`

	// Cost mirrors IndexOption.Cost verbatim, omitted when zero.
	Cost float64 `json:",omitempty"`
	// RecordsFetched surfaces the live iterator's fetch count, when
	// the caller supplies one (see Explain's it parameter); omitted
	// when no iterator was supplied or it has fetched nothing yet.
	RecordsFetched int64 `json:",omitempty"`
}

// Explain describes the access shape registered for ref. it, if
// non-nil, is the (possibly already partially drained) iterator built
// from this ref; its RecordsFetched is surfaced for EXPLAIN ANALYZE
// style reporting. Explain is pure CPU work; it never touches storage.
func (q QueryExecutor) Explain(ref idxplan.IteratorRef, it ThingIterator) (ExplainRow, bool) {
	in := q.inner
	if ref < 0 || int(ref) >= len(in.entries) {
		return ExplainRow{}, false
	}
	entry := in.entries[ref]

	var row ExplainRow
	switch entry.Kind {
	case idxplan.EntrySingle:
		def := in.defs[entry.Opt.Ref]
		row = explainOption(def.Name, entry.Opt, in.defs)
	case idxplan.EntryRange:
		def := in.defs[entry.Ref]
		from, to := entry.From, entry.To
		row = ExplainRow{
			Index:    def.Name,
			Operator: "range",
			From:     &from,
			To:       &to,
		}
	default:
		return ExplainRow{}, false
	}

	if it != nil {
		row.RecordsFetched = it.RecordsFetched()
	}
	return row, true
}

// explainOption builds the ExplainRow for opt, labelled with
// indexName (the IndexDefinition opt.Ref names). defs resolves each
// nested OpJoin sub-option's own Ref to its own index name, since a
// join's sub-options commonly name a different IndexDefinition than
// their parent.
func explainOption(indexName string, opt idxplan.IndexOption, defs []idxplan.IndexDefinition) ExplainRow {
	row := ExplainRow{Index: indexName, Cost: opt.Cost}
	op := opt.Op
	switch op.Kind {
	case idxplan.OpEquality:
		row.Operator = "equality"
		row.Value = op.Value
	case idxplan.OpUnion:
		row.Operator = "union"
		row.Values = op.Values
	case idxplan.OpRange:
		row.Operator = "range"
		from, to := op.From, op.To
		row.From = &from
		row.To = &to
	case idxplan.OpJoin:
		row.Operator = "join"
		row.Join = make([]ExplainRow, 0, len(op.Join))
		for _, sub := range op.Join {
			subName := indexName
			if int(sub.Ref) >= 0 && int(sub.Ref) < len(defs) {
				subName = defs[sub.Ref].Name
			}
			row.Join = append(row.Join, explainOption(subName, sub, defs))
		}
	case idxplan.OpMatches:
		row.Operator = "matches"
		row.Query = op.Query
	case idxplan.OpKnn:
		row.Operator = "knn"
		row.K = op.K
		row.Field = op.Field
	default:
		row.Operator = "unknown"
	}
	return row
}
