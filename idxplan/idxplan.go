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

// Package idxplan defines the small value types describing a compiled
// plan fragment: which index backs a predicate and what access shape
// (equality / union / join / range / matches / knn) it uses. These
// types are produced by an external planner/compiler and consumed,
// never mutated in shape, by the executor package.
package idxplan

// IndexRef is a small integer index into a plan's list of
// IndexDefinitions.
type IndexRef int

// IndexKind names the physical backend an index is implemented by.
type IndexKind int

// The supported index kinds.
const (
	Standard IndexKind = iota
	Unique
	FullText
	MTree
	Hnsw
)

func (k IndexKind) String() string {
	switch k {
	case Standard:
		return "standard"
	case Unique:
		return "unique"
	case FullText:
		return "fulltext"
	case MTree:
		return "mtree"
	case Hnsw:
		return "hnsw"
	default:
		return "unknown"
	}
}

// IsVector reports whether the index kind is one of the ANN backends
// (M-Tree or HNSW) that answer Knn operators.
func (k IndexKind) IsVector() bool {
	return k == MTree || k == Hnsw
}

// FullTextParams configures an index of kind FullText: its analyzer
// name and whether BM25 scoring is enabled.
type FullTextParams struct {
	AnalyzerName  string
	ScoringEnabled bool
	BM25K1        float64
	BM25B         float64
}

// VectorParams configures an index of kind MTree or Hnsw.
type VectorParams struct {
	Dimension int
	Distance  DistanceMetric
	// HNSW-only tuning knobs; ignored by MTree.
	M              int
	EfConstruction int
}

// DistanceMetric names a vector distance function.
type DistanceMetric int

// The supported distance metrics.
const (
	Euclidean DistanceMetric = iota
	Cosine
	Manhattan
)

// IndexDefinition is (name, table, kind, params), immutable for the
// lifetime of the executor.
type IndexDefinition struct {
	Name  string
	Table string
	Kind  IndexKind
	// Params is either *FullTextParams or *VectorParams depending on
	// Kind; nil for Standard/Unique.
	Params interface{}
}

// IdiomPosition records which operand of a binary predicate holds the
// indexed field path.
type IdiomPosition int

// The two idiom positions.
const (
	Left IdiomPosition = iota
	Right
)

// RangeValue is one bound of a Range operator.
type RangeValue struct {
	Value     interface{}
	Inclusive bool
}

// OperatorKind discriminates the Operator sum type.
type OperatorKind int

// The supported operator kinds.
const (
	OpEquality OperatorKind = iota
	OpUnion
	OpJoin
	OpRange
	OpMatches
	OpKnn
)

// MatchRef is a user-assigned small integer correlating highlight/
// offsets/score calls with a specific Matches predicate.
type MatchRef int

// NoMatchRef marks the absence of an explicit match reference.
const NoMatchRef MatchRef = -1

// Operator is the access shape chosen for one predicate. It is modeled
// as a flat tagged struct (fields populated according to Kind) rather
// than a sealed interface hierarchy, matching the teacher's own
// ranger.Range{LowVal,HighVal,LowExclude,HighExclude} flat-struct idiom.
type Operator struct {
	Kind OperatorKind

	// OpEquality
	Value interface{}

	// OpUnion
	Values []interface{}

	// OpJoin: nested sub-options; probe values stream from their
	// iterators in declared (sub-option) order.
	Join []IndexOption

	// OpRange
	From RangeValue
	To   RangeValue

	// OpMatches
	Query    string
	MatchRef MatchRef // NoMatchRef when absent; the zero value 0 is a real reference

	// OpKnn
	Vector   []float32
	K        int
	Field    string
	Distance DistanceMetric
}

// IndexOption is the access shape chosen for one predicate.
type IndexOption struct {
	Ref IndexRef
	Pos IdiomPosition
	Op  Operator

	// Cost is an optional, purely informational cost hint attached by
	// the external planner. The executor never consults it; Explain
	// surfaces it verbatim when non-zero. See SPEC_FULL.md §3.
	Cost float64
}

// Expression is an opaque handle for one predicate in the compiled
// plan, supplied by the external planner/compiler. It must be usable
// as a map key.
type Expression interface{}

// KnnExpression describes a kNN predicate that cannot be resolved by a
// vector-index iterator at build time (e.g. an ad-hoc expression over
// a non-indexed field), to be evaluated per row by QueryExecutor.Knn
// and accumulated into a KnnPriorityList.
type KnnExpression struct {
	Expr     Expression
	K        int
	Field    string
	Vector   []float32
	Distance DistanceMetric
}

// IndexesMap is the compiled plan fragment the executor builder
// consumes: which IndexOption backs each predicate Expression, against
// which IndexDefinitions.
type IndexesMap struct {
	Options     []ExpressionOption
	Definitions []IndexDefinition
}

// ExpressionOption pairs one predicate with its chosen access shape.
type ExpressionOption struct {
	Expr Expression
	Opt  IndexOption
}

// IteratorEntryKind discriminates the IteratorEntry sum type.
type IteratorEntryKind int

// The two IteratorEntry kinds.
const (
	EntrySingle IteratorEntryKind = iota
	EntryRange
)

// IteratorEntry is one registered, immutable row of the executor's
// append-only iterator table; its position is the IteratorRef.
type IteratorEntry struct {
	Kind IteratorEntryKind

	// EntrySingle
	Expr Expression
	Opt  IndexOption

	// EntryRange: a fused range covering several predicates over the
	// same index.
	Exprs []Expression
	Ref   IndexRef
	From  RangeValue
	To    RangeValue
}

// IteratorRef is a plan-local integer naming one registered
// IteratorEntry. Values never change or alias across the executor's
// lifetime.
type IteratorRef int
