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

package mtree

import (
	"context"
	"math"

	"github.com/pingcap/errors"

	"github.com/ekjotsingh/idxexec/idxplan"
	"github.com/ekjotsingh/idxexec/kv"
)

// VectorShapeMismatch is returned when a distance computation is asked
// to compare vectors of incompatible dimension.
type VectorShapeMismatch struct {
	Want, Got int
}

func (e *VectorShapeMismatch) Error() string {
	return "mtree: vector shape mismatch"
}

// VectorIndex is the ANN backend collaborator: either an M-Tree (exact
// metric-tree kNN) or an HNSW graph (approximate kNN). Both answer the
// same KnnSearch shape, so the executor's iterator and entry-building
// logic stays backend-agnostic over which ANN strategy backs a given
// IndexDefinition (SPEC_FULL.md §3's Hnsw supplement).
type VectorIndex interface {
	// KnnSearch returns, in ascending-distance order, up to k DocIds
	// nearest to vector.
	KnnSearch(ctx context.Context, txn kv.Transaction, vector []float32, k int) ([]kv.DocID, error)
}

// Entry is the per-predicate derived state for one Knn operator
// resolved against an ANN index at build time: the eager search result
// (an ordered DocId sequence of length <= k) plus the shared DocIds
// handle needed to resolve those ids back to Things at iterate time.
type Entry struct {
	DocIds kv.DocIds
	Res    []kv.DocID
}

// NewEntry performs an eager kNN search against tree's current
// snapshot and stores the resulting DocId sequence. Failure: tree read
// error, surfaced (SPEC_FULL.md §4.2).
func NewEntry(ctx context.Context, txn kv.Transaction, tree VectorIndex, docIds kv.DocIds, vector []float32, k int) (*Entry, error) {
	res, err := tree.KnnSearch(ctx, txn, vector, k)
	if err != nil {
		return nil, kv.WrapStorage("mtree.KnnSearch", err)
	}
	return &Entry{DocIds: docIds, Res: res}, nil
}

// Distance computes the distance between a and b under metric, used by
// the two-phase kNN path (QueryExecutor.Knn's build-set stage) for
// predicates an ANN index cannot resolve at build time.
func Distance(metric idxplan.DistanceMetric, a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Trace(&VectorShapeMismatch{Want: len(a), Got: len(b)})
	}
	switch metric {
	case idxplan.Cosine:
		return cosineDistance(a, b), nil
	case idxplan.Manhattan:
		return manhattanDistance(a, b), nil
	default:
		return euclideanDistance(a, b), nil
	}
}

func euclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func manhattanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
