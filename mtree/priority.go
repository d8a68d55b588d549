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

// Package mtree implements the kNN-side auxiliary state: the eager
// M-Tree/HNSW search result buffer (Entry) for predicates an ANN index
// resolves at build time, and the bounded top-k accumulator
// (KnnPriorityList) for predicates that must be scored row-by-row
// during the scan. The M-Tree/HNSW index itself is consumed as the
// VectorIndex collaborator interface; this package does not implement
// a metric tree or graph index.
package mtree

import (
	"container/heap"
	"sync"

	"github.com/ekjotsingh/idxexec/kv"
)

// scoredThing pairs a candidate with its distance to the query vector
// and the order it was first seen in, used to break distance ties
// deterministically. Grounded on the topKHeap{score,idx} pattern in
// the VantageSelfservice vectorstore package (other_examples), adapted
// from a max-similarity heap to a max-distance heap (we evict the
// farthest candidate on overflow, not the lowest-scoring one).
type scoredThing struct {
	distance float64
	seq      uint64
	thing    kv.Thing
}

// maxDistHeap is a container/heap max-heap on distance; ties broken by
// insertion sequence so the most recently inserted of equal-distance
// candidates is evicted first, making first-seen win deterministic.
type maxDistHeap []scoredThing

func (h maxDistHeap) Len() int { return len(h) }
func (h maxDistHeap) Less(i, j int) bool {
	if h[i].distance != h[j].distance {
		return h[i].distance > h[j].distance
	}
	return h[i].seq > h[j].seq
}
func (h maxDistHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *maxDistHeap) Push(x interface{}) {
	*h = append(*h, x.(scoredThing))
}
func (h *maxDistHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// KnnPriorityList is a bounded top-k accumulator over (distance, Thing)
// pairs, safe for concurrent Add calls from multiple row-processing
// tasks. Build must be called only after all Adds complete — enforced
// by the executor's two-phase iteration stage, not by this type.
type KnnPriorityList struct {
	mu   sync.Mutex
	k    int
	heap maxDistHeap
	next uint64
}

// NewKnnPriorityList returns a list bounded to the k nearest candidates.
func NewKnnPriorityList(k int) *KnnPriorityList {
	return &KnnPriorityList{k: k}
}

// Add inserts (distance, thing). If the list is full, the current
// maximum-distance entry is evicted iff distance is smaller.
func (l *KnnPriorityList) Add(distance float64, thing kv.Thing) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item := scoredThing{distance: distance, seq: l.next, thing: thing}
	l.next++

	if l.k <= 0 {
		return
	}
	if len(l.heap) < l.k {
		heap.Push(&l.heap, item)
		return
	}
	if distance < l.heap[0].distance {
		l.heap[0] = item
		heap.Fix(&l.heap, 0)
	}
}

// Build freezes the list into an ordered sequence of Thing, ascending
// by distance. Must be called only once all Adds for this scan have
// completed.
func (l *KnnPriorityList) Build() []kv.Thing {
	l.mu.Lock()
	items := make([]scoredThing, len(l.heap))
	copy(items, l.heap)
	l.mu.Unlock()

	// items is currently heap-ordered (max-at-root); sort ascending by
	// distance (ties by insertion order) for a deterministic result.
	sortScored(items)
	out := make([]kv.Thing, len(items))
	for i, it := range items {
		out[i] = it.thing
	}
	return out
}

// BuildSet freezes the list into a membership set, for QueryExecutor's
// iterate-stage membership test.
func (l *KnnPriorityList) BuildSet() kv.ThingSet {
	things := l.Build()
	set := make(kv.ThingSet, len(things))
	for _, t := range things {
		set.Add(t)
	}
	return set
}

func sortScored(items []scoredThing) {
	// Simple insertion sort: k is small (bounded top-k), so this stays
	// cheap and avoids pulling in sort.Slice's closure overhead for a
	// handful of elements.
	for i := 1; i < len(items); i++ {
		for j := i; j > 0; j-- {
			if less(items[j], items[j-1]) {
				items[j], items[j-1] = items[j-1], items[j]
			} else {
				break
			}
		}
	}
}

func less(a, b scoredThing) bool {
	if a.distance != b.distance {
		return a.distance < b.distance
	}
	return a.seq < b.seq
}
