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
	"github.com/prometheus/client_golang/prometheus"
)

// iteratorBatches and iteratorBatchLatency play the role
// executor/distsql.go's e.runtimeStats / statistics.QueryFeedback play
// in the teacher: lightweight, always-on observability of the hot
// iterator path, independent of any per-statement EXPLAIN ANALYZE
// collector.
var (
	iteratorBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idxexec",
			Name:      "iterator_batches_total",
			Help:      "Number of NextBatch calls served, by iterator kind.",
		},
		[]string{"kind"},
	)

	iteratorBatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "idxexec",
			Name:      "iterator_batch_latency_seconds",
			Help:      "Latency of a single NextBatch call, by iterator kind.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(iteratorBatches, iteratorBatchLatency)
}
