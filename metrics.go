// Copyright 2026 Lexfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package coref

import "github.com/prometheus/client_golang/prometheus"

var (
	resolutionOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexfly",
			Subsystem: "coref",
			Name:      "resolution_ops_total",
			Help:      "The total number of documents resolved.",
		},
		[]string{"strategy"},
	)
	mentionsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexfly",
			Subsystem: "coref",
			Name:      "mentions_resolved_total",
			Help:      "The total number of mentions clustered.",
		},
		[]string{"strategy"},
	)
	chainsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexfly",
			Subsystem: "coref",
			Name:      "chains_created_total",
			Help:      "The total number of coreference chains produced.",
		},
		[]string{"strategy"},
	)

	bundleLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexfly",
			Subsystem: "coref",
			Name:      "bundle_load_duration_seconds",
			Help:      "Time taken to load a model bundle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"bundle"},
	)

	resolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexfly",
			Subsystem: "coref",
			Name:      "resolution_duration_seconds",
			Help:      "Time taken to resolve one document.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"strategy", "status"},
	)

	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexfly",
			Subsystem: "coref",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits.",
		},
		[]string{"type"}, // resolution, bundle
	)

	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexfly",
			Subsystem: "coref",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses.",
		},
		[]string{"type"}, // resolution, bundle
	)

	poolActiveRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lexfly",
			Subsystem: "coref",
			Name:      "pool_active_requests",
			Help:      "Number of resolutions currently being processed.",
		},
	)

	poolWaitingRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lexfly",
			Subsystem: "coref",
			Name:      "pool_waiting_requests",
			Help:      "Number of resolutions currently waiting for a slot.",
		},
	)

	poolRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lexfly",
			Subsystem: "coref",
			Name:      "pool_rejected_total",
			Help:      "Total number of resolutions rejected because the pool was full.",
		},
	)
)

func init() {
	prometheus.MustRegister(resolutionOps)
	prometheus.MustRegister(mentionsResolved)
	prometheus.MustRegister(chainsCreated)
	prometheus.MustRegister(bundleLoadDuration)
	prometheus.MustRegister(resolutionDuration)
	prometheus.MustRegister(cacheHits)
	prometheus.MustRegister(cacheMisses)
	prometheus.MustRegister(poolActiveRequests)
	prometheus.MustRegister(poolWaitingRequests)
	prometheus.MustRegister(poolRejectedTotal)
}

// recordResolution updates the per-strategy resolution counters.
func recordResolution(strategy string, mentions, numChains int) {
	resolutionOps.WithLabelValues(strategy).Inc()
	mentionsResolved.WithLabelValues(strategy).Add(float64(mentions))
	chainsCreated.WithLabelValues(strategy).Add(float64(numChains))
}

// RecordBundleLoadDuration records how long it took to load a bundle.
func RecordBundleLoadDuration(name string, seconds float64) {
	bundleLoadDuration.WithLabelValues(name).Observe(seconds)
}

// RecordResolutionDuration records how long one resolution took.
func RecordResolutionDuration(strategy, status string, seconds float64) {
	resolutionDuration.WithLabelValues(strategy, status).Observe(seconds)
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit(cacheType string) {
	cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss(cacheType string) {
	cacheMisses.WithLabelValues(cacheType).Inc()
}

// UpdatePoolMetrics updates the pool gauges.
func UpdatePoolMetrics(stats PoolStats) {
	poolActiveRequests.Set(float64(stats.Active))
	poolWaitingRequests.Set(float64(stats.Waiting))
}

// RecordPoolRejection increments the rejected counter.
func RecordPoolRejection() {
	poolRejectedTotal.Inc()
}
