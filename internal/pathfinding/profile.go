package pathfinding

import (
	"context"
	"sync/atomic"
	"time"
)

// NavigatorProfiler receives instrumentation from searches and world views.
type NavigatorProfiler interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordChunkLoad(duration time.Duration)
	RecordHeuristicEvaluation()
	RecordNodeExpanded()
	RecordNeighborGeneration(count int)
	RecordSearch(outcome Outcome, elapsed time.Duration)
}

// NavigatorMetrics accumulates profiling counters. It is safe for concurrent use.
type NavigatorMetrics struct {
	cacheHits            atomic.Int64
	cacheMisses          atomic.Int64
	chunkLoads           atomic.Int64
	chunkLoadTime        atomic.Int64
	heuristicEvaluations atomic.Int64
	nodesExpanded        atomic.Int64
	neighborGenerations  atomic.Int64
	neighborCount        atomic.Int64
	searches             atomic.Int64
	routesFound          atomic.Int64
	searchTime           atomic.Int64
}

// MetricsSnapshot captures a point-in-time copy of navigator metrics.
type MetricsSnapshot struct {
	CacheHits            int64
	CacheMisses          int64
	ChunkLoads           int64
	ChunkLoadTime        time.Duration
	HeuristicEvaluations int64
	NodesExpanded        int64
	NeighborGenerations  int64
	NeighborCount        int64
	Searches             int64
	RoutesFound          int64
	SearchTime           time.Duration
}

// Profiler returns a NavigatorProfiler implementation backed by this metric set.
func (m *NavigatorMetrics) Profiler() NavigatorProfiler {
	if m == nil {
		return nil
	}
	return (*metricsProfiler)(m)
}

// Reset zeroes all counters in the metrics set.
func (m *NavigatorMetrics) Reset() {
	if m == nil {
		return
	}
	for _, counter := range []*atomic.Int64{
		&m.cacheHits, &m.cacheMisses, &m.chunkLoads, &m.chunkLoadTime,
		&m.heuristicEvaluations, &m.nodesExpanded, &m.neighborGenerations,
		&m.neighborCount, &m.searches, &m.routesFound, &m.searchTime,
	} {
		counter.Store(0)
	}
}

// Snapshot captures the current counter values.
func (m *NavigatorMetrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		CacheHits:            m.cacheHits.Load(),
		CacheMisses:          m.cacheMisses.Load(),
		ChunkLoads:           m.chunkLoads.Load(),
		ChunkLoadTime:        time.Duration(m.chunkLoadTime.Load()),
		HeuristicEvaluations: m.heuristicEvaluations.Load(),
		NodesExpanded:        m.nodesExpanded.Load(),
		NeighborGenerations:  m.neighborGenerations.Load(),
		NeighborCount:        m.neighborCount.Load(),
		Searches:             m.searches.Load(),
		RoutesFound:          m.routesFound.Load(),
		SearchTime:           time.Duration(m.searchTime.Load()),
	}
}

// AverageBranching returns the mean number of moves generated per expansion.
func (s MetricsSnapshot) AverageBranching() float64 {
	if s.NeighborGenerations == 0 {
		return 0
	}
	return float64(s.NeighborCount) / float64(s.NeighborGenerations)
}

type metricsProfiler NavigatorMetrics

func (m *metricsProfiler) RecordCacheHit() {
	(*NavigatorMetrics)(m).cacheHits.Add(1)
}

func (m *metricsProfiler) RecordCacheMiss() {
	(*NavigatorMetrics)(m).cacheMisses.Add(1)
}

func (m *metricsProfiler) RecordChunkLoad(duration time.Duration) {
	metrics := (*NavigatorMetrics)(m)
	metrics.chunkLoads.Add(1)
	metrics.chunkLoadTime.Add(duration.Nanoseconds())
}

func (m *metricsProfiler) RecordHeuristicEvaluation() {
	(*NavigatorMetrics)(m).heuristicEvaluations.Add(1)
}

func (m *metricsProfiler) RecordNodeExpanded() {
	(*NavigatorMetrics)(m).nodesExpanded.Add(1)
}

func (m *metricsProfiler) RecordNeighborGeneration(count int) {
	metrics := (*NavigatorMetrics)(m)
	metrics.neighborGenerations.Add(1)
	metrics.neighborCount.Add(int64(count))
}

func (m *metricsProfiler) RecordSearch(outcome Outcome, elapsed time.Duration) {
	metrics := (*NavigatorMetrics)(m)
	metrics.searches.Add(1)
	if outcome == OutcomeFound {
		metrics.routesFound.Add(1)
	}
	metrics.searchTime.Add(elapsed.Nanoseconds())
}

type profilerContextKey struct{}

// ContextWithProfiler returns a context that reports to profiler during
// searches and world lookups.
func ContextWithProfiler(ctx context.Context, profiler NavigatorProfiler) context.Context {
	if profiler == nil {
		return ctx
	}
	return context.WithValue(ctx, profilerContextKey{}, profiler)
}

func profilerFromContext(ctx context.Context) NavigatorProfiler {
	if ctx == nil {
		return nil
	}
	if profiler, ok := ctx.Value(profilerContextKey{}).(NavigatorProfiler); ok {
		return profiler
	}
	return nil
}
