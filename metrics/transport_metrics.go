package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type TransportMetricsCollector struct {
	Requests  *prometheus.CounterVec
	Retries   *prometheus.CounterVec
	CacheHits *prometheus.CounterVec
	CacheMiss *prometheus.CounterVec
	Latency   *prometheus.HistogramVec
}

var (
	globalCollector *TransportMetricsCollector
	collectorOnce   sync.Once
)

func getCollector() *TransportMetricsCollector {
	collectorOnce.Do(func() {
		globalCollector = &TransportMetricsCollector{
			Requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "meteostations_http_requests_total",
					Help: "The total number of outgoing HTTP requests",
				},
				[]string{"provider", "outcome"},
			),
			Retries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "meteostations_http_retries_total",
					Help: "The total number of retried HTTP requests",
				},
				[]string{"provider"},
			),
			CacheHits: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "meteostations_cache_hits_total",
					Help: "The total number of response cache hits",
				},
				[]string{"provider"},
			),
			CacheMiss: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "meteostations_cache_misses_total",
					Help: "The total number of response cache misses",
				},
				[]string{"provider"},
			),
			Latency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "meteostations_http_request_duration_seconds",
					Help:    "Outgoing HTTP request duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
		}
	})
	return globalCollector
}

// TransportMetrics records per-provider transport activity
type TransportMetrics struct {
	provider  string
	collector *TransportMetricsCollector

	mu     sync.RWMutex
	hits   int64
	misses int64
}

func NewTransportMetrics(provider string) *TransportMetrics {
	return &TransportMetrics{
		provider:  provider,
		collector: getCollector(),
	}
}

func (m *TransportMetrics) RecordCacheHit() {
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
	m.collector.CacheHits.WithLabelValues(m.provider).Inc()
}

func (m *TransportMetrics) RecordCacheMiss() {
	m.mu.Lock()
	m.misses++
	m.mu.Unlock()
	m.collector.CacheMiss.WithLabelValues(m.provider).Inc()
}

func (m *TransportMetrics) RecordRequest(outcome string) {
	m.collector.Requests.WithLabelValues(m.provider, outcome).Inc()
}

func (m *TransportMetrics) RecordRetry() {
	m.collector.Retries.WithLabelValues(m.provider).Inc()
}

func (m *TransportMetrics) ObserveLatency(d time.Duration) {
	m.collector.Latency.WithLabelValues(m.provider).Observe(d.Seconds())
}

// HitRatio returns the cache hit ratio observed by this instance
func (m *TransportMetrics) HitRatio() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := m.hits + m.misses
	if total == 0 {
		return 0
	}
	return float64(m.hits) / float64(total)
}
