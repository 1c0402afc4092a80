package wacz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides low-cardinality Prometheus metrics for the capture
// resolution path.
//
// Series are aggregates only; they MUST NOT be labeled by URL, entry path,
// or timestamp.
type Metrics struct {
	indexLoadsTotal   prometheus.Counter
	indexLoadDuration prometheus.Histogram
	indexCaptures     prometheus.Gauge

	warcParsesTotal   prometheus.Counter
	warcParseDuration prometheus.Histogram

	warcCacheHits      prometheus.Counter
	warcCacheMisses    prometheus.Counter
	warcCacheEvictions prometheus.Counter
	warcCacheBytes     prometheus.Gauge
	warcCacheItems     prometheus.Gauge

	captureQueriesTotal prometheus.Counter
	captureOpensTotal   prometheus.Counter
}

// NewMetrics constructs and registers the library's metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		indexLoadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wacz",
			Subsystem: "index",
			Name:      "loads_total",
			Help:      "Total number of CDX/CDXJ index loads.",
		}),
		indexLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wacz",
			Subsystem: "index",
			Name:      "load_duration_seconds",
			Help:      "Duration of CDX/CDXJ index loads in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		indexCaptures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wacz",
			Subsystem: "index",
			Name:      "captures",
			Help:      "Number of captures in the loaded index.",
		}),
		warcParsesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wacz",
			Subsystem: "warc",
			Name:      "parses_total",
			Help:      "Total number of WARC entry drain-and-frame parses.",
		}),
		warcParseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wacz",
			Subsystem: "warc",
			Name:      "parse_duration_seconds",
			Help:      "Duration of WARC entry parses in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		warcCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wacz",
			Subsystem: "warc_cache",
			Name:      "hits_total",
			Help:      "Total number of parsed-WARC cache hits.",
		}),
		warcCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wacz",
			Subsystem: "warc_cache",
			Name:      "misses_total",
			Help:      "Total number of parsed-WARC cache misses.",
		}),
		warcCacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wacz",
			Subsystem: "warc_cache",
			Name:      "evictions_total",
			Help:      "Total number of parsed-WARC cache evictions.",
		}),
		warcCacheBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wacz",
			Subsystem: "warc_cache",
			Name:      "bytes",
			Help:      "Current bytes held by the parsed-WARC cache.",
		}),
		warcCacheItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wacz",
			Subsystem: "warc_cache",
			Name:      "items",
			Help:      "Current number of parsed WARCs held by the cache.",
		}),
		captureQueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wacz",
			Name:      "capture_queries_total",
			Help:      "Total number of capture queries (find, iterate, get).",
		}),
		captureOpensTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wacz",
			Name:      "capture_opens_total",
			Help:      "Total number of capture response opens.",
		}),
	}

	reg.MustRegister(
		m.indexLoadsTotal,
		m.indexLoadDuration,
		m.indexCaptures,
		m.warcParsesTotal,
		m.warcParseDuration,
		m.warcCacheHits,
		m.warcCacheMisses,
		m.warcCacheEvictions,
		m.warcCacheBytes,
		m.warcCacheItems,
		m.captureQueriesTotal,
		m.captureOpensTotal,
	)

	return m
}

func (m *Metrics) ObserveIndexLoad(captures int, d time.Duration) {
	if m == nil {
		return
	}
	m.indexLoadsTotal.Inc()
	m.indexLoadDuration.Observe(d.Seconds())
	m.indexCaptures.Set(float64(captures))
}

func (m *Metrics) ObserveWARCParse(d time.Duration) {
	if m == nil {
		return
	}
	m.warcParsesTotal.Inc()
	m.warcParseDuration.Observe(d.Seconds())
}

func (m *Metrics) IncWARCCacheHits() {
	if m == nil {
		return
	}
	m.warcCacheHits.Inc()
}

func (m *Metrics) IncWARCCacheMisses() {
	if m == nil {
		return
	}
	m.warcCacheMisses.Inc()
}

func (m *Metrics) IncWARCCacheEvictions() {
	if m == nil {
		return
	}
	m.warcCacheEvictions.Inc()
}

func (m *Metrics) SetWARCCacheUsage(bytes int64, items int) {
	if m == nil {
		return
	}
	m.warcCacheBytes.Set(float64(bytes))
	m.warcCacheItems.Set(float64(items))
}

func (m *Metrics) IncCaptureQueries() {
	if m == nil {
		return
	}
	m.captureQueriesTotal.Inc()
}

func (m *Metrics) IncCaptureOpens() {
	if m == nil {
		return
	}
	m.captureOpensTotal.Inc()
}
