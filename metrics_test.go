package wacz

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetrics_LowCardinality(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveIndexLoad(42, 15*time.Millisecond)
	m.ObserveWARCParse(80 * time.Millisecond)
	m.IncWARCCacheHits()
	m.IncWARCCacheMisses()
	m.IncWARCCacheEvictions()
	m.SetWARCCacheUsage(1024, 1)
	m.IncCaptureQueries()
	m.IncCaptureOpens()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	// Every series is an aggregate: no URL/path/timestamp labels anywhere.
	for _, name := range []string{
		"wacz_index_loads_total",
		"wacz_index_load_duration_seconds",
		"wacz_index_captures",
		"wacz_warc_parses_total",
		"wacz_warc_parse_duration_seconds",
		"wacz_warc_cache_hits_total",
		"wacz_warc_cache_misses_total",
		"wacz_warc_cache_evictions_total",
		"wacz_warc_cache_bytes",
		"wacz_warc_cache_items",
		"wacz_capture_queries_total",
		"wacz_capture_opens_total",
	} {
		assertMetricFamilyLabelNames(t, mfs, name, nil)
	}
}

func TestMetrics_NilReceiverSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveIndexLoad(1, time.Second)
	m.ObserveWARCParse(time.Second)
	m.IncWARCCacheHits()
	m.IncWARCCacheMisses()
	m.IncWARCCacheEvictions()
	m.SetWARCCacheUsage(0, 0)
	m.IncCaptureQueries()
	m.IncCaptureOpens()
}

func assertMetricFamilyLabelNames(t *testing.T, mfs []*dto.MetricFamily, name string, want []string) {
	t.Helper()

	var mf *dto.MetricFamily
	for _, x := range mfs {
		if x.GetName() == name {
			mf = x
			break
		}
	}
	if mf == nil {
		t.Fatalf("metric family %q not found", name)
	}

	for _, metric := range mf.GetMetric() {
		var got []string
		for _, lp := range metric.GetLabel() {
			got = append(got, lp.GetName())
		}
		if len(got) != len(want) {
			t.Fatalf("metric %q label names = %v, want %v", name, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("metric %q label names = %v, want %v", name, got, want)
			}
		}
	}
}
