package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t testing.TB) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RecordFetch(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	meta := FetchMeta{Dataset: "liveBuses", Key: "live_buses"}

	m.RecordFetch(ctx, meta, 40*time.Millisecond, nil)
	m.RecordFetch(ctx, meta, 60*time.Millisecond, errors.New("timeout"))

	rm := collect(t, reader)
	if got := sumValue(t, rm, "cache.fetch.total"); got != 2 {
		t.Errorf("cache.fetch.total = %d, want 2", got)
	}
	if got := sumValue(t, rm, "cache.fetch.errors"); got != 1 {
		t.Errorf("cache.fetch.errors = %d, want 1", got)
	}

	hist := findMetric(rm, "cache.fetch.duration_ms")
	if hist == nil {
		t.Fatal("cache.fetch.duration_ms not found")
	}
	h, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", hist.Data)
	}
	if h.DataPoints[0].Count != 2 || h.DataPoints[0].Sum != 100 {
		t.Errorf("histogram count=%d sum=%v", h.DataPoints[0].Count, h.DataPoints[0].Sum)
	}
}

func TestMetrics_OnlyDatasetAttribute(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordFetch(context.Background(), FetchMeta{Dataset: "lineDetails", Key: "line_details_1"}, 0, nil)
	m.RecordFetch(context.Background(), FetchMeta{Dataset: "lineDetails", Key: "line_details_2"}, 0, nil)

	total := findMetric(collect(t, reader), "cache.fetch.total")
	sum := total.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 {
		t.Fatalf("expected keys to collapse into 1 series, got %d", len(sum.DataPoints))
	}
	if _, ok := sum.DataPoints[0].Attributes.Value("cache.key"); ok {
		t.Error("cache.key must not be a metric attribute")
	}
}

func TestMetrics_Concurrent(t *testing.T) {
	m, reader := newTestMetrics(t)
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordFetch(context.Background(), FetchMeta{Dataset: "stations"}, time.Millisecond, nil)
		}()
	}
	wg.Wait()

	if got := sumValue(t, collect(t, reader), "cache.fetch.total"); got != n {
		t.Errorf("cache.fetch.total = %d, want %d", got, n)
	}
}
