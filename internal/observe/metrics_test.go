package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
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

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestClusterObserver_NodeLifecycleCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	observer := NewClusterObserver(m)

	observer.NodeConnected(1)
	observer.NodeConnected(2)
	observer.NodeDisconnected(1)
	observer.NodeTerminated(1)

	rm := collect(t, reader)

	counters := []struct {
		name string
		want int64
	}{
		{"andelink.node.connects", 2},
		{"andelink.node.disconnects", 1},
		{"andelink.node.terminations", 1},
	}
	for _, tc := range counters {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not a sum", tc.name)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			if total != tc.want {
				t.Errorf("total = %d, want %d", total, tc.want)
			}
		})
	}
}

func TestClusterObserver_ConnectedNodesGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	observer := NewClusterObserver(m)

	observer.NodeConnected(1)
	observer.NodeConnected(2)
	observer.NodeDisconnected(2)

	rm := collect(t, reader)
	met := findMetric(rm, "andelink.nodes.connected")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("gauge value = %d, want 1", got)
	}
}

func TestClusterObserver_FrameReceived(t *testing.T) {
	m, reader := newTestMetrics(t)
	observer := NewClusterObserver(m)

	observer.FrameReceived(1, "stats")
	observer.FrameReceived(1, "stats")
	observer.FrameReceived(1, "playerUpdate")

	rm := collect(t, reader)
	met := findMetric(rm, "andelink.frames.received")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}

	// Find the data point with op=stats.
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "op" && kv.Value.AsString() == "stats" {
				if dp.Value != 2 {
					t.Errorf("counter value = %d, want 2", dp.Value)
				}
				return
			}
		}
	}
	t.Error("data point with op=stats not found")
}

func TestClusterObserver_CommandSentRecordsStatus(t *testing.T) {
	m, reader := newTestMetrics(t)
	observer := NewClusterObserver(m)

	observer.CommandSent(1, "play", 3*time.Millisecond, nil)
	observer.CommandSent(1, "play", 5*time.Millisecond, errors.New("boom"))

	rm := collect(t, reader)
	met := findMetric(rm, "andelink.command.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}

	// One data point per status value.
	if len(hist.DataPoints) != 2 {
		t.Fatalf("len(DataPoints) = %d, want 2 (ok and error)", len(hist.DataPoints))
	}
	for _, dp := range hist.DataPoints {
		if dp.Count != 1 {
			t.Errorf("sample count = %d, want 1", dp.Count)
		}
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
