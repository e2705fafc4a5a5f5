// Package observe provides observability primitives for the andelink bot:
// OpenTelemetry metrics for cluster traffic and node lifecycle, a Prometheus
// exporter bridge, and an andelink.Observer implementation that feeds the
// instruments.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/andelink-audio/andelink/pkg/andelink"
)

// meterName is the instrumentation scope name used for all andelink metrics.
const meterName = "github.com/andelink-audio/andelink"

// Metrics holds all OpenTelemetry metric instruments for the bot.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// CommandDuration tracks outbound command write latency. Use with
	// attributes: attribute.String("op", ...), attribute.String("status", ...)
	CommandDuration metric.Float64Histogram

	// FramesReceived counts classified inbound frames. Use with attribute:
	//   attribute.String("op", ...)
	FramesReceived metric.Int64Counter

	// NodeConnects counts successful node connections.
	NodeConnects metric.Int64Counter

	// NodeDisconnects counts node disconnections pending reconnect.
	NodeDisconnects metric.Int64Counter

	// NodeTerminations counts nodes that exhausted their reconnect budget.
	NodeTerminations metric.Int64Counter

	// ConnectedNodes tracks the number of currently connected nodes.
	ConnectedNodes metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// single-frame websocket writes.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CommandDuration, err = m.Float64Histogram("andelink.command.duration",
		metric.WithDescription("Latency of outbound command frame writes."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FramesReceived, err = m.Int64Counter("andelink.frames.received",
		metric.WithDescription("Total classified inbound frames by op."),
	); err != nil {
		return nil, err
	}
	if met.NodeConnects, err = m.Int64Counter("andelink.node.connects",
		metric.WithDescription("Total successful node connections."),
	); err != nil {
		return nil, err
	}
	if met.NodeDisconnects, err = m.Int64Counter("andelink.node.disconnects",
		metric.WithDescription("Total node disconnections pending reconnect."),
	); err != nil {
		return nil, err
	}
	if met.NodeTerminations, err = m.Int64Counter("andelink.node.terminations",
		metric.WithDescription("Total nodes permanently removed after exhausting reconnect attempts."),
	); err != nil {
		return nil, err
	}
	if met.ConnectedNodes, err = m.Int64UpDownCounter("andelink.nodes.connected",
		metric.WithDescription("Number of currently connected nodes."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// ── Cluster observer ──────────────────────────────────────────────────────────

// Compile-time assertion that ClusterObserver satisfies andelink.Observer.
var _ andelink.Observer = (*ClusterObserver)(nil)

// ClusterObserver implements andelink.Observer by recording every
// notification into the given Metrics. Node ids are attached as attributes.
type ClusterObserver struct {
	metrics *Metrics
}

// NewClusterObserver creates an observer backed by m.
func NewClusterObserver(m *Metrics) *ClusterObserver {
	return &ClusterObserver{metrics: m}
}

// NodeConnected records a connection and bumps the connected-nodes gauge.
func (o *ClusterObserver) NodeConnected(nodeID int) {
	ctx := context.Background()
	o.metrics.NodeConnects.Add(ctx, 1, metric.WithAttributes(attribute.Int("node_id", nodeID)))
	o.metrics.ConnectedNodes.Add(ctx, 1)
}

// NodeDisconnected records a disconnection and drops the gauge.
func (o *ClusterObserver) NodeDisconnected(nodeID int) {
	ctx := context.Background()
	o.metrics.NodeDisconnects.Add(ctx, 1, metric.WithAttributes(attribute.Int("node_id", nodeID)))
	o.metrics.ConnectedNodes.Add(ctx, -1)
}

// NodeTerminated records a permanent node removal.
func (o *ClusterObserver) NodeTerminated(nodeID int) {
	o.metrics.NodeTerminations.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Int("node_id", nodeID)))
}

// FrameReceived counts one classified inbound frame.
func (o *ClusterObserver) FrameReceived(nodeID int, op string) {
	o.metrics.FramesReceived.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.Int("node_id", nodeID),
			attribute.String("op", op),
		))
}

// CommandSent records the duration and outcome of one command write.
func (o *ClusterObserver) CommandSent(nodeID int, op string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.CommandDuration.Record(context.Background(), elapsed.Seconds(),
		metric.WithAttributes(
			attribute.Int("node_id", nodeID),
			attribute.String("op", op),
			attribute.String("status", status),
		))
}
