// Package observe provides observability primitives for the cadenza bot:
// OpenTelemetry metrics over the playback event stream, plus a Prometheus
// exporter bridge via [InitProvider] so metrics are scraped from the
// standard /metrics endpoint.
//
// The cadenza library itself is metrics-free; this package records metrics
// by subscribing to the client event bus with [Metrics.HandleEvent]. A
// package-level default [Metrics] instance ([DefaultMetrics]) is provided
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

	"github.com/cadenza-audio/cadenza/pkg/cadenza"
)

// meterName is the instrumentation scope name used for all cadenza metrics.
const meterName = "github.com/cadenza-audio/cadenza"

// Metrics holds all OpenTelemetry metric instruments for the bot.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Track lifecycle counters ---

	// TracksStarted counts tracks the nodes confirmed started. Use with
	// attribute: attribute.String("node", ...)
	TracksStarted metric.Int64Counter

	// TracksEnded counts finished tracks. Use with attributes:
	//   attribute.String("node", ...), attribute.String("reason", ...)
	TracksEnded metric.Int64Counter

	// TracksSkipped counts tracks the playback loop dropped. Use with
	// attribute: attribute.String("reason", ...)
	TracksSkipped metric.Int64Counter

	// --- Error counters ---

	// TrackExceptions counts server-side playback failures. Use with
	// attributes:
	//   attribute.String("node", ...), attribute.String("severity", ...)
	TrackExceptions metric.Int64Counter

	// TracksStuck counts stuck-track reports.
	TracksStuck metric.Int64Counter

	// VoiceClosures counts voice websocket closures reported by the nodes.
	// Use with attribute: attribute.Bool("by_remote", ...)
	VoiceClosures metric.Int64Counter

	// NodeDisconnects counts node websocket drops that were not locally
	// requested. Use with attribute: attribute.String("node", ...)
	NodeDisconnects metric.Int64Counter

	// --- Latency ---

	// NodePing tracks node round-trip latency, recorded by the stats
	// poller for nodes that support ping.
	NodePing metric.Float64Histogram
}

// pingBuckets defines histogram bucket boundaries (in seconds) sized for
// websocket round trips.
var pingBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Track lifecycle counters.
	if met.TracksStarted, err = m.Int64Counter("cadenza.tracks.started",
		metric.WithDescription("Total tracks confirmed started by node."),
	); err != nil {
		return nil, err
	}
	if met.TracksEnded, err = m.Int64Counter("cadenza.tracks.ended",
		metric.WithDescription("Total tracks ended by node and end reason."),
	); err != nil {
		return nil, err
	}
	if met.TracksSkipped, err = m.Int64Counter("cadenza.tracks.skipped",
		metric.WithDescription("Total tracks dropped by the playback loop, by reason."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.TrackExceptions, err = m.Int64Counter("cadenza.tracks.exceptions",
		metric.WithDescription("Total server-side playback failures by node and severity."),
	); err != nil {
		return nil, err
	}
	if met.TracksStuck, err = m.Int64Counter("cadenza.tracks.stuck",
		metric.WithDescription("Total stuck-track reports."),
	); err != nil {
		return nil, err
	}
	if met.VoiceClosures, err = m.Int64Counter("cadenza.voice.closures",
		metric.WithDescription("Total voice websocket closures reported by the nodes."),
	); err != nil {
		return nil, err
	}
	if met.NodeDisconnects, err = m.Int64Counter("cadenza.node.disconnects",
		metric.WithDescription("Total unrequested node websocket drops."),
	); err != nil {
		return nil, err
	}

	// Latency histogram.
	if met.NodePing, err = m.Float64Histogram("cadenza.node.ping",
		metric.WithDescription("Node websocket round-trip latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(pingBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RegisterPlayerGauge registers an observable gauge reporting the current
// number of players across all nodes. The returned registration can be
// unregistered to stop observing.
func RegisterPlayerGauge(mp metric.MeterProvider, count func() int64) (metric.Registration, error) {
	m := mp.Meter(meterName)
	gauge, err := m.Int64ObservableGauge("cadenza.players.active",
		metric.WithDescription("Number of players across all nodes."),
	)
	if err != nil {
		return nil, err
	}
	return m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, count())
		return nil
	}, gauge)
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
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

// HandleEvent records metrics for one playback event. Register it on the
// client with client.AddHandler(metrics.HandleEvent).
func (m *Metrics) HandleEvent(event cadenza.Event) {
	ctx := context.Background()

	switch event := event.(type) {
	case cadenza.TrackStart:
		m.TracksStarted.Add(ctx, 1, metric.WithAttributes(
			attribute.String("node", event.Player.Node().Identifier()),
		))
	case cadenza.TrackEnd:
		m.TracksEnded.Add(ctx, 1, metric.WithAttributes(
			attribute.String("node", event.Player.Node().Identifier()),
			attribute.String("reason", event.Reason),
		))
	case cadenza.TrackSkipped:
		m.TracksSkipped.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", event.Reason),
		))
	case cadenza.TrackException:
		m.TrackExceptions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("node", event.Player.Node().Identifier()),
			attribute.String("severity", event.Severity),
		))
	case cadenza.TrackStuck:
		m.TracksStuck.Add(ctx, 1)
	case cadenza.WebSocketClosed:
		m.VoiceClosures.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("by_remote", event.ByRemote),
		))
	case cadenza.NodeDisconnected:
		m.NodeDisconnects.Add(ctx, 1, metric.WithAttributes(
			attribute.String("node", event.Node.Identifier()),
		))
	}
}

// RecordNodePing records one round-trip measurement for a node.
func (m *Metrics) RecordNodePing(ctx context.Context, node string, rtt time.Duration) {
	m.NodePing.Record(ctx, rtt.Seconds(), metric.WithAttributes(
		attribute.String("node", node),
	))
}
