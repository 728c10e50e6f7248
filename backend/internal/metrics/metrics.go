// Package metrics records playback and synthesis counters through
// OpenTelemetry and exposes them in Prometheus format.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "texvoice"

// Drop reasons
const (
	DropSynthesis = "synthesis"
	DropTranscode = "transcode"
	DropFlushed   = "flushed"
	DropBacklog   = "backlog"
)

// Setup builds a meter provider backed by the Prometheus exporter and
// returns the handler serving the scrape endpoint.
func Setup(ctx context.Context, serviceName, env string) (*sdkmetric.MeterProvider, http.Handler, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("deployment.environment", env),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	return provider, promhttp.Handler(), nil
}

// Recorder holds the bot's instruments. A nil *Recorder records nothing.
type Recorder struct {
	enqueued  metric.Int64Counter
	played    metric.Int64Counter
	dropped   metric.Int64Counter
	synthesis metric.Float64Histogram
	sessions  metric.Int64UpDownCounter
}

// NewRecorder creates the instruments on the given provider
func NewRecorder(provider metric.MeterProvider) (*Recorder, error) {
	meter := provider.Meter(meterName)
	r := &Recorder{}

	var err error
	if r.enqueued, err = meter.Int64Counter("texvoice.items.enqueued",
		metric.WithDescription("Audio items appended to a session queue")); err != nil {
		return nil, err
	}
	if r.played, err = meter.Int64Counter("texvoice.items.played",
		metric.WithDescription("Audio items that finished streaming")); err != nil {
		return nil, err
	}
	if r.dropped, err = meter.Int64Counter("texvoice.items.dropped",
		metric.WithDescription("Utterances discarded before or during playback")); err != nil {
		return nil, err
	}
	if r.synthesis, err = meter.Float64Histogram("texvoice.synthesis.duration",
		metric.WithDescription("Time from text to playable frames"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.sessions, err = meter.Int64UpDownCounter("texvoice.sessions.active",
		metric.WithDescription("Connected voice sessions")); err != nil {
		return nil, err
	}
	return r, nil
}

// ItemEnqueued counts an item appended to a guild's queue
func (r *Recorder) ItemEnqueued(ctx context.Context, guildID string) {
	if r == nil {
		return
	}
	r.enqueued.Add(ctx, 1, metric.WithAttributes(attribute.String("guild_id", guildID)))
}

// ItemPlayed counts an item whose playback completed
func (r *Recorder) ItemPlayed(ctx context.Context, guildID string, failed bool) {
	if r == nil {
		return
	}
	r.played.Add(ctx, 1, metric.WithAttributes(
		attribute.String("guild_id", guildID),
		attribute.Bool("failed", failed),
	))
}

// ItemDropped counts a discarded utterance
func (r *Recorder) ItemDropped(ctx context.Context, guildID, reason string) {
	if r == nil {
		return
	}
	r.dropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("guild_id", guildID),
		attribute.String("reason", reason),
	))
}

// SynthesisObserved records how long one synthesis took
func (r *Recorder) SynthesisObserved(ctx context.Context, speakerID int, took time.Duration, err error) {
	if r == nil {
		return
	}
	r.synthesis.Record(ctx, took.Seconds(), metric.WithAttributes(
		attribute.Int("speaker_id", speakerID),
		attribute.Bool("error", err != nil),
	))
}

// SessionOpened increments the active session gauge
func (r *Recorder) SessionOpened(ctx context.Context) {
	if r == nil {
		return
	}
	r.sessions.Add(ctx, 1)
}

// SessionClosed decrements the active session gauge
func (r *Recorder) SessionClosed(ctx context.Context) {
	if r == nil {
		return
	}
	r.sessions.Add(ctx, -1)
}
