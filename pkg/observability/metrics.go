package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/Alijeyrad/medvault_backend/pkg/observability"
)

// Tracer returns the service tracer. A no-op tracer until Init installs a provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// KeyMetrics counts key distribution and access request events.
// Instruments resolve against the global meter provider, so they are no-ops
// when telemetry is disabled.
type KeyMetrics struct {
	transitions metric.Int64Counter
	fetches     metric.Int64Counter
	escrowed    metric.Int64Counter
	skipped     metric.Int64Counter
}

func NewKeyMetrics() *KeyMetrics {
	meter := otel.Meter(tracerName)

	transitions, _ := meter.Int64Counter(
		"medvault_access_transitions_total",
		metric.WithDescription("Access request state transitions"),
	)
	fetches, _ := meter.Int64Counter(
		"medvault_key_fetches_total",
		metric.WithDescription("Doctor key fetches by outcome"),
	)
	escrowed, _ := meter.Int64Counter(
		"medvault_keys_escrowed_total",
		metric.WithDescription("Record keys placed in grant bundles"),
	)
	skipped, _ := meter.Int64Counter(
		"medvault_keys_skipped_total",
		metric.WithDescription("Records skipped during escrow by reason"),
	)

	return &KeyMetrics{
		transitions: transitions,
		fetches:     fetches,
		escrowed:    escrowed,
		skipped:     skipped,
	}
}

func (m *KeyMetrics) Transition(ctx context.Context, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("to", to)))
}

func (m *KeyMetrics) Fetch(ctx context.Context, outcome string) {
	if m == nil || m.fetches == nil {
		return
	}
	m.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *KeyMetrics) Escrowed(ctx context.Context, n int) {
	if m == nil || m.escrowed == nil {
		return
	}
	m.escrowed.Add(ctx, int64(n))
}

func (m *KeyMetrics) Skipped(ctx context.Context, reason string) {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
