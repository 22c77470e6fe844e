// Package observability exports governance metrics over OpenTelemetry.
// Telemetry is optional: a nil *Metrics is a valid no-op receiver, so
// callers never need to guard instrumentation sites.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/warden-ai/warden/pkg/config"
)

// Metrics holds the governance counters.
type Metrics struct {
	provider *sdkmetric.MeterProvider

	decisionsLogged     metric.Int64Counter
	escalationsCreated  metric.Int64Counter
	guardrailViolations metric.Int64Counter
	revertsFailed       metric.Int64Counter
}

// New builds a metrics pipeline. When cfg.Enabled is false it returns
// (nil, nil) and every instrumentation site becomes a no-op.
func New(ctx context.Context, cfg config.TelemetryConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("observability: create exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("warden"),
	))
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second))),
	)

	return newWithProvider(provider)
}

func newWithProvider(provider *sdkmetric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("github.com/warden-ai/warden")

	m := &Metrics{provider: provider}
	var err error
	if m.decisionsLogged, err = meter.Int64Counter("warden.decisions.logged",
		metric.WithDescription("Decision entries appended to the audit trail")); err != nil {
		return nil, err
	}
	if m.escalationsCreated, err = meter.Int64Counter("warden.escalations.created",
		metric.WithDescription("Escalations created, by type")); err != nil {
		return nil, err
	}
	if m.guardrailViolations, err = meter.Int64Counter("warden.guardrail.violations",
		metric.WithDescription("BLOCKED verdicts entering the guardrail protocol")); err != nil {
		return nil, err
	}
	if m.revertsFailed, err = meter.Int64Counter("warden.reverts.failed",
		metric.WithDescription("Files that failed to restore during revert")); err != nil {
		return nil, err
	}
	return m, nil
}

// DecisionLogged counts one audit append.
func (m *Metrics) DecisionLogged(ctx context.Context, decisionType string) {
	if m == nil {
		return
	}
	m.decisionsLogged.Add(ctx, 1, metric.WithAttributes(attribute.String("decision_type", decisionType)))
}

// EscalationCreated counts one escalation.
func (m *Metrics) EscalationCreated(ctx context.Context, escalationType string) {
	if m == nil {
		return
	}
	m.escalationsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("escalation_type", escalationType)))
}

// GuardrailViolation counts one protocol entry.
func (m *Metrics) GuardrailViolation(ctx context.Context) {
	if m == nil {
		return
	}
	m.guardrailViolations.Add(ctx, 1)
}

// RevertsFailed counts files that could not be restored.
func (m *Metrics) RevertsFailed(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.revertsFailed.Add(ctx, int64(n))
}

// Shutdown flushes and stops the pipeline.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
