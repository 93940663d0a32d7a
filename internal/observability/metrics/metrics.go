package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	chargeAttempts     metric.Int64Counter
	chargeOutcomes     metric.Int64Counter
	webhookEvents      metric.Int64Counter
	rateLimitAllowed   metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
	rateLimitDegraded  metric.Int64Counter
	breakerTransitions metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "paycore"
	}
	meter := provider.Meter(name)

	chargeAttempts, err := meter.Int64Counter("paycore_charge_attempts_total")
	if err != nil {
		return nil, err
	}
	chargeOutcomes, err := meter.Int64Counter("paycore_charge_outcomes_total")
	if err != nil {
		return nil, err
	}
	webhookEvents, err := meter.Int64Counter("paycore_webhook_events_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("paycore_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("paycore_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}
	rateLimitDegraded, err := meter.Int64Counter("paycore_rate_limit_degraded_total")
	if err != nil {
		return nil, err
	}
	breakerTransitions, err := meter.Int64Counter("paycore_breaker_transitions_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		chargeAttempts:     chargeAttempts,
		chargeOutcomes:     chargeOutcomes,
		webhookEvents:      webhookEvents,
		rateLimitAllowed:   rateLimitAllowed,
		rateLimitDenied:    rateLimitDenied,
		rateLimitDegraded:  rateLimitDegraded,
		breakerTransitions: breakerTransitions,
	}, nil
}

// RecordChargeAttempt increments provider charge attempt counts.
func (m *Metrics) RecordChargeAttempt(ctx context.Context, attempt int) {
	if m == nil {
		return
	}
	m.chargeAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("attempt", attempt),
	))
}

// RecordChargeOutcome increments terminal charge outcome counts.
func (m *Metrics) RecordChargeOutcome(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.chargeOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
	))
}

// RecordWebhookEvent increments webhook event counts.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, eventType, result string) {
	if m == nil {
		return
	}
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("result", strings.TrimSpace(result)),
	))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
	))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
	))
}

// RecordRateLimitDegraded counts fail-open admissions while the window
// store is unreachable.
func (m *Metrics) RecordRateLimitDegraded(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.rateLimitDegraded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
	))
}

// RecordBreakerTransition increments breaker state change counts.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, dependency, from, to string) {
	if m == nil {
		return
	}
	m.breakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dependency", strings.TrimSpace(dependency)),
		attribute.String("from", strings.TrimSpace(from)),
		attribute.String("to", strings.TrimSpace(to)),
	))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}
