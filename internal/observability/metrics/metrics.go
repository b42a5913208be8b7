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

// Metrics exposes case lifecycle instruments.
type Metrics struct {
	ingestRows      metric.Int64Counter
	ingestBatches   metric.Int64Counter
	ingestDuration  metric.Float64Histogram
	payments        metric.Int64Counter
	negotiations    metric.Int64Counter
	reclassified    metric.Int64Counter
	actionsNotified metric.Int64Counter
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

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))
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

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "recovery"
	}
	meter := provider.Meter(name)

	ingestRows, err := meter.Int64Counter("recovery_ingestion_rows_total")
	if err != nil {
		return nil, err
	}
	ingestBatches, err := meter.Int64Counter("recovery_ingestion_batches_total")
	if err != nil {
		return nil, err
	}
	ingestDuration, err := meter.Float64Histogram("recovery_ingestion_run_duration_seconds", metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	payments, err := meter.Int64Counter("recovery_payments_total")
	if err != nil {
		return nil, err
	}
	negotiations, err := meter.Int64Counter("recovery_negotiations_total")
	if err != nil {
		return nil, err
	}
	reclassified, err := meter.Int64Counter("recovery_reclassified_cases_total")
	if err != nil {
		return nil, err
	}
	actionsNotified, err := meter.Int64Counter("recovery_action_events_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ingestRows:      ingestRows,
		ingestBatches:   ingestBatches,
		ingestDuration:  ingestDuration,
		payments:        payments,
		negotiations:    negotiations,
		reclassified:    reclassified,
		actionsNotified: actionsNotified,
	}, nil
}

// RecordIngestRows adds row outcomes (processed, skipped, error, malformed).
func (m *Metrics) RecordIngestRows(ctx context.Context, source, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.ingestRows.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordIngestBatch(ctx context.Context, source, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.ingestBatches.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) ObserveIngestRun(ctx context.Context, source, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.ingestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

// RecordPayment increments payment counts by kind (full, partial).
func (m *Metrics) RecordPayment(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("kind", strings.TrimSpace(kind)))
	m.payments.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNegotiation increments negotiation counts by offer kind and outcome.
func (m *Metrics) RecordNegotiation(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("kind", strings.TrimSpace(kind)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.negotiations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordReclassification(ctx context.Context, zone, action string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("zone", strings.TrimSpace(zone)),
		attribute.String("action", strings.TrimSpace(action)),
	)
	m.reclassified.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordActionEvent(ctx context.Context, action, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("action", strings.TrimSpace(action)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.actionsNotified.Add(ctx, 1, metric.WithAttributes(attrs...))
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

var allowedLabelKeys = map[attribute.Key]struct{}{
	"source":  {},
	"outcome": {},
	"status":  {},
	"kind":    {},
	"zone":    {},
	"action":  {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
