package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MeterProvider collects metrics into a private Prometheus registry.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry
}

// InitMeterProvider installs a global meter provider backed by a fresh
// Prometheus registry.
func InitMeterProvider(cfg Config) (*MeterProvider, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	return &MeterProvider{provider: provider, registry: registry}, nil
}

// WriteTextfile writes the current metrics to path in the Prometheus text
// format. The file is replaced atomically.
func (mp *MeterProvider) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, mp.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Shutdown stops the meter provider.
func (mp *MeterProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := mp.provider.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown meter provider", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// ExportMetrics records row mapping activity of a run.
type ExportMetrics struct {
	rowsMapped   metric.Int64Counter
	runDuration  metric.Float64Histogram
	runFailures  metric.Int64Counter
	lastRunEpoch metric.Int64Gauge
}

// InitExportMetrics creates the export instruments on the global meter.
func InitExportMetrics() (*ExportMetrics, error) {
	meter := otel.Meter("herbs2pg")

	rowsMapped, err := meter.Int64Counter(
		"herbs2pg.rows.mapped",
		metric.WithDescription("Rows loaded into a data mapper and written out"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rows counter: %w", err)
	}

	runDuration, err := meter.Float64Histogram(
		"herbs2pg.run.duration",
		metric.WithDescription("Duration of an export run in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run duration histogram: %w", err)
	}

	runFailures, err := meter.Int64Counter(
		"herbs2pg.run.failures",
		metric.WithDescription("Export runs that ended with an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run failures counter: %w", err)
	}

	lastRunEpoch, err := meter.Int64Gauge(
		"herbs2pg.run.last_completed",
		metric.WithDescription("Unix time of the last completed export run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create last run gauge: %w", err)
	}

	return &ExportMetrics{
		rowsMapped:   rowsMapped,
		runDuration:  runDuration,
		runFailures:  runFailures,
		lastRunEpoch: lastRunEpoch,
	}, nil
}

// RecordRows adds n mapped rows for entity.
func (m *ExportMetrics) RecordRows(ctx context.Context, entity string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsMapped.Add(ctx, int64(n), metric.WithAttributes(attribute.String("entity", entity)))
}

// RecordRun records the outcome of a run that started at start.
func (m *ExportMetrics) RecordRun(ctx context.Context, entity string, start time.Time, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("entity", entity))
	m.runDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		m.runFailures.Add(ctx, 1, attrs)
		return
	}
	m.lastRunEpoch.Record(ctx, time.Now().Unix(), attrs)
}
