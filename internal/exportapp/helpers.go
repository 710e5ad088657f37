package exportapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/judibo/herbs2pg/internal/config"
	"github.com/judibo/herbs2pg/internal/datamapper"
	"github.com/judibo/herbs2pg/internal/entity"
	"github.com/judibo/herbs2pg/internal/introspection"
	"github.com/judibo/herbs2pg/internal/logging"
	"github.com/judibo/herbs2pg/internal/naming"
	"github.com/judibo/herbs2pg/internal/observability"
	"github.com/judibo/herbs2pg/internal/rowsource"
	"github.com/judibo/herbs2pg/internal/sqlutil"

	// Drivers registered with database/sql.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// InitLogger builds the process logger and, when log export is enabled, the
// OTLP logger provider feeding it.
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	var loggerProvider *observability.LoggerProvider
	if cfg.Observability.LogExportEnabled {
		lp, err := observability.InitLoggerProvider(context.Background(), observabilityConfig(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize log export: %w", err)
		}
		loggerProvider = lp
	}

	logCfg := logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if loggerProvider != nil {
		logCfg.LoggerProvider = loggerProvider.Provider()
	}
	logger, runID := logging.NewLogger(logCfg).WithRunID()
	slog.SetDefault(logger.Logger)

	logger.Debug("logger initialized",
		slog.String("run_id", runID),
		slog.Bool("otlp_export", loggerProvider != nil),
	)
	return logger, loggerProvider, nil
}

func observabilityConfig(cfg *config.Config) observability.Config {
	o := cfg.Observability
	return observability.Config{
		ServiceName:      o.ServiceName,
		ServiceVersion:   o.ServiceVersion,
		Environment:      o.Environment,
		TraceSampleRatio: o.TraceSampleRatio,
		OTLP: observability.ExporterConfig{
			Endpoint:          o.OTLP.Endpoint,
			Protocol:          o.OTLP.Protocol,
			Insecure:          o.OTLP.Insecure,
			TLSCertFile:       o.OTLP.TLSCertFile,
			TLSClientCertFile: o.OTLP.TLSClientCertFile,
			TLSClientKeyFile:  o.OTLP.TLSClientKeyFile,
			Headers:           o.OTLP.Headers,
			Timeout:           o.OTLP.Timeout,
			Compression:       o.OTLP.Compression,
			RetryEnabled:      o.OTLP.RetryEnabled,
		},
	}
}

func initTracing(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}
	tp, err := observability.InitTracerProvider(ctx, observabilityConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	logger.Info("tracing enabled",
		slog.String("endpoint", cfg.Observability.OTLP.Endpoint),
		slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio),
	)
	return tp, nil
}

func initMetrics(cfg *config.Config) (*observability.MeterProvider, *observability.ExportMetrics, error) {
	if cfg.Observability.MetricsTextfile == "" {
		return nil, nil, nil
	}
	mp, err := observability.InitMeterProvider(observabilityConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	metrics, err := observability.InitExportMetrics()
	if err != nil {
		return nil, nil, err
	}
	return mp, metrics, nil
}

func dbSystem(cfg *config.Config) attribute.KeyValue {
	if cfg.Database.DriverName() == config.DriverMySQL {
		return semconv.DBSystemMySQL
	}
	return semconv.DBSystemPostgreSQL
}

func connectDB(cfg *config.Config, logger *logging.Logger, statsEnabled bool) (*sql.DB, interface{ Unregister() error }, error) {
	opts := []otelsql.Option{
		otelsql.WithAttributes(dbSystem(cfg)),
		otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
	}

	db, err := otelsql.Open(cfg.Database.DriverName(), cfg.Database.DSN(), opts...)
	if err != nil {
		return nil, nil, err
	}

	if !statsEnabled {
		return db, nil, nil
	}
	reg, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(dbSystem(cfg)))
	if err != nil {
		logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
		return db, nil, nil
	}
	return db, reg, nil
}

func configureDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, db *sql.DB) error {
	db.SetMaxOpenConns(cfg.Database.Pool.MaxOpen)
	db.SetMaxIdleConns(cfg.Database.Pool.MaxIdle)
	db.SetConnMaxLifetime(cfg.Database.Pool.MaxLifetime)

	if err := waitForDatabase(ctx, cfg, logger, db); err != nil {
		return err
	}

	logger.Info("connected to database",
		slog.String("driver", cfg.Database.DriverName()),
		slog.String("catalog", cfg.Database.CatalogName()),
		slog.Int("pool_max_open", cfg.Database.Pool.MaxOpen),
	)
	return nil
}

func waitForDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, db *sql.DB) error {
	timeout := cfg.Database.ConnectionTimeout
	interval := cfg.Database.ConnectionRetryInterval

	if timeout == 0 {
		return db.PingContext(ctx)
	}

	deadline := time.Now().Add(timeout)
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempt++
		err := db.PingContext(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", timeout, err)
		}

		logger.Warn("database not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		interval = min(interval*2, 30*time.Second)
	}
}

// exportTarget is the resolved schema and table of an export.
type exportTarget struct {
	schema   *entity.Schema
	table    string
	idFields []string
	// source is "config" or "introspection".
	source string
}

func resolveTarget(ctx context.Context, cfg *config.Config, db introspection.Queryer, dialect sqlutil.Dialect, namer *naming.Namer, logger *slog.Logger) (*exportTarget, error) {
	exp := cfg.Export

	if exp.Entity != "" {
		ec, ok := cfg.Entity(exp.Entity, namer)
		if !ok {
			return nil, fmt.Errorf("entity %q is not configured", exp.Entity)
		}
		schema, err := ec.Schema()
		if err != nil {
			return nil, err
		}
		target := &exportTarget{schema: schema, table: ec.Table, idFields: ec.IDFields, source: "config"}
		if exp.Table != "" {
			target.table = exp.Table
		}
		if len(exp.IDFields) > 0 {
			target.idFields = exp.IDFields
		}
		return target, nil
	}

	if exp.Table == "" {
		return nil, fmt.Errorf("export needs an entity or a table")
	}

	table, err := introspection.IntrospectTable(ctx, db, dialect, cfg.Database.CatalogName(), exp.Table)
	if err != nil {
		return nil, err
	}
	schema, idFields, err := introspection.EntitySchema(*table, namer, logger)
	if err != nil {
		return nil, err
	}
	if len(exp.IDFields) > 0 {
		idFields = exp.IDFields
	}
	return &exportTarget{schema: schema, table: exp.Table, idFields: idFields, source: "introspection"}, nil
}

// targetName labels run metrics, falling back to the configured entity when
// no target was resolved.
func targetName(cfg *config.Config, target *exportTarget) string {
	if target != nil {
		return target.schema.Name()
	}
	if cfg.Export.Entity != "" {
		return cfg.Export.Entity
	}
	return cfg.Export.Table
}

// hasCompleteKey reports whether every identifier column of the current row
// is present and non-NULL.
func hasCompleteKey(m *datamapper.DataMapper) bool {
	values, ok := m.IDValues()
	if !ok {
		return false
	}
	for _, v := range values {
		if v == nil {
			return false
		}
	}
	return true
}

// restoreRows inserts every decoded document through src and returns the
// number inserted.
func restoreRows(ctx context.Context, src *rowsource.Source, mapper *datamapper.DataMapper, table string, dec rowDecoder) (int, error) {
	count := 0
	for {
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, fmt.Errorf("decode document %d: %w", count+1, err)
		}
		if _, err := src.Insert(ctx, mapper, table, doc); err != nil {
			return count, fmt.Errorf("document %d: %w", count+1, err)
		}
		count++
	}
}

// buildQuery maps export settings onto a row query. Rows are ordered by the
// identifier columns unless an order is configured.
func buildQuery(exp config.ExportConfig, mapper *datamapper.DataMapper) rowsource.Query {
	q := rowsource.Query{
		Where:   exp.Where,
		OrderBy: exp.OrderBy,
	}
	if len(q.OrderBy) == 0 {
		q.OrderBy = mapper.TableIDs()
	}
	if exp.Limit > 0 {
		q.Limit = uint64(exp.Limit)
	}
	if exp.Offset > 0 {
		q.Offset = uint64(exp.Offset)
	}
	return q
}

// qualifiedTable prefixes PostgreSQL tables outside the public schema.
func qualifiedTable(dialect sqlutil.Dialect, catalog, table string) string {
	if dialect != sqlutil.Postgres || strings.Contains(table, ".") || catalog == "" || catalog == "public" {
		return table
	}
	return catalog + "." + table
}
