// Package exportapp owns the lifecycle of an export run: observability
// setup, database connection, schema resolution, and row streaming.
package exportapp

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/judibo/herbs2pg/internal/config"
	"github.com/judibo/herbs2pg/internal/datamapper"
	"github.com/judibo/herbs2pg/internal/dbexec"
	"github.com/judibo/herbs2pg/internal/logging"
	"github.com/judibo/herbs2pg/internal/naming"
	"github.com/judibo/herbs2pg/internal/observability"
	"github.com/judibo/herbs2pg/internal/rowsource"
	"github.com/judibo/herbs2pg/internal/sqlutil"
)

// App runs one export.
type App struct {
	cfg     *config.Config
	logger  *logging.Logger
	namer   *naming.Namer
	dialect sqlutil.Dialect

	loggerProvider *observability.LoggerProvider
	tracerProvider *observability.TracerProvider
	meterProvider  *observability.MeterProvider
	metrics        *observability.ExportMetrics

	db       *sql.DB
	executor dbexec.QueryExecutor

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	dialect, err := sqlutil.ParseDialect(cfg.Database.DriverName())
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		namer:   naming.New(cfg.Naming, logger.Logger),
		dialect: dialect,
	}, nil
}

// AttachLoggerProvider hands the OTLP log provider to the app so Shutdown
// flushes it last.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	if provider == nil {
		return
	}
	a.loggerProvider = provider
	a.cleanup.push("logger provider", func(ctx context.Context) error {
		return provider.Shutdown(ctx)
	})
}

// Init starts tracing and metrics, then connects to the database.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	if a.initialized {
		return fmt.Errorf("app already initialized")
	}

	tp, err := initTracing(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	if tp != nil {
		a.tracerProvider = tp
		a.cleanup.push("tracer provider", func(ctx context.Context) error {
			return tp.Shutdown(ctx, a.logger.Logger)
		})
	}

	mp, metrics, err := initMetrics(a.cfg)
	if err != nil {
		return err
	}
	if mp != nil {
		a.meterProvider = mp
		a.metrics = metrics
		a.cleanup.push("meter provider", func(ctx context.Context) error {
			if err := mp.WriteTextfile(a.cfg.Observability.MetricsTextfile); err != nil {
				a.logger.Warn("failed to write metrics", slog.String("error", err.Error()))
			}
			return mp.Shutdown(ctx, a.logger.Logger)
		})
	}

	db, dbStatsReg, err := connectDB(a.cfg, a.logger, mp != nil)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.cleanup.push("database", func(context.Context) error {
		return db.Close()
	})
	if dbStatsReg != nil {
		a.cleanup.push("database stats", func(context.Context) error {
			return dbStatsReg.Unregister()
		})
	}

	if err := configureDatabase(ctx, a.cfg, a.logger, db); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	a.db = db
	a.executor = dbexec.NewStandardExecutor(db)
	a.initialized = true
	return nil
}

// Run resolves the export schema, streams every selected row through a data
// mapper and writes one document per row to out in the configured format.
// It returns the number of rows written.
func (a *App) Run(ctx context.Context, out io.Writer) (int, error) {
	if !a.ready() {
		return 0, fmt.Errorf("app not initialized")
	}

	start := time.Now()
	target, mapper, err := a.prepare(ctx)
	if err != nil {
		a.metrics.RecordRun(ctx, targetName(a.cfg, target), start, err)
		return 0, err
	}
	entityName := target.schema.Name()

	logger := a.logger.WithFields(
		slog.String("entity", entityName),
		slog.String("table", target.table),
	)
	ctx = logging.WithLogger(ctx, logger)

	query := buildQuery(a.cfg.Export, mapper)
	logger.Info("export started",
		slog.Int("fields", target.schema.Len()),
		slog.Any("id_fields", mapper.IDFields()),
		slog.Any("id_columns", mapper.TableIDs()),
		slog.String("source", target.source),
	)

	enc, err := newRowEncoder(a.cfg.Export.Format, out, a.cfg.Export.Pretty)
	if err != nil {
		a.metrics.RecordRun(ctx, entityName, start, err)
		return 0, err
	}

	keyed := len(mapper.IDFields()) > 0
	unkeyed := 0
	src := rowsource.New(a.executor, a.dialect)
	n, err := src.Each(ctx, mapper, qualifiedTable(a.dialect, a.cfg.Database.CatalogName(), target.table), query,
		func(m *datamapper.DataMapper) error {
			if keyed && !hasCompleteKey(m) {
				unkeyed++
			}
			return enc.Encode(m.Data())
		})
	if closeErr := closeEncoder(enc); err == nil {
		err = closeErr
	}
	a.metrics.RecordRows(ctx, entityName, n)
	a.metrics.RecordRun(ctx, entityName, start, err)
	if err != nil {
		return n, fmt.Errorf("export %s: %w", target.table, err)
	}

	if unkeyed > 0 {
		logger.Warn("rows without a complete identifier",
			slog.Int("rows", unkeyed),
			slog.Any("id_fields", mapper.IDFields()),
		)
	}
	logger.Info("export complete",
		slog.Int("rows", n),
		slog.Duration("elapsed", time.Since(start)),
	)
	return n, nil
}

// Restore reads entity documents from in, in the configured format, and
// inserts each one as a row of the target table. All rows are written in one
// transaction; on error it is rolled back and no rows are reported.
func (a *App) Restore(ctx context.Context, in io.Reader) (int, error) {
	if !a.ready() {
		return 0, fmt.Errorf("app not initialized")
	}

	start := time.Now()
	target, mapper, err := a.prepare(ctx)
	if err != nil {
		a.metrics.RecordRun(ctx, targetName(a.cfg, target), start, err)
		return 0, err
	}
	entityName := target.schema.Name()

	logger := a.logger.WithFields(
		slog.String("entity", entityName),
		slog.String("table", target.table),
	)
	ctx = logging.WithLogger(ctx, logger)

	dec, err := newRowDecoder(a.cfg.Export.Format, in)
	if err != nil {
		a.metrics.RecordRun(ctx, entityName, start, err)
		return 0, err
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		err = fmt.Errorf("begin restore: %w", err)
		a.metrics.RecordRun(ctx, entityName, start, err)
		return 0, err
	}

	src := rowsource.New(dbexec.NewTxExecutor(tx), a.dialect)
	n, err := restoreRows(ctx, src, mapper, qualifiedTable(a.dialect, a.cfg.Database.CatalogName(), target.table), dec)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Warn("rollback failed", slog.String("error", rbErr.Error()))
		}
		a.metrics.RecordRun(ctx, entityName, start, err)
		return 0, fmt.Errorf("restore %s: %w", target.table, err)
	}
	if err := tx.Commit(); err != nil {
		err = fmt.Errorf("restore %s: commit: %w", target.table, err)
		a.metrics.RecordRun(ctx, entityName, start, err)
		return 0, err
	}

	a.metrics.RecordRows(ctx, entityName, n)
	a.metrics.RecordRun(ctx, entityName, start, nil)
	logger.Info("restore complete",
		slog.Int("rows", n),
		slog.Duration("elapsed", time.Since(start)),
	)
	return n, nil
}

func (a *App) ready() bool {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.initialized
}

// prepare resolves the target and binds a mapper to its schema. The target
// is returned even when the mapper cannot be built.
func (a *App) prepare(ctx context.Context) (*exportTarget, *datamapper.DataMapper, error) {
	target, err := resolveTarget(ctx, a.cfg, a.db, a.dialect, a.namer, a.logger.Logger)
	if err != nil {
		return nil, nil, err
	}
	mapper, err := datamapper.GetFrom(target.schema, target.idFields...)
	if err != nil {
		return target, nil, err
	}
	return target, mapper, nil
}
