// Command stmtgroup applies a mutation plan to a database, one statement
// group per row change, and reports the statements it ran.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	_ "modernc.org/sqlite"

	"github.com/syssam/stmtgroup/config"
	"github.com/syssam/stmtgroup/dialect"
	dsql "github.com/syssam/stmtgroup/dialect/sql"
	"github.com/syssam/stmtgroup/internal/logging"
	"github.com/syssam/stmtgroup/internal/plan"
	"github.com/syssam/stmtgroup/mutation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("stmtgroup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load(args)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	level := logging.ParseLevel(cfg.Log.Level)
	var lp *sdklog.LoggerProvider
	if cfg.Tracing.Enabled {
		lp = newLoggerProvider(stderr, level)
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr, LoggerProvider: lp})
	if lp != nil {
		defer func() {
			if err := lp.Shutdown(context.Background()); err != nil {
				logger.Warn("failed to shut down logger provider", slog.String("error", err.Error()))
			}
		}()
	}
	if cfg.Plan == "" {
		return fmt.Errorf("no plan given")
	}
	p, err := plan.Load(cfg.Plan)
	if err != nil {
		return err
	}

	var tp trace.TracerProvider = noop.NewTracerProvider()
	if cfg.Tracing.Enabled {
		sdk := newTracerProvider(logger)
		defer func() {
			if err := sdk.Shutdown(context.Background()); err != nil {
				logger.Warn("failed to shut down tracer provider", slog.String("error", err.Error()))
			}
		}()
		tp = sdk
	}

	db, err := openDB(cfg, tp)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	stats := dsql.NewStatsDriver(
		dsql.OpenDB(cfg.Database.Dialect(), db),
		dsql.WithSlowThreshold(cfg.Stats.SlowThreshold),
		dsql.WithSlowQueryLog(logger),
	)
	defer stats.Close()
	var drv dialect.Driver = stats
	if level <= slog.LevelDebug {
		drv = dsql.NewDebugDriver(stats, dsql.DebugWithLog(func(ctx context.Context, v ...any) {
			logger.DebugContext(ctx, fmt.Sprint(v...))
		}))
	}

	ctx, cancel := context.WithTimeout(logging.WithLogger(ctx, logger), cfg.Database.Timeout)
	defer cancel()
	runner := plan.NewRunner(drv, cfg.Database.Driver, plan.WithExecutorOptions(mutation.WithTracerProvider(tp)))
	results, err := runner.Apply(ctx, p)
	if err != nil {
		return err
	}
	for i, res := range results {
		fmt.Fprintf(stdout, "%d %s: executed=%v skipped=%v", i+1, p.Mutations[i].Type, res.Executed, res.Skipped)
		if res.GeneratedKey != nil {
			fmt.Fprintf(stdout, " key=%v", res.GeneratedKey)
		}
		fmt.Fprintln(stdout)
	}
	logger.Info("plan applied", slog.String("entity", p.Entity), slog.String("stats", stats.QueryStats().Stats().String()))
	if cfg.Metrics.Enabled {
		return writeMetrics(stdout, cfg.Metrics.Namespace, stats.QueryStats())
	}
	return nil
}

func openDB(cfg *config.Config, tp trace.TracerProvider) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	if cfg.Tracing.Enabled {
		db, err = otelsql.Open(cfg.Database.Driver, cfg.Database.DSN,
			otelsql.WithTracerProvider(tp),
			otelsql.WithAttributes(semconv.DBSystemKey.String(cfg.Database.Dialect())),
		)
	} else {
		db, err = sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	return db, nil
}

// writeMetrics prints the statement metrics in the Prometheus text format.
func writeMetrics(w io.Writer, namespace string, stats *dsql.QueryStats) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(dsql.NewStatsCollector(namespace, stats)); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	if c, ok := enc.(expfmt.Closer); ok {
		return c.Close()
	}
	return nil
}
