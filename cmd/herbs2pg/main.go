// Command herbs2pg reads rows from a PostgreSQL or MySQL table, maps each one
// onto an entity through a data mapper, and writes one document per row to
// stdout. In restore mode it reads documents from stdin and inserts them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/judibo/herbs2pg/internal/config"
	"github.com/judibo/herbs2pg/internal/exportapp"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("herbs2pg failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	fs := pflag.NewFlagSet("herbs2pg", pflag.ContinueOnError)
	fs.Bool("version", false, "Print version and exit")
	config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	// --version must work without a loadable config.
	if showVersion, _ := fs.GetBool("version"); showVersion {
		fmt.Fprintln(out, versionString())
		return nil
	}

	cfg, err := config.LoadFlags(fs)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}

	if err := reportValidation(cfg.Validate()); err != nil {
		return err
	}

	logger, loggerProvider, err := exportapp.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	app, err := exportapp.New(cfg, logger)
	if err != nil {
		if loggerProvider != nil {
			_ = loggerProvider.Shutdown(context.Background())
		}
		return err
	}
	app.AttachLoggerProvider(loggerProvider)
	defer func() {
		_ = app.Shutdown(context.Background())
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Init(ctx); err != nil {
		return err
	}

	if strings.EqualFold(cfg.Export.Mode, config.ModeRestore) {
		_, err = app.Restore(ctx, in)
	} else {
		_, err = app.Run(ctx, out)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("run interrupted", slog.String("mode", cfg.Export.Mode))
		}
		return err
	}
	return nil
}

func versionString() string {
	return fmt.Sprintf("herbs2pg %s (%s)", Version, Commit)
}

func reportValidation(result *config.ValidationResult) error {
	for _, warn := range result.Warnings {
		slog.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if !result.HasErrors() {
		return nil
	}
	for _, err := range result.Errors {
		slog.Error("configuration error",
			slog.String("field", err.Field),
			slog.String("message", err.Message),
			slog.String("hint", err.Hint),
		)
	}
	return fmt.Errorf("configuration validation failed")
}
