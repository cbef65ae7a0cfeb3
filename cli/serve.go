package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/integrald"
	"github.com/petal-labs/integrald/config"
	integraldotel "github.com/petal-labs/integrald/otel"
	"github.com/petal-labs/integrald/server"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the integration HTTP server",
		RunE:  runServe,
	}

	cmd.Flags().IntP("port", "p", 8000, "Listen port")
	cmd.Flags().String("host", "127.0.0.1", "Listen host")
	cmd.Flags().StringSlice("cors-origin", nil, "Allowed CORS origin (repeatable, * for any)")
	cmd.Flags().String("history", "", "History driver: memory | sqlite | none")
	cmd.Flags().String("sqlite-path", "", "Path to the SQLite history database (default: ~/.integrald/history.db)")
	cmd.Flags().Duration("read-timeout", 0, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 0, "HTTP write timeout")
	cmd.Flags().Int64("max-body", 0, "Max request body size in bytes")
	cmd.Flags().String("otlp-endpoint", "", "OTLP/HTTP trace collector host:port")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyServeFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return exitError(exitConfig, "config: %v", err)
	}

	logger := NewLogger(cmd)
	rt, err := newServeRuntime(cmd.Context(), cfg, logger)
	if err != nil {
		return exitError(exitConfig, "%v", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rt.Close(closeCtx); err != nil {
			logger.Warn("shutdown cleanup", "error", err)
		}
	}()

	addr := cfg.Server.Addr()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      rt.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Signal handling
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "integrald listening on %s\n", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}

func applyServeFlags(cmd *cobra.Command, cfg *config.File) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		cfg.Server.CORSOrigins, _ = flags.GetStringSlice("cors-origin")
	}
	if flags.Changed("read-timeout") {
		cfg.Server.ReadTimeout, _ = flags.GetDuration("read-timeout")
	}
	if flags.Changed("write-timeout") {
		cfg.Server.WriteTimeout, _ = flags.GetDuration("write-timeout")
	}
	if flags.Changed("max-body") {
		cfg.Server.MaxBody, _ = flags.GetInt64("max-body")
	}
	if flags.Changed("history") {
		cfg.History.Driver, _ = flags.GetString("history")
	}
	if flags.Changed("sqlite-path") {
		cfg.History.Path, _ = flags.GetString("sqlite-path")
		if !flags.Changed("history") {
			cfg.History.Driver = config.DriverSQLite
		}
	}
	if cfg.History.Driver == config.DriverSQLite && strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = config.DefaultSQLitePath()
	}
	if flags.Changed("otlp-endpoint") {
		cfg.Telemetry.OTLPEndpoint, _ = flags.GetString("otlp-endpoint")
	}
}

// serveRuntime is everything serve starts besides the listener.
type serveRuntime struct {
	Handler http.Handler

	providers *integraldotel.Providers
	history   server.HistoryStore
	retention *server.Retention
}

func newServeRuntime(ctx context.Context, cfg config.File, logger *slog.Logger) (_ *serveRuntime, err error) {
	rt := &serveRuntime{}
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
		}
	}()

	rt.providers, err = integraldotel.Setup(ctx, integraldotel.Config{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	observer, err := rt.providers.NewObserver()
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	rt.history, err = openHistory(cfg.History)
	if err != nil {
		return nil, err
	}
	if rt.history != nil && cfg.History.Retention != "" && (cfg.History.MaxAge > 0 || cfg.History.MaxRecords > 0) {
		rt.retention, err = server.NewRetention(server.RetentionConfig{
			Store:      rt.history,
			Schedule:   cfg.History.Retention,
			MaxAge:     cfg.History.MaxAge,
			MaxRecords: cfg.History.MaxRecords,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		rt.retention.Start()
	}

	solver := integrald.NewSolver(integrald.SolverConfig{
		Options:  cfg.Quadrature,
		Logger:   logger,
		Observer: observer,
	})
	srv := server.NewServer(server.ServerConfig{
		Solver:      solver,
		History:     rt.history,
		CORSOrigins: cfg.Server.CORSOrigins,
		MaxBody:     cfg.Server.MaxBody,
		BatchLimit:  cfg.Server.BatchLimit,
		Logger:      logger,
	})
	rt.Handler = srv.Handler()

	logger.Info("integrald configured",
		"history", cfg.History.Driver,
		"telemetry", cfg.Telemetry.OTLPEndpoint != "",
		"abs_tol", cfg.Quadrature.AbsTol,
		"rel_tol", cfg.Quadrature.RelTol,
	)
	return rt, nil
}

func openHistory(cfg config.HistoryConfig) (server.HistoryStore, error) {
	switch cfg.Driver {
	case config.DriverNone:
		return nil, nil
	case config.DriverSQLite:
		path := filepath.Clean(cfg.Path)
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating history directory: %w", err)
			}
		}
		store, err := server.NewSQLiteStore(server.SQLiteStoreConfig{DSN: path})
		if err != nil {
			return nil, fmt.Errorf("opening sqlite history store: %w", err)
		}
		return store, nil
	default:
		return server.NewMemoryStore(cfg.MaxRecords), nil
	}
}

// Close stops retention, closes history and flushes telemetry.
func (rt *serveRuntime) Close(ctx context.Context) error {
	var errs []error
	if rt.retention != nil {
		errs = append(errs, rt.retention.Stop(ctx))
	}
	if rt.history != nil {
		errs = append(errs, rt.history.Close())
	}
	errs = append(errs, rt.providers.Shutdown(ctx))
	return errors.Join(errs...)
}
