// Package main implements svclinkd, a demonstration service for the svclink
// communication layer. It serves an encrypted echo endpoint behind the
// middleware and can relay calls to configured peers through the dispatcher.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/amal-vs-thoughtminds/svclink/breaker"
	"github.com/amal-vs-thoughtminds/svclink/config"
	"github.com/amal-vs-thoughtminds/svclink/dispatch"
	"github.com/amal-vs-thoughtminds/svclink/metric"
	"github.com/amal-vs-thoughtminds/svclink/sink"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "svclinkd"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat, cfg.Service.Name)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("Configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	slog.Info("Starting svclinkd",
		"version", Version,
		"build_time", BuildTime,
		"service", cfg.Service.Name,
		"config_path", cliCfg.ConfigPath)

	reg, err := cfg.BuildRegistry()
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	ring, err := cfg.BuildKeyRing()
	if err != nil {
		return fmt.Errorf("build key ring: %w", err)
	}

	metrics := metric.New()
	events, natsConn, err := buildEventSink(cfg, logger)
	if err != nil {
		return err
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	brk := breaker.New(cfg.BreakerSettings())
	client, err := dispatch.NewClient(reg, ring,
		dispatch.WithBreaker(brk),
		dispatch.WithRetryPolicy(cfg.RetryPolicy()),
		dispatch.WithMetrics(metrics),
		dispatch.WithSink(events),
		dispatch.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	srv := newServer(cfg, ring, reg, brk, client, metrics, logger)

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if interval := cfg.Health.CheckInterval.Std(); interval > 0 {
		go healthCheckLoop(signalCtx, client, interval)
	}

	return serve(signalCtx, cfg, srv.routes())
}

// buildEventSink assembles the dispatch event sink: always logs, and also
// publishes to NATS when a URL is configured.
func buildEventSink(cfg *config.Config, logger *slog.Logger) (sink.Sink, *nats.Conn, error) {
	logSink := sink.NewSlogSink(logger)
	if cfg.Events.NATSURL == "" {
		return logSink, nil, nil
	}

	conn, err := nats.Connect(cfg.Events.NATSURL,
		nats.Name(appName+"-"+cfg.Service.Name),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	slog.Info("Publishing dispatch events to NATS", "url", cfg.Events.NATSURL)
	return sink.MultiSink{logSink, sink.NewNATSSink(conn, cfg.Events.SubjectPrefix, logger)}, conn, nil
}

// healthCheckLoop probes all registered peers on a fixed interval
func healthCheckLoop(ctx context.Context, client *dispatch.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			client.HealthCheckAll(ctx)
		}
	}
}

// serve runs the HTTP server until the context is cancelled, then shuts down
// gracefully.
func serve(ctx context.Context, cfg *config.Config, handler http.Handler) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout.Std(),
		WriteTimeout: cfg.HTTP.WriteTimeout.Std(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout.Std())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("svclinkd shutdown complete")
	return nil
}
