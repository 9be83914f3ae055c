// Package main is the entry point for the options adapter service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/otoken-adapter/business/options"
	optionsDI "github.com/fd1az/otoken-adapter/business/options/di"
	"github.com/fd1az/otoken-adapter/internal/apm"
	"github.com/fd1az/otoken-adapter/internal/config"
	"github.com/fd1az/otoken-adapter/internal/health"
	"github.com/fd1az/otoken-adapter/internal/logger"
	"github.com/fd1az/otoken-adapter/internal/metrics"
	"github.com/fd1az/otoken-adapter/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("otoken-adapter %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	log := logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
	log.Info(ctx, "starting options adapter",
		"version", version,
		"environment", cfg.App.Environment,
		"backend", cfg.App.Backend,
	)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Telemetry.Enabled {
		tp, err := apm.NewTraceProvider(ctx, apm.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Provider:    apm.Provider(cfg.Telemetry.Tracer),
			Endpoint:    cfg.Telemetry.OTLPEndpoint,
			Headers:     cfg.Telemetry.OTLPHeaders,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer tp.Stop()

		metricOpts := []metrics.OptionFn{
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
		}
		if cfg.Telemetry.OTLPMetrics && cfg.Telemetry.OTLPEndpoint != "" {
			metricOpts = append(metricOpts, metrics.WithProviderConfig(metrics.NewOtelCollectorConfig(
				cfg.Telemetry.OTLPEndpoint, apm.ParseHeaders(cfg.Telemetry.OTLPHeaders), false)))
		}
		mp, err := metrics.NewMetricProvider(ctx, metricOpts...)
		if err != nil {
			return fmt.Errorf("failed to init metrics: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mp.Shutdown(shutdownCtx)
		}()

		port := cfg.Telemetry.PrometheusPort
		g.Go(func() error { return metrics.ServePrometheusMetrics(ctx, port) })
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}

	healthServer := health.NewServer(cfg.Telemetry.HealthPort, version)
	g.Go(func() error { return healthServer.Run(ctx) })
	log.Info(ctx, "health server started", "port", cfg.Telemetry.HealthPort)

	mono, err := monolith.New(ctx, cfg, log, healthServer)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	mod := &options.Module{}
	if err := mono.RegisterModules(mod); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, mod); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	defer func() {
		if err := mod.Shutdown(context.Background(), mono); err != nil {
			log.Error(context.Background(), "options module shutdown failed", "error", err)
		}
	}()

	printAdapters(mono)

	<-ctx.Done()
	log.Info(context.Background(), "shutting down")
	return g.Wait()
}

func printAdapters(mono monolith.Monolith) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROTOCOL\tNON-FUNGIBLE\tBACKEND")
	for _, a := range optionsDI.GetAdapters(mono.Services()) {
		fmt.Fprintf(w, "%s\t%t\t%s\n", a.ProtocolName(), a.NonFungible(), mono.Config().App.Backend)
	}
	w.Flush()
}
