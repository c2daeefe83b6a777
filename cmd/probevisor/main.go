package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/probevisor/internal/config"
	"github.com/hamed0406/probevisor/internal/logging"
	"github.com/hamed0406/probevisor/internal/probe"
	"github.com/hamed0406/probevisor/internal/supervisor"
	"github.com/hamed0406/probevisor/internal/tracing"
)

const defaultConfigFile = "probevisor.yml"

type options struct {
	configFile string
	port       int
	verbose    int
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "probevisor",
		Short: "Probe services, run fallbacks on failure and export Prometheus metrics",
		Long: `probevisor probes every service in its YAML file on a fixed interval,
compares the outcome with the expected status, headers and body, runs the
configured fallback when they do not match, and serves the results on /metrics.`,
		Version:       probe.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, cmd.Flags().Changed("port"))
		},
	}
	cmd.Flags().StringVarP(&opts.configFile, "config", "c", defaultConfigFile, "service definitions file")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "metrics port (overrides METRICS_PORT)")
	cmd.Flags().CountVarP(&opts.verbose, "verbose", "v", "log verbosity: -v info, -vv debug")
	return cmd
}

func run(ctx context.Context, opts options, portSet bool) error {
	cfg := config.FromEnv()
	if portSet {
		if opts.port <= 0 || opts.port > 65535 {
			return fmt.Errorf("invalid port %d", opts.port)
		}
		cfg.MetricsPort = opts.port
	}

	logger, err := logging.NewLogger(cfg.LogDir, logging.LevelFor(opts.verbose))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	file, err := config.Load(opts.configFile)
	if err != nil {
		logger.Error("config_invalid", zap.String("path", opts.configFile), zap.Error(err))
		return err
	}

	shutdown, err := tracing.Init(ctx, tracing.Options{
		Exporter: cfg.TraceExporter,
		Endpoint: cfg.OTLPEndpoint,
		Version:  probe.Version,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("tracing_shutdown_error", zap.Error(err))
		}
	}()

	sup, err := supervisor.New(logger, file, cfg)
	if err != nil {
		logger.Error("startup_failed", zap.Error(err))
		return err
	}

	logger.Info("probevisor_start",
		zap.String("version", probe.Version),
		zap.String("config", opts.configFile),
		zap.Int("services", len(file.Services)),
		zap.Int("metrics_port", cfg.MetricsPort),
	)
	return sup.Run(ctx)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "probevisor:", err)
		os.Exit(1)
	}
}
