package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/getmockd/mockserver-go/pkg/config"
	"github.com/getmockd/mockserver-go/pkg/expectation"
	"github.com/getmockd/mockserver-go/pkg/logging"
	"github.com/getmockd/mockserver-go/pkg/metrics"
	"github.com/getmockd/mockserver-go/pkg/server"
)

// serveFlags holds the flags of the serve command. Flags that are set win
// over the configuration file and the environment.
type serveFlags struct {
	configPath  string
	host        string
	port        int
	contextPath string
	initFile    string
	logLevel    string
	logFormat   string
	noMetrics   bool
}

func newServeCmd() *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mock server",
		Example: `  # Defaults (port 1080)
  mockserver serve

  # Config file plus expectations loaded at startup
  mockserver serve --config mockserver.yaml --init expectations.json

  # Everything under /mock, JSON logs
  mockserver serve --context-path /mock --log-format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to configuration file (YAML or JSON)")
	cmd.Flags().StringVar(&f.host, "host", "0.0.0.0", "Bind address")
	cmd.Flags().IntVarP(&f.port, "port", "p", config.DefaultServerPort, "HTTP port (0 = OS auto-assign)")
	cmd.Flags().StringVar(&f.contextPath, "context-path", "", "Serve every route under this path")
	cmd.Flags().StringVar(&f.initFile, "init", "", "Expectation file or glob loaded at startup (YAML or JSON)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "", "Log format (text, json)")
	cmd.Flags().BoolVar(&f.noMetrics, "no-metrics", false, "Do not expose GET /metrics")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, f *serveFlags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.ServerPort = f.port
	}
	if flags.Changed("init") {
		cfg.InitializationFile = f.initFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}

	log := logging.FromStrings(cfg.LogLevel, cfg.LogFormat)

	opts := []server.Option{
		server.WithLogger(log),
		server.WithContextPath(f.contextPath),
	}
	if !f.noMetrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.New()
		if err := m.Register(reg); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		opts = append(opts, server.WithMetrics(m, reg))
	}
	srv := server.New(cfg, opts...)

	if cfg.InitializationFile != "" {
		exps, err := expectation.LoadFiles(cfg.InitializationFile)
		if err != nil {
			return fmt.Errorf("failed to load initialization file: %w", err)
		}
		if err := srv.Upsert(exps...); err != nil {
			return fmt.Errorf("invalid initialization file: %w", err)
		}
		log.Info("loaded expectations", "file", cfg.InitializationFile, "count", len(exps))
	}

	addr := net.JoinHostPort(f.host, strconv.Itoa(cfg.ServerPort))
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info("shut down")
	return nil
}
