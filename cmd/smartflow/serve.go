package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	sfserver "github.com/HendryAvila/smartflow/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		Long: `Start the MCP server on stdin/stdout.

With --metrics-addr (or metrics.addr in the config) a side HTTP listener
serves Prometheus metrics on /metrics and a health probe on /healthz.

Examples:
  smartflow serve
  smartflow serve --metrics-addr 127.0.0.1:9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(opts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if cmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}

			app, cleanup, err := sfserver.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			// Graceful shutdown on interrupt. The stdio transport watches
			// the same signals and returns on its own.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Metrics.Addr != "" {
				ms := sfserver.NewMetricsServer(cfg.Metrics.Addr, app.MetricsHandler(), logger)
				if err := ms.Start(); err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
					defer cancel()
					if err := ms.Shutdown(shutdownCtx); err != nil {
						logger.Warn(ctx, "metrics listener shutdown", zap.Error(err))
					}
				}()
			}

			logger.Info(ctx, "smartflow serving on stdio", zap.String("version", sfserver.Version))
			return server.ServeStdio(app.MCP,
				server.WithErrorLogger(zap.NewStdLog(logger.Underlying())),
			)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address for the Prometheus /metrics listener (empty disables)")
	return cmd
}
