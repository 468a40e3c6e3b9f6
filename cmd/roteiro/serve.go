package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roteiro-ai/roteiro/pkg/server"
)

func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			trusted, err := cfg.TrustedProxyPrefixes()
			if err != nil {
				return err
			}

			comp, err := buildComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := comp.Close(); err != nil {
					logger.Warn("shutdown", zap.Error(err))
				}
			}()

			logger.Info("starting roteiro",
				zap.String("version", version),
				zap.String("cache_backend", cfg.Cache.Backend),
				zap.String("rate_limit_backend", cfg.RateLimit.Backend),
				zap.Int("llm_providers", len(cfg.LLM.Providers)),
				zap.Int("trusted_proxies", len(trusted)),
			)
			srv := server.New(cfg.Listen, comp.gateway, comp.gateway.Personas(), logger,
				server.WithTrustedProxies(trusted))
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")
	return cmd
}
