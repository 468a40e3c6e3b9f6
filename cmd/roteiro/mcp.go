package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roteiro-ai/roteiro/pkg/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve roteiro as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			comp, err := buildComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = comp.Close() }()

			deps := mcp.Deps{
				Gateway:    comp.gateway,
				Classifier: comp.classifier,
				Tracker:    comp.tracker,
				Cache:      comp.cache,
				Logger:     logger,
			}
			if comp.limiter != nil {
				deps.Limiter = comp.limiter
			}
			if comp.auditor != nil {
				deps.Auditor = comp.auditor
			}
			return mcp.New(deps, version).Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
