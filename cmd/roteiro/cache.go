package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roteiro-ai/roteiro/pkg/config"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if cfg.Cache.Backend == config.BackendMemory {
				return errors.New("cache backend is memory; stats and clear need the sqlite or redis backend")
			}
			return nil
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var cl closers
			defer func() { _ = cl.Close() }()

			c, err := openCache(ctx, cfg, &redisClient{cfg: cfg.Redis}, &cl)
			if err != nil {
				return err
			}
			if c == nil {
				return errors.New("cache is disabled")
			}

			stats, err := c.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Backend: %s\nEntries: %d\nHits:    %d\nMisses:  %d\n",
				cfg.Cache.Backend, stats.Entries, stats.Hits, stats.Misses)
			return nil
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var cl closers
			defer func() { _ = cl.Close() }()

			c, err := openCache(ctx, cfg, &redisClient{cfg: cfg.Redis}, &cl)
			if err != nil {
				return err
			}
			if c == nil {
				return errors.New("cache is disabled")
			}

			if err := c.Clear(ctx, expiredOnly); err != nil {
				return err
			}
			if expiredOnly {
				fmt.Println("Expired cache entries cleared.")
			} else {
				fmt.Println("All cache entries cleared.")
			}
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}
