package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roteiro-ai/roteiro/pkg/ratelimit"
)

func newLimitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Inspect per-client rate limits",
	}

	var clientID string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show a client's hourly and daily usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clientID == "" {
				return errors.New("--client is required")
			}

			ctx := cmd.Context()
			var cl closers
			defer func() { _ = cl.Close() }()

			lim, err := openLimiter(ctx, cfg, &redisClient{cfg: cfg.Redis}, &cl, logger)
			if err != nil {
				return err
			}
			if lim == nil {
				fmt.Println("Rate limiting is disabled.")
				return nil
			}

			u, err := lim.Status(ctx, clientID)
			if err != nil {
				return err
			}
			limits := lim.Limits()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WINDOW\tUSED\tLIMIT\tRESETS")
			printWindow(w, ratelimit.Hourly, u.Hourly, limits.Hourly)
			printWindow(w, ratelimit.Daily, u.Daily, limits.Daily)
			return w.Flush()
		},
	}
	statusCmd.Flags().StringVar(&clientID, "client", "", "client id (IP address)")

	cmd.AddCommand(statusCmd)
	return cmd
}

func printWindow(w *tabwriter.Writer, name ratelimit.Window, c ratelimit.Counter, limit int64) {
	resets := "-"
	if !c.ResetAt.IsZero() {
		resets = c.ResetAt.Local().Format(time.DateTime)
	}
	fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", name, c.Count, limit, resets)
}
