package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roteiro-ai/roteiro/pkg/tracker"
)

func newStatsCmd() *cobra.Command {
	var (
		personaID string
		since     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show LLM token usage per persona and model",
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			ctx := cmd.Context()

			if since > 0 {
				total, err := tr.TotalSince(ctx, time.Now().Add(-since))
				if err != nil {
					return err
				}
				fmt.Printf("Total tokens in the last %s: %d\n\n", since, total)
			}

			summaries, err := tr.Summary(ctx, personaID)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PERSONA\tMODEL\tREQUESTS\tPROMPT\tCOMPLETION\tTOTAL")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
					s.Persona, s.Model, s.RequestCount, s.TotalPrompt, s.TotalCompletion, s.TotalTokens)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&personaID, "persona", "p", "", "filter by persona")
	cmd.Flags().DurationVar(&since, "since", 0, "also print total tokens over this window (e.g. 24h)")
	return cmd
}
