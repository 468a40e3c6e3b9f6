package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roteiro-ai/roteiro/pkg/audit"
	"github.com/roteiro-ai/roteiro/pkg/models"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and manage the request audit log",
	}

	cmd.AddCommand(
		newAuditSearchCmd(),
		newAuditStatsCmd(),
		newAuditCleanupCmd(),
	)
	return cmd
}

func newAuditSearchCmd() *cobra.Command {
	var (
		personaID string
		since     string
		client    string
		requestID string
		fallbacks bool
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search audit log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := audit.New(cfg.Audit, logger)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			opts := models.AuditQueryOpts{
				Persona:      personaID,
				RequestID:    requestID,
				FallbackOnly: fallbacks,
				Limit:        limit,
			}
			if client != "" {
				_, opts.ClientPrefix = audit.HashClient(client)
			}
			if since != "" {
				t, err := time.Parse(time.DateOnly, since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			entries, err := l.Query(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Print(formatAuditEntries(entries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&personaID, "persona", "p", "", "filter by persona")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&client, "client", "", "filter by client id (hashed before lookup)")
	cmd.Flags().StringVar(&requestID, "request-id", "", "filter by request id")
	cmd.Flags().BoolVar(&fallbacks, "fallbacks", false, "only show fallback answers")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")
	return cmd
}

func newAuditStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show audit counts by persona and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := audit.New(cfg.Audit, logger)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			stats, err := l.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Print(formatAuditStats(stats))
			return nil
		},
	}
}

func newAuditCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete audit entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Audit.RetentionDays <= 0 {
				fmt.Println("Audit retention is disabled; nothing deleted.")
				return nil
			}
			l, err := audit.New(cfg.Audit, logger)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			deleted, err := l.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d audit entries.\n", deleted)
			return nil
		},
	}
}

func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-10s %-8s %-11s %6s %6s %-6s %-8s %8s %-19s\n",
		"REQUEST ID", "PERSONA", "CLIENT", "CATEGORY", "Q LEN", "R LEN", "CACHED", "FALLBACK", "LATENCY", "TIME")
	b.WriteString(strings.Repeat("-", 134) + "\n")
	for _, e := range entries {
		category := e.Category
		if !e.InScope && !e.Cached {
			category = "out"
		}
		fmt.Fprintf(&b, "%-38s %-10s %-8s %-11s %6d %6d %-6t %-8t %6dms %-19s\n",
			e.RequestID, e.Persona, e.ClientPrefix, category,
			e.QuestionLen, e.ResponseLen, e.Cached, e.Fallback,
			e.Latency.Milliseconds(), e.CreatedAt.Local().Format(time.DateTime))
	}
	return b.String()
}

func formatAuditStats(stats []models.AuditStat) string {
	if len(stats) == 0 {
		return "No audit stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-12s %8s %8s %10s\n", "PERSONA", "DAY", "COUNT", "CACHED", "FALLBACKS")
	b.WriteString(strings.Repeat("-", 54) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-12s %-12s %8d %8d %10d\n", s.Persona, s.Day, s.Count, s.Cached, s.Fallbacks)
	}
	return b.String()
}
