package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/roteiro-ai/roteiro/pkg/gateway"
	"github.com/roteiro-ai/roteiro/pkg/models"
	"github.com/roteiro-ai/roteiro/pkg/ratelimit"
	"github.com/roteiro-ai/roteiro/pkg/scope"
)

func formatAnswer(resp gateway.Response) string {
	var flags []string
	if resp.Cached {
		flags = append(flags, "cached")
	}
	if resp.Fallback {
		flags = append(flags, "offline fallback")
	}
	if !resp.Cached && !resp.InScope {
		flags = append(flags, "out of scope")
	}

	var b strings.Builder
	b.WriteString(resp.Text)
	fmt.Fprintf(&b, "\n\n(persona: %s", resp.Persona)
	if len(flags) > 0 {
		fmt.Fprintf(&b, "; %s", strings.Join(flags, ", "))
	}
	b.WriteString(")")
	return b.String()
}

func formatDecision(d scope.Decision) string {
	s := fmt.Sprintf("In scope: %t\nCategory: %s\n", d.InScope, d.Category)
	if d.Matched != "" {
		s += fmt.Sprintf("Matched:  %s\n", d.Matched)
	}
	return s
}

func formatSummary(rows []models.UsageSummary) string {
	if len(rows) == 0 {
		return "No usage data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-25s %8s %10s %10s %10s\n",
		"Persona", "Model", "Requests", "Prompt", "Completion", "Total")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-12s %-25s %8d %10d %10d %10d\n",
			r.Persona, r.Model, r.RequestCount, r.TotalPrompt, r.TotalCompletion, r.TotalTokens)
	}
	return b.String()
}

func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate)
}

func formatLimitStatus(clientID string, u ratelimit.Usage, limits ratelimit.Limits, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Client %s\n", clientID)
	writeCounter(&b, "Hourly", u.Hourly, limits.Hourly, now)
	writeCounter(&b, "Daily", u.Daily, limits.Daily, now)
	return b.String()
}

func writeCounter(b *strings.Builder, name string, c ratelimit.Counter, limit int64, now time.Time) {
	fmt.Fprintf(b, "  %-7s %d/%d", name+":", c.Count, limit)
	if !c.ResetAt.IsZero() && c.ResetAt.After(now) {
		fmt.Fprintf(b, " (resets in %s)", c.ResetAt.Sub(now).Round(time.Second))
	}
	b.WriteString("\n")
}

func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-10s %-11s %6s %6s %-8s %8s %-20s\n",
		"Request ID", "Persona", "Category", "Q Len", "R Len", "Flags", "Latency", "Time")
	b.WriteString(strings.Repeat("-", 115) + "\n")
	for _, e := range entries {
		flags := "-"
		switch {
		case e.Fallback:
			flags = "fallback"
		case e.Cached:
			flags = "cached"
		}
		fmt.Fprintf(&b, "%-38s %-10s %-11s %6d %6d %-8s %6dms %-20s\n",
			e.RequestID, e.Persona, e.Category, e.QuestionLen, e.ResponseLen, flags,
			e.Latency.Milliseconds(), e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}
