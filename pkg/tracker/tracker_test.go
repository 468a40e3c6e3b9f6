package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roteiro-ai/roteiro/pkg/models"
)

func newTestTracker(t *testing.T) *SQLiteTracker {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	tr, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestRecordAndQuery(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := models.UsageRecord{
		Persona:          "technical",
		Provider:         "primary",
		Model:            "gpt-4o-mini",
		PromptTokens:     100,
		CompletionTokens: 50,
		TotalTokens:      150,
		CreatedAt:        now,
	}
	if err := tr.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}

	records, err := tr.QueryByPersona(ctx, "technical", now.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].TotalTokens != 150 {
		t.Errorf("expected 150 tokens, got %d", records[0].TotalTokens)
	}
	if !records[0].CreatedAt.Equal(now) {
		t.Errorf("created_at round trip: got %v want %v", records[0].CreatedAt, now)
	}

	records, err = tr.QueryByPersona(ctx, "empathetic", now.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("expected no empathetic records, got %d", len(records))
	}
}

func TestTotalSince(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := range 3 {
		_ = tr.Record(ctx, models.UsageRecord{
			Persona: "technical", Provider: "p", Model: "m",
			PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
	}
	_ = tr.Record(ctx, models.UsageRecord{
		Persona: "technical", Provider: "p", Model: "m", TotalTokens: 1000,
		CreatedAt: now.Add(-2 * time.Hour),
	})

	total, err := tr.TotalSince(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if total != 450 {
		t.Errorf("expected 450, got %d", total)
	}
}

func TestSummary(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = tr.Record(ctx, models.UsageRecord{Persona: "technical", Provider: "p", Model: "gpt-4o-mini", PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, CreatedAt: now})
	_ = tr.Record(ctx, models.UsageRecord{Persona: "technical", Provider: "p", Model: "gpt-4o-mini", PromptTokens: 20, CompletionTokens: 5, TotalTokens: 25, CreatedAt: now})
	_ = tr.Record(ctx, models.UsageRecord{Persona: "empathetic", Provider: "p", Model: "gpt-4o-mini", PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2, CreatedAt: now})

	all, err := tr.Summary(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 summary rows, got %d", len(all))
	}
	// ordered by persona
	if all[0].Persona != "empathetic" || all[1].Persona != "technical" {
		t.Errorf("unexpected order: %+v", all)
	}
	if all[1].RequestCount != 2 || all[1].TotalTokens != 40 {
		t.Errorf("unexpected technical summary: %+v", all[1])
	}

	tech, err := tr.Summary(ctx, "technical")
	if err != nil {
		t.Fatal(err)
	}
	if len(tech) != 1 {
		t.Errorf("expected 1 filtered row, got %d", len(tech))
	}
}
