package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/syncbridge/internal/model"
	"github.com/nhle/syncbridge/internal/store"
	"github.com/nhle/syncbridge/tests/testutil"
)

func TestCreateAndGetRun(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	rec := &model.RunRecord{
		TenantID:  "acme",
		Direction: model.DirectionBoth,
		DryRun:    true,
		StartedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
	}
	if err := s.CreateRun(ctx, rec); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("CreateRun did not assign an id")
	}

	got, err := s.GetRun(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.TenantID != "acme" || got.Direction != model.DirectionBoth {
		t.Errorf("record = %+v", got)
	}
	if !got.DryRun {
		t.Error("dry_run not persisted")
	}
	if got.Status != model.RunStatusRunning {
		t.Errorf("status = %q, want running", got.Status)
	}
	if !got.FinishedAt.IsZero() {
		t.Errorf("finished_at set on a running run: %v", got.FinishedAt)
	}
}

func TestFinishRunPersistsResult(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	rec := &model.RunRecord{
		TenantID:  "acme",
		Direction: model.DirectionSourceToTarget,
		StartedAt: time.Now().UTC(),
	}
	if err := s.CreateRun(ctx, rec); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	rec.Status = model.RunStatusCompleted
	rec.FinishedAt = rec.StartedAt.Add(30 * time.Second)
	rec.Result = model.RunResult{
		Created: 2,
		Skipped: 1,
		Items: []model.ItemOutcome{
			{SourceID: "p1", Action: model.ActionCreated, Detail: "work item 7 created"},
		},
		Log: []string{"source->target: 3 items to process"},
	}
	if err := s.FinishRun(ctx, *rec); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := s.GetRun(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != model.RunStatusCompleted {
		t.Errorf("status = %q", got.Status)
	}
	if got.FinishedAt.IsZero() {
		t.Error("finished_at not persisted")
	}
	if got.Result.Created != 2 || got.Result.Skipped != 1 {
		t.Errorf("result counters = %+v", got.Result)
	}
	if len(got.Result.Items) != 1 || got.Result.Items[0].SourceID != "p1" {
		t.Errorf("result items = %+v", got.Result.Items)
	}
}

func TestFinishRunUnknownID(t *testing.T) {
	s := testutil.NewTestStore(t)

	err := s.FinishRun(context.Background(), model.RunRecord{
		ID:         "nope",
		Status:     model.RunStatusFailed,
		FinishedAt: time.Now().UTC(),
	})
	if err == nil {
		t.Fatal("expected error for unknown run id")
	}
}

func TestGetRunsFilterAndOrder(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	seed := []model.RunRecord{
		{TenantID: "acme", Direction: model.DirectionBoth, StartedAt: base},
		{TenantID: "acme", Direction: model.DirectionBoth, StartedAt: base.Add(time.Hour)},
		{TenantID: "globex", Direction: model.DirectionBoth, StartedAt: base.Add(2 * time.Hour)},
	}
	for i := range seed {
		if err := s.CreateRun(ctx, &seed[i]); err != nil {
			t.Fatalf("CreateRun %d: %v", i, err)
		}
	}

	tenant := "acme"
	recs, err := s.GetRuns(ctx, store.RunFilter{TenantID: &tenant})
	if err != nil {
		t.Fatalf("GetRuns: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if !recs[0].StartedAt.After(recs[1].StartedAt) {
		t.Error("records not ordered newest first")
	}

	recs, err = s.GetRuns(ctx, store.RunFilter{Limit: 1})
	if err != nil {
		t.Fatalf("GetRuns with limit: %v", err)
	}
	if len(recs) != 1 || recs[0].TenantID != "globex" {
		t.Errorf("limited query = %+v", recs)
	}

	status := string(model.RunStatusCompleted)
	recs, err = s.GetRuns(ctx, store.RunFilter{Status: &status})
	if err != nil {
		t.Fatalf("GetRuns by status: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("no runs are completed yet, got %d", len(recs))
	}
}
