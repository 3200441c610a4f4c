package memory

import (
	"context"
	"errors"
	"testing"

	"liquidify/internal/domain"
	"liquidify/internal/storage"
)

func testCycle(id, tokenID string, startedAt int64) *domain.CycleResult {
	return &domain.CycleResult{
		CycleID:     id,
		TokenID:     tokenID,
		Mint:        "mint-" + tokenID,
		Succeeded:   true,
		Phase:       domain.PhaseGraduated,
		FinalState:  domain.StateComplete,
		FeesClaimed: 20_500_000,
		OperationLog: []domain.Operation{
			{Kind: domain.OperationClaimFees, ExternalReference: id + "-claim"},
			{Kind: domain.OperationBuyback, ExternalReference: id + "-buy"},
		},
		Notes:      []string{"note"},
		StartedAt:  startedAt,
		FinishedAt: startedAt + 1000,
	}
}

func TestCycleHistoryStore_InsertAndGet(t *testing.T) {
	store := NewCycleHistoryStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testCycle("c1", "t1", 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "c1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(got.OperationLog) != 2 || got.OperationLog[1].Kind != domain.OperationBuyback {
		t.Errorf("operation log mismatch: %+v", got.OperationLog)
	}

	got.OperationLog[0].ExternalReference = "changed"
	again, _ := store.GetByID(ctx, "c1")
	if again.OperationLog[0].ExternalReference != "c1-claim" {
		t.Errorf("store mutated through returned copy")
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCycleHistoryStore_Duplicate(t *testing.T) {
	store := NewCycleHistoryStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testCycle("c1", "t1", 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, testCycle("c1", "t1", 2000)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if err := store.Insert(ctx, &domain.CycleResult{TokenID: "t1"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCycleHistoryStore_ListByToken(t *testing.T) {
	store := NewCycleHistoryStore()
	ctx := context.Background()

	for _, c := range []*domain.CycleResult{
		testCycle("c1", "t1", 1000),
		testCycle("c2", "t1", 3000),
		testCycle("c3", "t2", 2000),
		testCycle("c4", "t1", 2000),
	} {
		if err := store.Insert(ctx, c); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.ListByToken(ctx, "t1", 0)
	if err != nil {
		t.Fatalf("ListByToken failed: %v", err)
	}
	want := []string{"c2", "c4", "c1"}
	if len(got) != len(want) {
		t.Fatalf("expected %d cycles, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].CycleID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].CycleID, id)
		}
	}

	limited, _ := store.ListByToken(ctx, "t1", 1)
	if len(limited) != 1 || limited[0].CycleID != "c2" {
		t.Errorf("limit not applied: %+v", limited)
	}
}

func TestCycleMetricsStore_Summary(t *testing.T) {
	store := NewCycleMetricsStore()
	ctx := context.Background()

	aborted := testCycle("c3", "t1", 5000)
	aborted.Succeeded = false
	aborted.FinalState = domain.StateAborted

	for _, c := range []*domain.CycleResult{
		testCycle("c1", "t1", 1000),
		testCycle("c2", "t1", 2000),
		aborted,
		testCycle("c4", "t2", 1000),
	} {
		if err := store.Insert(ctx, c); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	s, err := store.Summary(ctx, "t1", 0, 10_000)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if s.Cycles != 3 || s.Succeeded != 2 || s.Aborted != 1 {
		t.Errorf("counts mismatch: %+v", s)
	}
	if s.FeesClaimed != 3*20_500_000 {
		t.Errorf("FeesClaimed: got %d", s.FeesClaimed)
	}
	if s.LastFinishedAt != 6000 {
		t.Errorf("LastFinishedAt: got %d", s.LastFinishedAt)
	}

	windowed, _ := store.Summary(ctx, "t1", 2500, 3500)
	if windowed.Cycles != 1 {
		t.Errorf("window: expected 1 cycle, got %d", windowed.Cycles)
	}

	if err := store.Insert(ctx, testCycle("c1", "t1", 1)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}
