package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/outpost/internal/triage"
)

func testAssessment(id string, ts time.Time) *triage.Assessment {
	return &triage.Assessment{
		ID:                 id,
		PatientID:          "PAT-1",
		RiskLevel:          triage.RiskGreenStable,
		PrimaryObservation: "mild cough",
		Suggestions:        []string{"Rest at home"},
		Timestamp:          ts,
		ConfidenceScore:    0.85,
		SyncStatus:         triage.SyncPending,
	}
}

func TestStore_UpsertAndGet(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	a := testAssessment("a-1", time.Now())
	if err := s.Upsert(ctx, a); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, ok, err := s.GetByID(ctx, "a-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !ok {
		t.Fatal("expected record to be found")
	}
	if got.PatientID != "PAT-1" {
		t.Errorf("PatientID = %q, want PAT-1", got.PatientID)
	}

	// mutating the returned copy must not affect the store
	got.Suggestions[0] = "tampered"
	again, _, _ := s.GetByID(ctx, "a-1")
	if again.Suggestions[0] != "Rest at home" {
		t.Error("store shares memory with callers")
	}
}

func TestStore_UpsertReplaces(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	a := testAssessment("a-1", time.Now())
	if err := s.Upsert(ctx, a); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	a2 := testAssessment("a-1", a.Timestamp)
	a2.PrimaryObservation = "updated observation"
	if err := s.Upsert(ctx, a2); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, _, _ := s.GetByID(ctx, "a-1")
	if got.PrimaryObservation != "updated observation" {
		t.Errorf("PrimaryObservation = %q, last write should win", got.PrimaryObservation)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("len(List) = %d, want 1 (replace, not duplicate)", len(all))
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	s := New()
	_, ok, err := s.GetByID(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing ID")
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	base := time.Now()
	for i := range 5 {
		a := testAssessment(fmt.Sprintf("a-%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := s.Upsert(ctx, a); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("len = %d, want 5", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.After(all[i-1].Timestamp) {
			t.Fatal("List is not timestamp descending")
		}
	}
}

func TestStore_ListPending(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	base := time.Now()

	for i, status := range []triage.SyncStatus{
		triage.SyncPending, triage.SyncSynced, triage.SyncFailed, triage.SyncPending,
	} {
		a := testAssessment(fmt.Sprintf("a-%d", i), base.Add(time.Duration(i)*time.Second))
		a.SyncStatus = status
		if err := s.Upsert(ctx, a); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	pending, err := s.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("len = %d, want 3 (PENDING and FAILED, not SYNCED)", len(pending))
	}
	// oldest first
	if pending[0].ID != "a-0" || pending[2].ID != "a-3" {
		t.Errorf("order = [%s %s %s], want oldest first", pending[0].ID, pending[1].ID, pending[2].ID)
	}
}

func TestStore_UpdateSyncStatus(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	a := testAssessment("a-1", time.Now())
	a.DetectedVitals = map[string]string{"rash": "x"}
	if err := s.Upsert(ctx, a); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := s.UpdateSyncStatus(ctx, "a-1", triage.SyncSynced); err != nil {
		t.Fatalf("UpdateSyncStatus: %v", err)
	}

	got, _, _ := s.GetByID(ctx, "a-1")
	if got.SyncStatus != triage.SyncSynced {
		t.Errorf("SyncStatus = %s, want SYNCED", got.SyncStatus)
	}
	// all other fields untouched
	if got.PrimaryObservation != "mild cough" || got.ConfidenceScore != 0.85 || len(got.DetectedVitals) != 1 {
		t.Error("UpdateSyncStatus touched fields other than the status")
	}
}

func TestStore_UpdateSyncStatusMissing(t *testing.T) {
	t.Parallel()

	s := New()
	if err := s.UpdateSyncStatus(context.Background(), "nope", triage.SyncSynced); err == nil {
		t.Fatal("expected error for missing record")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := testAssessment(fmt.Sprintf("a-%d", i), time.Now())
			_ = s.Upsert(ctx, a)
			_, _, _ = s.GetByID(ctx, a.ID)
			_ = s.UpdateSyncStatus(ctx, a.ID, triage.SyncSynced)
			_, _ = s.ListPending(ctx)
		}()
	}
	wg.Wait()

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 50 {
		t.Errorf("len = %d, want 50", len(all))
	}
}
