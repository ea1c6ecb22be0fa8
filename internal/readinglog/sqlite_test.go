package readinglog

import (
	"path/filepath"
	"testing"
)

func TestStoreInsertAndRecent(t *testing.T) {
	store := mustOpen(t)

	recs := []Record{
		{DistanceCM: 12.5, DistanceRawCM: 12.9, VoltageV: 1.1, VoltageStd: 0.01, KalmanP: 0.5},
		{DistanceCM: 12.2, DistanceRawCM: 12.0, VoltageV: 1.12, VoltageStd: 0.02, KalmanP: 0.3},
		{DistanceCM: 11.9, DistanceRawCM: 11.7, VoltageV: 1.15, VoltageStd: 0.01, KalmanP: 0.2},
	}
	for i, r := range recs {
		if err := store.Insert(r); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	got, err := store.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d rows", len(got))
	}
	// Newest first.
	if got[0].DistanceCM != 11.9 || got[1].DistanceCM != 12.2 {
		t.Errorf("rows out of order: %+v", got)
	}
	if got[0].ID <= got[1].ID {
		t.Errorf("ids not descending: %d, %d", got[0].ID, got[1].ID)
	}
	if got[0].Timestamp == "" {
		t.Error("timestamp not stamped on insert")
	}

	n, err := store.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestStoreKeepsCallerTimestamps(t *testing.T) {
	store := mustOpen(t)

	rec := Record{Timestamp: "2026-08-21T10:00:00Z", ElapsedS: 42.5, DistanceCM: 9}
	if err := store.Insert(rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.Recent(1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Recent(1) returned %d rows", len(got))
	}
	if got[0].Timestamp != rec.Timestamp || got[0].ElapsedS != rec.ElapsedS {
		t.Errorf("caller fields rewritten: %+v", got[0])
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Insert(Record{DistanceCM: 7.5}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()

	n, err := again.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d after reopen, want 1", n)
	}
}

func mustOpen(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "readings.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
