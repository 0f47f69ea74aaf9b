package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amarchetti/teledoc/internal/chat"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestWatermarkAbsentThenSet(t *testing.T) {
	db := testDB(t)

	_, ok, err := db.Watermark(42)
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	if ok {
		t.Fatal("watermark reported present on a fresh store")
	}

	if err := db.SetWatermark(42, 100); err != nil {
		t.Fatalf("SetWatermark: %v", err)
	}
	id, ok, err := db.Watermark(42)
	if err != nil || !ok {
		t.Fatalf("Watermark after set: id=%d ok=%v err=%v", id, ok, err)
	}
	if id != 100 {
		t.Errorf("watermark = %d, want 100", id)
	}
}

func TestWatermarkMonotonic(t *testing.T) {
	db := testDB(t)

	if err := db.SetWatermark(42, 100); err != nil {
		t.Fatalf("SetWatermark: %v", err)
	}
	// A replayed batch may confirm an older id; the stored value must not
	// move backwards.
	if err := db.SetWatermark(42, 50); err != nil {
		t.Fatalf("SetWatermark older: %v", err)
	}
	id, _, err := db.Watermark(42)
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	if id != 100 {
		t.Errorf("watermark = %d, want 100 after older write", id)
	}

	if err := db.SetWatermark(42, 150); err != nil {
		t.Fatalf("SetWatermark newer: %v", err)
	}
	id, _, _ = db.Watermark(42)
	if id != 150 {
		t.Errorf("watermark = %d, want 150", id)
	}
}

func TestWatermarkPerChannel(t *testing.T) {
	db := testDB(t)

	if err := db.SetWatermark(1, 10); err != nil {
		t.Fatal(err)
	}
	if err := db.SetWatermark(2, 20); err != nil {
		t.Fatal(err)
	}
	id, _, _ := db.Watermark(1)
	if id != 10 {
		t.Errorf("channel 1 watermark = %d, want 10", id)
	}
	id, _, _ = db.Watermark(2)
	if id != 20 {
		t.Errorf("channel 2 watermark = %d, want 20", id)
	}
}

func TestPendingRoundTrip(t *testing.T) {
	db := testDB(t)

	got, err := db.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if got != nil {
		t.Fatal("fresh store reports a pending batch")
	}

	msgs := []*chat.Message{
		{ID: 1, Text: "first", Date: time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC), ChannelID: 42, ChannelName: "News"},
		{ID: 2, Text: "second", Date: time.Date(2025, 5, 1, 8, 1, 0, 0, time.UTC), ChannelID: 42, HasMedia: true, MediaKind: "Photo"},
	}
	if err := db.StagePending("batch-a", msgs); err != nil {
		t.Fatalf("StagePending: %v", err)
	}

	got, err = db.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if got == nil {
		t.Fatal("staged batch not found")
	}
	if got.BatchID != "batch-a" {
		t.Errorf("batch id = %q", got.BatchID)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(got.Messages))
	}
	if got.Messages[0].ID != 1 || got.Messages[0].Text != "first" {
		t.Errorf("message 0 = %+v", got.Messages[0])
	}
	if !got.Messages[1].HasMedia || got.Messages[1].MediaKind != "Photo" {
		t.Errorf("message 1 media fields lost: %+v", got.Messages[1])
	}
	if got.StagedAt.IsZero() {
		t.Error("staged_at not recorded")
	}
}

func TestPendingAtMostOne(t *testing.T) {
	db := testDB(t)

	if err := db.StagePending("batch-a", []*chat.Message{{ID: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := db.StagePending("batch-b", []*chat.Message{{ID: 2}, {ID: 3}}); err != nil {
		t.Fatal(err)
	}

	got, err := db.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if got.BatchID != "batch-b" || len(got.Messages) != 2 {
		t.Errorf("staged batch = %q with %d messages, want batch-b with 2", got.BatchID, len(got.Messages))
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pending_batch`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("pending_batch rows = %d, want 1", count)
	}
}

func TestClearPending(t *testing.T) {
	db := testDB(t)

	if err := db.StagePending("batch-a", []*chat.Message{{ID: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := db.ClearPending(); err != nil {
		t.Fatalf("ClearPending: %v", err)
	}
	got, err := db.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if got != nil {
		t.Error("pending batch survived clear")
	}

	// Clearing an empty store is not an error.
	if err := db.ClearPending(); err != nil {
		t.Errorf("ClearPending empty: %v", err)
	}
}

func TestStatsAccumulate(t *testing.T) {
	db := testDB(t)

	s, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.Processed != 0 || s.Errors != 0 || !s.LastRun.IsZero() {
		t.Errorf("fresh stats = %+v", s)
	}

	if err := db.AddStats(5, false); err != nil {
		t.Fatal(err)
	}
	if err := db.AddStats(3, true); err != nil {
		t.Fatal(err)
	}
	if err := db.AddStats(0, true); err != nil {
		t.Fatal(err)
	}

	s, err = db.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.Processed != 8 {
		t.Errorf("processed = %d, want 8", s.Processed)
	}
	if s.Errors != 2 {
		t.Errorf("errors = %d, want 2", s.Errors)
	}
	if s.LastRun.IsZero() {
		t.Error("last_run not stamped")
	}
}

func TestOpenRecreatesCorruptStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	if err := os.WriteFile(path, []byte("this is not a sqlite database at all"), 0o600); err != nil {
		t.Fatal(err)
	}

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open over corrupt file: %v", err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		t.Fatalf("Migrate after recreate: %v", err)
	}

	// The recreated store starts empty.
	_, ok, err := db.Watermark(1)
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	if ok {
		t.Error("watermark present in recreated store")
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if result.Changed {
		t.Error("second migration reported changes")
	}
	if result.Dirty {
		t.Error("migration left the store dirty")
	}
}

func TestStateSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")

	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	if err := db.SetWatermark(42, 99); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	id, ok, err := db.Watermark(42)
	if err != nil || !ok || id != 99 {
		t.Errorf("watermark after reopen: id=%d ok=%v err=%v", id, ok, err)
	}
}
