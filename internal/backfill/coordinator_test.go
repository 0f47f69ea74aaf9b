package backfill

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/amarchetti/teledoc/internal/bus"
	"github.com/amarchetti/teledoc/internal/chat"
	"github.com/amarchetti/teledoc/internal/docs"
	"github.com/amarchetti/teledoc/internal/pipeline"
	"github.com/amarchetti/teledoc/internal/state"
	"github.com/amarchetti/teledoc/internal/status"
)

type recordingEditor struct {
	mu      sync.Mutex
	applied [][]docs.Op
}

func (e *recordingEditor) EndIndex(_ context.Context) (int, error) { return 1, nil }

func (e *recordingEditor) Apply(_ context.Context, ops []docs.Op) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applied = append(e.applied, ops)
	return nil
}

func (e *recordingEditor) TestConnection(_ context.Context) bool { return true }

func (e *recordingEditor) batches() [][]docs.Op {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applied
}

// fakeSource serves a fixed history slice and records catch-up fetches.
type fakeSource struct {
	mu         sync.Mutex
	history    []*chat.Message
	fetchCalls int
	lastMinID  int64
}

func (s *fakeSource) Start(_ context.Context) error { return nil }
func (s *fakeSource) Stop()                         {}

func (s *fakeSource) FetchBatch(_ context.Context, _ int64, limit int, minID int64) ([]*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCalls++
	s.lastMinID = minID
	var out []*chat.Message
	for _, m := range s.history {
		if m.ID > minID && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeSource) Subscribe(ctx context.Context, _ int64, _ func(*chat.Message)) error {
	<-ctx.Done()
	return nil
}

func (s *fakeSource) fetches() (int, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls, s.lastMinID
}

func testMsg(id int64, text string) *chat.Message {
	return &chat.Message{
		ID:          id,
		Text:        text,
		Date:        time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC),
		ChannelID:   42,
		ChannelName: "News",
	}
}

func testHarness(t *testing.T, src *fakeSource) (*Coordinator, *state.DB, *recordingEditor, *bus.Bus) {
	t.Helper()
	st, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if _, err := st.Migrate(); err != nil {
		t.Fatal(err)
	}

	ed := &recordingEditor{}
	b := bus.New()
	pipe := pipeline.New(pipeline.Config{
		ChannelID:     42,
		BatchSize:     10,
		FlushInterval: time.Hour,
		MaxRetries:    1,
		RetryBaseWait: time.Millisecond,
	}, ed, st, status.NewMachine(b), b, zap.NewNop())
	pipe.Start(context.Background())
	t.Cleanup(pipe.Stop)

	return New(st, pipe, src, 42, 100, b, zap.NewNop()), st, ed, b
}

func batchText(ops []docs.Op) string {
	var sb strings.Builder
	for _, op := range ops {
		if ins, ok := op.(docs.InsertText); ok {
			sb.WriteString(ins.Text)
		}
	}
	return sb.String()
}

func TestRunReplaysStagedBatchBeforeCatchUp(t *testing.T) {
	src := &fakeSource{history: []*chat.Message{
		testMsg(1, "staged one"),
		testMsg(2, "staged two"),
		testMsg(3, "missed three"),
		testMsg(4, "missed four"),
	}}
	coord, st, ed, _ := testHarness(t, src)

	// A previous run staged ids 1 and 2 after a failed flush, then died
	// before any watermark was written. Ids 3 and 4 arrived while down.
	// A successful replay advances the watermark to 2, which the catch-up
	// then fetches from.
	if err := st.StagePending("batch-old", []*chat.Message{
		testMsg(1, "staged one"),
		testMsg(2, "staged two"),
	}); err != nil {
		t.Fatal(err)
	}

	coord.Run(context.Background())

	batches := ed.batches()
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want replay then catch-up", len(batches))
	}
	first := batchText(batches[0])
	if !strings.Contains(first, "staged one") || !strings.Contains(first, "staged two") {
		t.Errorf("replay batch = %q", first)
	}
	if strings.Index(first, "staged one") > strings.Index(first, "staged two") {
		t.Error("replayed messages out of original order")
	}
	second := batchText(batches[1])
	if !strings.Contains(second, "missed three") || !strings.Contains(second, "missed four") {
		t.Errorf("catch-up batch = %q", second)
	}

	if _, minID := src.fetches(); minID != 2 {
		t.Errorf("catch-up fetched from %d, want watermark 2", minID)
	}

	pending, err := st.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if pending != nil {
		t.Error("staged batch survived successful replay")
	}
	id, _, _ := st.Watermark(42)
	if id != 4 {
		t.Errorf("watermark = %d, want 4", id)
	}
}

func TestRunFreshStartSkipsFetch(t *testing.T) {
	src := &fakeSource{history: []*chat.Message{testMsg(1, "old")}}
	coord, _, ed, _ := testHarness(t, src)

	coord.Run(context.Background())

	if calls, _ := src.fetches(); calls != 0 {
		t.Errorf("fetch calls = %d, want 0 without a watermark", calls)
	}
	if len(ed.batches()) != 0 {
		t.Errorf("batches = %d, want 0", len(ed.batches()))
	}
}

func TestRunCatchUpWithoutPending(t *testing.T) {
	src := &fakeSource{history: []*chat.Message{
		testMsg(5, "before watermark"),
		testMsg(6, "after watermark"),
	}}
	coord, st, ed, _ := testHarness(t, src)

	if err := st.SetWatermark(42, 5); err != nil {
		t.Fatal(err)
	}
	coord.Run(context.Background())

	batches := ed.batches()
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	text := batchText(batches[0])
	if strings.Contains(text, "before watermark") {
		t.Error("already-delivered message re-fetched")
	}
	if !strings.Contains(text, "after watermark") {
		t.Errorf("missed message not delivered: %q", text)
	}
	id, _, _ := st.Watermark(42)
	if id != 6 {
		t.Errorf("watermark = %d, want 6", id)
	}
}

func TestRunPublishesDone(t *testing.T) {
	src := &fakeSource{}
	coord, _, _, b := testHarness(t, src)

	events, unsub := b.Subscribe("backfill.", 4)
	defer unsub()

	coord.Run(context.Background())

	select {
	case ev := <-events:
		if ev.Kind != bus.KindBackfillDone {
			t.Errorf("kind = %q", ev.Kind)
		}
	default:
		t.Fatal("backfill completion never published")
	}
}

func TestRunEmptyCatchUp(t *testing.T) {
	src := &fakeSource{}
	coord, st, ed, _ := testHarness(t, src)

	if err := st.SetWatermark(42, 9); err != nil {
		t.Fatal(err)
	}
	coord.Run(context.Background())

	if calls, _ := src.fetches(); calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}
	if len(ed.batches()) != 0 {
		t.Errorf("batches = %d for an empty catch-up, want 0", len(ed.batches()))
	}
}
