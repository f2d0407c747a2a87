package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// memoryRecordStore is an in-memory RecordStore with real CAS semantics.
type memoryRecordStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

func newMemoryRecordStore() *memoryRecordStore {
	return &memoryRecordStore{records: make(map[string]*Record)}
}

func cloneRecord(rec *Record) *Record {
	out := *rec
	out.Entries = append([]Entry(nil), rec.Entries...)
	return &out
}

func (m *memoryRecordStore) Get(_ context.Context, jobID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *memoryRecordStore) Create(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.JobID]; ok {
		return ErrConflict
	}
	stored := cloneRecord(rec)
	stored.Version = 1
	m.records[rec.JobID] = stored
	return nil
}

func (m *memoryRecordStore) UpdateIfUnchanged(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.records[rec.JobID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != rec.Version {
		return ErrConflict
	}
	stored := cloneRecord(rec)
	stored.Version = current.Version + 1
	m.records[rec.JobID] = stored
	return nil
}

func (m *memoryRecordStore) Delete(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, jobID)
	return nil
}

type stubLister struct {
	mu    sync.Mutex
	files []string
}

func (s *stubLister) List(_ context.Context, _ string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files...), nil
}

func (s *stubLister) set(files ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = files
}

func newTestTracker(files ...string) (*Tracker, *memoryRecordStore, *stubLister) {
	records := newMemoryRecordStore()
	lister := &stubLister{files: files}
	return New(records, lister, zap.NewNop()), records, lister
}

func TestInitializeBatchLocksTotal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr, _, _ := newTestTracker("a.pdf", "b.pdf", "c.pdf")

	if err := tr.InitializeBatch(ctx, "job1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, err := tr.Snapshot(ctx, "job1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Total != 3 || snap.Processed != 0 || snap.Status != StatusPending {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	// Repeat calls for the same in-flight batch change nothing.
	if err := tr.InitializeBatch(ctx, "job1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, _ = tr.Snapshot(ctx, "job1")
	if snap.Total != 3 {
		t.Fatalf("expected total to stay locked at 3, got %d", snap.Total)
	}
}

func TestBatchCompletionScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr, _, _ := newTestTracker("a.pdf", "b.pdf", "c.pdf")

	if err := tr.InitializeBatch(ctx, "job1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, rec := range []struct {
		file    string
		outcome string
	}{
		{"a.pdf", OutcomeSuccess},
		{"b.pdf", OutcomeSuccess},
		{"c.pdf", OutcomeFailed},
	} {
		if err := tr.RecordOutcome(ctx, "job1", rec.file, rec.outcome, "s-"+rec.file); err != nil {
			t.Fatalf("record outcome %s: %v", rec.file, err)
		}
	}

	snap, err := tr.Snapshot(ctx, "job1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", snap.Status)
	}
	if snap.Percentage != 100 || snap.Successful != 2 || snap.Failed != 1 || snap.Remaining != 0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestRecordOutcomeIdempotentPerFilename(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr, _, _ := newTestTracker("a.pdf", "b.pdf")

	if err := tr.InitializeBatch(ctx, "job1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tr.RecordOutcome(ctx, "job1", "a.pdf", OutcomeSuccess, "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Client retry for the same file must be a no-op.
	if err := tr.RecordOutcome(ctx, "job1", "a.pdf", OutcomeFailed, "s2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, _ := tr.Snapshot(ctx, "job1")
	if snap.Processed != 1 || snap.Successful != 1 || snap.Failed != 0 {
		t.Fatalf("expected single counted outcome, got %+v", snap)
	}
}

func TestPercentageMonotonicAndBounded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	files := []string{"a", "b", "c", "d", "e", "f", "g"}
	tr, _, _ := newTestTracker(files...)

	if err := tr.InitializeBatch(ctx, "job1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := -1
	for _, f := range files {
		if err := tr.RecordOutcome(ctx, "job1", f, OutcomeSuccess, ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		snap, err := tr.Snapshot(ctx, "job1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if snap.Percentage < last {
			t.Fatalf("percentage regressed: %d -> %d", last, snap.Percentage)
		}
		if snap.Percentage > 100 {
			t.Fatalf("percentage above 100: %d", snap.Percentage)
		}
		last = snap.Percentage
	}
	if last != 100 {
		t.Fatalf("expected 100%% at completion, got %d", last)
	}
}

func TestNewBatchDetectionAfterCompletion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr, _, lister := newTestTracker("a.pdf", "b.pdf")

	if err := tr.InitializeBatch(ctx, "job1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, f := range []string{"a.pdf", "b.pdf"} {
		if err := tr.RecordOutcome(ctx, "job1", f, OutcomeSuccess, ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	snap, _ := tr.Snapshot(ctx, "job1")
	if snap.Status != StatusCompleted {
		t.Fatalf("expected first batch completed, got %s", snap.Status)
	}

	// Three new files land in the store: 5 total, 2 processed all-time.
	lister.set("a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf")

	if err := tr.InitializeBatch(ctx, "job1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, _ = tr.Snapshot(ctx, "job1")
	if snap.Total != 3 {
		t.Fatalf("expected new batch total 3, got %d", snap.Total)
	}
	if snap.Processed != 0 || snap.Successful != 0 || snap.Failed != 0 {
		t.Fatalf("expected batch counters reset, got %+v", snap)
	}
	if snap.Status != StatusPending {
		t.Fatalf("expected pending, got %s", snap.Status)
	}
}

func TestInitializeBatchConcurrentFirstWriterWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr, _, _ := newTestTracker("a.pdf", "b.pdf", "c.pdf")

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- tr.InitializeBatch(ctx, "job1")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	snap, _ := tr.Snapshot(ctx, "job1")
	if snap.Total != 3 || snap.Processed != 0 {
		t.Fatalf("expected single initialization, got %+v", snap)
	}
}

func TestRecordOutcomeConcurrentIncrements(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	const n = 20
	files := make([]string, n)
	for i := range files {
		files[i] = fmt.Sprintf("resume-%02d.pdf", i)
	}
	tr, _, _ := newTestTracker(files...)
	// Enough headroom for every writer to win a CAS round eventually.
	tr.maxAttempts = 100

	if err := tr.InitializeBatch(ctx, "job1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, f := range files {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			errs <- tr.RecordOutcome(ctx, "job1", name, OutcomeSuccess, "")
		}(f)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	snap, _ := tr.Snapshot(ctx, "job1")
	if snap.Processed != n || snap.Successful != n || snap.Status != StatusCompleted {
		t.Fatalf("lost increments under concurrency: %+v", snap)
	}
}

func TestSnapshotWithoutRecord(t *testing.T) {
	t.Parallel()

	tr, _, _ := newTestTracker()
	snap, err := tr.Snapshot(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Status != StatusPending || snap.Total != 0 || snap.Percentage != 0 {
		t.Fatalf("expected empty pending snapshot, got %+v", snap)
	}
}

func TestUnprocessedReportsGap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr, _, _ := newTestTracker("a.pdf", "b.pdf", "c.pdf")

	if err := tr.InitializeBatch(ctx, "job1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tr.RecordOutcome(ctx, "job1", "b.pdf", OutcomeSuccess, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	missing, err := tr.Unprocessed(ctx, "job1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(missing) != 2 || missing[0] != "a.pdf" || missing[1] != "c.pdf" {
		t.Fatalf("unexpected unprocessed set: %v", missing)
	}
}

func TestRecordOutcomeInvalidOutcome(t *testing.T) {
	t.Parallel()

	tr, _, _ := newTestTracker("a.pdf")
	err := tr.RecordOutcome(context.Background(), "job1", "a.pdf", "maybe", "")
	if err == nil {
		t.Fatal("expected error for invalid outcome")
	}
}

func TestRecordOutcomeExhaustsRetries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	records := newMemoryRecordStore()
	lister := &stubLister{files: []string{"a.pdf"}}
	tr := New(&alwaysConflict{inner: records}, lister, zap.NewNop())

	if err := tr.InitializeBatch(ctx, "job1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := tr.RecordOutcome(ctx, "job1", "a.pdf", OutcomeSuccess, "")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict after retries, got %v", err)
	}
}

// alwaysConflict lets creates through but fails every conditional update.
type alwaysConflict struct {
	inner *memoryRecordStore
}

func (a *alwaysConflict) Get(ctx context.Context, jobID string) (*Record, error) {
	return a.inner.Get(ctx, jobID)
}

func (a *alwaysConflict) Create(ctx context.Context, rec *Record) error {
	return a.inner.Create(ctx, rec)
}

func (a *alwaysConflict) UpdateIfUnchanged(context.Context, *Record) error {
	return ErrConflict
}

func (a *alwaysConflict) Delete(ctx context.Context, jobID string) error {
	return a.inner.Delete(ctx, jobID)
}
