package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Batch lifecycle states.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Per-file outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

var (
	// ErrNotFound is returned by record stores when no tracker record exists.
	ErrNotFound = errors.New("tracker record not found")
	// ErrConflict is returned by record stores when a conditional write loses
	// to a concurrent writer.
	ErrConflict = errors.New("tracker record changed since read")
)

// Entry is one append-only dedup entry for a processed file.
type Entry struct {
	Filename    string    `json:"filename"`
	Outcome     string    `json:"outcome"`
	Timestamp   time.Time `json:"timestamp"`
	ScreeningID string    `json:"screening_id,omitempty"`
}

// Record is the durable per-job batch progress record. Version is the
// optimistic-concurrency token managed by the record store; the tracker never
// touches it beyond passing it back on writes.
type Record struct {
	JobID string `json:"job_id"`

	CurrentBatchTotal      int `json:"current_batch_total"`
	CurrentBatchProcessed  int `json:"current_batch_processed"`
	CurrentBatchSuccessful int `json:"current_batch_successful"`
	CurrentBatchFailed     int `json:"current_batch_failed"`

	AllTimeProcessed  int `json:"all_time_processed"`
	AllTimeSuccessful int `json:"all_time_successful"`
	AllTimeFailed     int `json:"all_time_failed"`

	Entries []Entry `json:"entries"`

	Status         string    `json:"status"`
	BatchStartTime time.Time `json:"batch_start_time"`
	UpdatedAt      time.Time `json:"updated_at"`

	Version int64 `json:"-"`
}

// HasEntry reports whether a dedup entry for the filename already exists.
func (r *Record) HasEntry(filename string) bool {
	for _, e := range r.Entries {
		if e.Filename == filename {
			return true
		}
	}
	return false
}

// RecordStore persists tracker records with compare-and-swap semantics.
type RecordStore interface {
	// Get returns the record for the job or ErrNotFound.
	Get(ctx context.Context, jobID string) (*Record, error)
	// Create inserts a fresh record, failing with ErrConflict if one exists.
	Create(ctx context.Context, rec *Record) error
	// UpdateIfUnchanged writes rec back conditioned on rec.Version still being
	// current, returning ErrConflict when a concurrent writer got there first.
	UpdateIfUnchanged(ctx context.Context, rec *Record) error
	// Delete removes the record for a job. Deleting a missing record is not
	// an error.
	Delete(ctx context.Context, jobID string) error
}

// FileLister enumerates filenames present in the durable object store under a
// prefix. The tracker reconciles its counters against this enumeration.
type FileLister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// Snapshot is a point-in-time view of batch progress.
type Snapshot struct {
	Total      int    `json:"total"`
	Processed  int    `json:"processed"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	Remaining  int    `json:"remaining"`
	Status     string `json:"status"`
	Percentage int    `json:"percentage"`
}

// Tracker owns the batch progress lifecycle for screening jobs. All mutations
// run as read-modify-write loops against the record store so concurrent
// workers never lose increments.
type Tracker struct {
	records     RecordStore
	files       FileLister
	logger      *zap.Logger
	maxAttempts int
	now         func() time.Time
}

const defaultMaxAttempts = 5

// New creates a Tracker over the given stores.
func New(records RecordStore, files FileLister, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		records:     records,
		files:       files,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
}

// BatchPrefix is the object-store prefix holding a job's resumes.
func BatchPrefix(jobID string) string {
	return fmt.Sprintf("resumes/%s/", jobID)
}

// InitializeBatch ensures a batch record exists for the job and, when the
// prior batch completed and new files appeared in the store, starts a fresh
// batch sized to the excess. Called once per resume before processing; all
// calls after the first are no-ops for an in-flight batch. Safe under
// concurrent invocation: the first writer wins and losers adopt its state.
func (t *Tracker) InitializeBatch(ctx context.Context, jobID string) error {
	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		rec, err := t.records.Get(ctx, jobID)
		switch {
		case errors.Is(err, ErrNotFound):
			cerr := t.createRecord(ctx, jobID)
			if cerr == nil || errors.Is(cerr, ErrConflict) {
				// On conflict another worker created it first; its state stands.
				return nil
			}
			return cerr
		case err != nil:
			return fmt.Errorf("get tracker record: %w", err)
		}

		if rec.Status != StatusCompleted {
			// Batch already in flight, nothing to lock in.
			return nil
		}

		filenames, err := t.files.List(ctx, BatchPrefix(jobID))
		if err != nil {
			return fmt.Errorf("enumerate batch files: %w", err)
		}

		excess := len(filenames) - rec.AllTimeProcessed
		if excess <= 0 {
			// Completed batch and no new files: repeated upload of known
			// filenames, nothing to do.
			return nil
		}

		now := t.now()
		rec.CurrentBatchTotal = excess
		rec.CurrentBatchProcessed = 0
		rec.CurrentBatchSuccessful = 0
		rec.CurrentBatchFailed = 0
		rec.Status = StatusPending
		rec.BatchStartTime = now
		rec.UpdatedAt = now

		err = t.records.UpdateIfUnchanged(ctx, rec)
		if err == nil {
			t.logger.Info("new batch detected",
				zap.String("job_id", jobID),
				zap.Int("batch_total", excess),
				zap.Int("files_in_store", len(filenames)),
			)
			return nil
		}
		if errors.Is(err, ErrConflict) {
			// A concurrent detection won the reset; observe and proceed.
			continue
		}
		return fmt.Errorf("reset tracker record: %w", err)
	}

	return fmt.Errorf("initialize batch for job %s: %w", jobID, ErrConflict)
}

func (t *Tracker) createRecord(ctx context.Context, jobID string) error {
	filenames, err := t.files.List(ctx, BatchPrefix(jobID))
	if err != nil {
		return fmt.Errorf("enumerate batch files: %w", err)
	}

	now := t.now()
	rec := &Record{
		JobID:             jobID,
		CurrentBatchTotal: len(filenames),
		Status:            StatusPending,
		Entries:           []Entry{},
		BatchStartTime:    now,
		UpdatedAt:         now,
	}

	if err := t.records.Create(ctx, rec); err != nil {
		return err
	}

	t.logger.Info("batch tracker created",
		zap.String("job_id", jobID),
		zap.Int("batch_total", rec.CurrentBatchTotal),
	)
	return nil
}

// RecordOutcome records the terminal outcome for one resume file. Idempotent
// per filename: a retried call for an already-recorded file changes nothing.
func (t *Tracker) RecordOutcome(ctx context.Context, jobID, filename, outcome, screeningID string) error {
	if outcome != OutcomeSuccess && outcome != OutcomeFailed {
		return fmt.Errorf("invalid outcome %q", outcome)
	}

	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(50*attempt) * time.Millisecond):
			}
		}

		rec, err := t.records.Get(ctx, jobID)
		if err != nil {
			return fmt.Errorf("get tracker record: %w", err)
		}

		if rec.HasEntry(filename) {
			return nil
		}

		rec.Entries = append(rec.Entries, Entry{
			Filename:    filename,
			Outcome:     outcome,
			Timestamp:   t.now(),
			ScreeningID: screeningID,
		})

		rec.CurrentBatchProcessed++
		rec.AllTimeProcessed++
		if outcome == OutcomeSuccess {
			rec.CurrentBatchSuccessful++
			rec.AllTimeSuccessful++
		} else {
			rec.CurrentBatchFailed++
			rec.AllTimeFailed++
		}

		if rec.CurrentBatchTotal > 0 && rec.CurrentBatchProcessed > rec.CurrentBatchTotal {
			// Should not happen given filename dedup; clamp so processed never
			// exceeds the locked total.
			t.logger.Warn("processed count exceeds batch total, clamping",
				zap.String("job_id", jobID),
				zap.Int("processed", rec.CurrentBatchProcessed),
				zap.Int("total", rec.CurrentBatchTotal),
			)
			rec.CurrentBatchProcessed = rec.CurrentBatchTotal
		}

		if rec.CurrentBatchTotal > 0 && rec.CurrentBatchProcessed == rec.CurrentBatchTotal {
			rec.Status = StatusCompleted
		} else {
			rec.Status = StatusProcessing
		}
		rec.UpdatedAt = t.now()

		err = t.records.UpdateIfUnchanged(ctx, rec)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrConflict) {
			continue
		}
		return fmt.Errorf("update tracker record: %w", err)
	}

	return fmt.Errorf("record outcome for %s/%s: %w", jobID, filename, ErrConflict)
}

// Snapshot returns the current progress view. A job with no tracker record
// yet reports an empty pending snapshot rather than an error so callers can
// poll before the first resume lands.
func (t *Tracker) Snapshot(ctx context.Context, jobID string) (Snapshot, error) {
	rec, err := t.records.Get(ctx, jobID)
	if errors.Is(err, ErrNotFound) {
		return Snapshot{Status: StatusPending}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get tracker record: %w", err)
	}

	return snapshotOf(rec), nil
}

func snapshotOf(rec *Record) Snapshot {
	s := Snapshot{
		Total:      rec.CurrentBatchTotal,
		Processed:  rec.CurrentBatchProcessed,
		Successful: rec.CurrentBatchSuccessful,
		Failed:     rec.CurrentBatchFailed,
		Status:     rec.Status,
	}

	if remaining := rec.CurrentBatchTotal - rec.CurrentBatchProcessed; remaining > 0 {
		s.Remaining = remaining
	}

	if rec.CurrentBatchTotal > 0 {
		pct := int(math.Round(float64(rec.CurrentBatchProcessed) / float64(rec.CurrentBatchTotal) * 100))
		if pct > 100 {
			pct = 100
		}
		s.Percentage = pct
	}

	return s
}

// Unprocessed returns the filenames present in the object store that have no
// dedup entry yet. Recovers the gap left by a crash between persisting a
// report and updating the tracker.
func (t *Tracker) Unprocessed(ctx context.Context, jobID string) ([]string, error) {
	filenames, err := t.files.List(ctx, BatchPrefix(jobID))
	if err != nil {
		return nil, fmt.Errorf("enumerate batch files: %w", err)
	}

	rec, err := t.records.Get(ctx, jobID)
	if errors.Is(err, ErrNotFound) {
		return filenames, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tracker record: %w", err)
	}

	recorded := make(map[string]bool, len(rec.Entries))
	for _, e := range rec.Entries {
		recorded[e.Filename] = true
	}

	var missing []string
	for _, f := range filenames {
		if !recorded[f] {
			missing = append(missing, f)
		}
	}
	return missing, nil
}

// Delete removes the tracker record for a job, if any.
func (t *Tracker) Delete(ctx context.Context, jobID string) error {
	return t.records.Delete(ctx, jobID)
}
