package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/talentsift/talentsift/internal/tracker"
)

// TrackerRecords adapts the database to the tracker's record store contract.
// The record itself lives in a jsonb column; the version column carries the
// compare-and-swap token.
type TrackerRecords struct {
	store *Store
}

// TrackerRecords returns the batch tracker record store.
func (s *Store) TrackerRecords() *TrackerRecords {
	return &TrackerRecords{store: s}
}

// Get loads the record for a job, or tracker.ErrNotFound.
func (t *TrackerRecords) Get(ctx context.Context, jobID string) (*tracker.Record, error) {
	row := t.store.db.QueryRowContext(ctx,
		`SELECT record, version FROM batch_trackers WHERE job_id = $1`, jobID)

	var (
		payload []byte
		version int64
	)
	err := row.Scan(&payload, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tracker.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning tracker record %s: %w", jobID, err)
	}

	var rec tracker.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decoding tracker record %s: %w", jobID, err)
	}
	rec.Version = version

	return &rec, nil
}

// Create inserts a fresh record, returning tracker.ErrConflict when one
// already exists.
func (t *TrackerRecords) Create(ctx context.Context, rec *tracker.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding tracker record %s: %w", rec.JobID, err)
	}

	res, err := t.store.db.ExecContext(ctx,
		`INSERT INTO batch_trackers (job_id, record, version, updated_at)
		 VALUES ($1, $2, 1, $3)
		 ON CONFLICT (job_id) DO NOTHING`,
		rec.JobID, payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting tracker record %s: %w", rec.JobID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking insert result: %w", err)
	}
	if affected == 0 {
		return tracker.ErrConflict
	}

	rec.Version = 1
	return nil
}

// UpdateIfUnchanged writes the record back only when its version is still
// current, returning tracker.ErrConflict when a concurrent writer advanced it.
func (t *TrackerRecords) UpdateIfUnchanged(ctx context.Context, rec *tracker.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding tracker record %s: %w", rec.JobID, err)
	}

	res, err := t.store.db.ExecContext(ctx,
		`UPDATE batch_trackers SET record = $2, version = version + 1, updated_at = $3
		 WHERE job_id = $1 AND version = $4`,
		rec.JobID, payload, time.Now().UTC(), rec.Version,
	)
	if err != nil {
		return fmt.Errorf("updating tracker record %s: %w", rec.JobID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return tracker.ErrConflict
	}

	rec.Version++
	return nil
}

// Delete removes the record. Missing records are not an error.
func (t *TrackerRecords) Delete(ctx context.Context, jobID string) error {
	if _, err := t.store.db.ExecContext(ctx, `DELETE FROM batch_trackers WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("deleting tracker record %s: %w", jobID, err)
	}
	return nil
}
