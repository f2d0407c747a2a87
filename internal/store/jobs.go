package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/talentsift/talentsift/internal/scoring"
)

// Job is a position candidates are screened against.
type Job struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	DescriptionURL   string          `json:"description_url,omitempty"`
	MustHaveSkills   []scoring.Skill `json:"must_have_skills"`
	NiceToHaveSkills []scoring.Skill `json:"nice_to_have_skills"`
	ScreenedCount    int             `json:"screened_count"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// CreateJob inserts a new job.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	mustHave, err := json.Marshal(job.MustHaveSkills)
	if err != nil {
		return fmt.Errorf("encoding must-have skills: %w", err)
	}
	niceToHave, err := json.Marshal(job.NiceToHaveSkills)
	if err != nil {
		return fmt.Errorf("encoding nice-to-have skills: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, title, description, description_url, must_have_skills, nice_to_have_skills, screened_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.Title, job.Description, job.DescriptionURL, mustHave, niceToHave, job.ScreenedCount, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting job %s: %w", job.ID, err)
	}

	return nil
}

// GetJob returns the job or ErrNotFound.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, description_url, must_have_skills, nice_to_have_skills, screened_count, created_at, updated_at
		 FROM jobs WHERE id = $1`, id)

	var (
		job        Job
		mustHave   []byte
		niceToHave []byte
	)
	err := row.Scan(&job.ID, &job.Title, &job.Description, &job.DescriptionURL, &mustHave, &niceToHave, &job.ScreenedCount, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning job %s: %w", id, err)
	}

	if err := json.Unmarshal(mustHave, &job.MustHaveSkills); err != nil {
		return nil, fmt.Errorf("decoding must-have skills: %w", err)
	}
	if err := json.Unmarshal(niceToHave, &job.NiceToHaveSkills); err != nil {
		return nil, fmt.Errorf("decoding nice-to-have skills: %w", err)
	}

	return &job, nil
}

// ListJobs returns all jobs, newest first.
func (s *Store) ListJobs(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, description_url, must_have_skills, nice_to_have_skills, screened_count, created_at, updated_at
		 FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var (
			job        Job
			mustHave   []byte
			niceToHave []byte
		)
		if err := rows.Scan(&job.ID, &job.Title, &job.Description, &job.DescriptionURL, &mustHave, &niceToHave, &job.ScreenedCount, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		if err := json.Unmarshal(mustHave, &job.MustHaveSkills); err != nil {
			return nil, fmt.Errorf("decoding must-have skills: %w", err)
		}
		if err := json.Unmarshal(niceToHave, &job.NiceToHaveSkills); err != nil {
			return nil, fmt.Errorf("decoding nice-to-have skills: %w", err)
		}
		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

// IncrementScreeningStats bumps the job's screened counter after a batch.
func (s *Store) IncrementScreeningStats(ctx context.Context, jobID string, screened int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET screened_count = screened_count + $2, updated_at = $3 WHERE id = $1`,
		jobID, screened, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("updating screening stats for job %s: %w", jobID, err)
	}
	return nil
}

// DeleteJobCascade removes the job together with its candidate reports and
// batch tracker record in one transaction.
func (s *Store) DeleteJobCascade(ctx context.Context, jobID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM candidate_reports WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("deleting reports for job %s: %w", jobID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_trackers WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("deleting tracker for job %s: %w", jobID, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("deleting job %s: %w", jobID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}

	return tx.Commit()
}
