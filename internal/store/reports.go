package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/talentsift/talentsift/internal/ai"
	"github.com/talentsift/talentsift/internal/scoring"
)

// CandidateReport is the complete screening result for one resume.
type CandidateReport struct {
	ScreeningID       string           `json:"screening_id"`
	JobID             string           `json:"job_id"`
	Filename          string           `json:"filename"`
	ResumeURL         string           `json:"resume_url,omitempty"`
	Candidate         ai.CandidateInfo `json:"candidate"`
	FitScore          scoring.FitScore `json:"fit_score"`
	MustHaveMatches   []ai.SkillMatch  `json:"must_have_matches"`
	NiceToHaveMatches []ai.SkillMatch  `json:"nice_to_have_matches"`
	HolisticReasoning string           `json:"holistic_reasoning,omitempty"`
	Insights          ai.Insights      `json:"insights"`
	CreatedAt         time.Time        `json:"created_at"`
}

// SaveReport upserts the report keyed by screening id. The fit score is
// duplicated into its own column for filtering and aggregation.
func (s *Store) SaveReport(ctx context.Context, report *CandidateReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report %s: %w", report.ScreeningID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO candidate_reports (screening_id, job_id, filename, fit_score, report, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (screening_id) DO UPDATE SET fit_score = EXCLUDED.fit_score, report = EXCLUDED.report`,
		report.ScreeningID, report.JobID, report.Filename, report.FitScore.Score, payload, report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving report %s: %w", report.ScreeningID, err)
	}

	return nil
}

// ListReports returns a job's reports, newest first. minScore filters out
// lower-scoring candidates; limit caps the result when positive.
func (s *Store) ListReports(ctx context.Context, jobID string, minScore, limit int) ([]*CandidateReport, error) {
	query := `SELECT report FROM candidate_reports WHERE job_id = $1 AND fit_score >= $2 ORDER BY created_at DESC`
	args := []any{jobID, minScore}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reports for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var reports []*CandidateReport
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		var report CandidateReport
		if err := json.Unmarshal(payload, &report); err != nil {
			return nil, fmt.Errorf("decoding report: %w", err)
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// JobStats are score aggregates across all of a job's reports.
type JobStats struct {
	TotalScreened int     `json:"total_screened"`
	AverageScore  float64 `json:"average_score"`
	HighestScore  int     `json:"highest_score"`
	LowestScore   int     `json:"lowest_score"`
}

// Stats computes score aggregates for a job. A job with no reports yields the
// zero value.
func (s *Store) Stats(ctx context.Context, jobID string) (*JobStats, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(fit_score), 0), COALESCE(MAX(fit_score), 0), COALESCE(MIN(fit_score), 0)
		 FROM candidate_reports WHERE job_id = $1`, jobID)

	var stats JobStats
	err := row.Scan(&stats.TotalScreened, &stats.AverageScore, &stats.HighestScore, &stats.LowestScore)
	if errors.Is(err, sql.ErrNoRows) {
		return &JobStats{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("computing stats for job %s: %w", jobID, err)
	}

	return &stats, nil
}
