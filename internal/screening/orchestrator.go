// Package screening runs the resume screening pipeline for a job: parse the
// document, consult the oracles, aggregate the fit score, persist the report
// and record batch progress.
package screening

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/ai"
	"github.com/talentsift/talentsift/internal/docparse"
	"github.com/talentsift/talentsift/internal/events"
	"github.com/talentsift/talentsift/internal/scoring"
	"github.com/talentsift/talentsift/internal/store"
	"github.com/talentsift/talentsift/internal/tracker"
)

// ErrNoResumesSucceeded is returned when every resume in a batch failed.
var ErrNoResumesSucceeded = errors.New("no resumes were screened successfully")

// Resume is one uploaded document awaiting screening.
type Resume struct {
	Filename    string
	Data        []byte
	ContentType string
}

// Failure itemizes a resume that could not be screened.
type Failure struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// BatchResult is the outcome of screening one batch.
type BatchResult struct {
	ProcessedCount int                      `json:"processed_count"`
	Reports        []*store.CandidateReport `json:"reports"`
	Failures       []Failure                `json:"failures"`
	Timestamp      time.Time                `json:"timestamp"`
}

// ObjectStore uploads resume documents for durable batch membership.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// ReportStore persists candidate reports.
type ReportStore interface {
	SaveReport(ctx context.Context, report *store.CandidateReport) error
}

// JobStore updates per-job screening counters.
type JobStore interface {
	IncrementScreeningStats(ctx context.Context, jobID string, screened int) error
}

// ProgressTracker records batch progress.
type ProgressTracker interface {
	InitializeBatch(ctx context.Context, jobID string) error
	RecordOutcome(ctx context.Context, jobID, filename, outcome, screeningID string) error
	Snapshot(ctx context.Context, jobID string) (tracker.Snapshot, error)
	Unprocessed(ctx context.Context, jobID string) ([]string, error)
}

// EventSink broadcasts progress updates. Implementations must tolerate being
// called concurrently.
type EventSink interface {
	Publish(event events.ProgressEvent)
}

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Parser   docparse.Parser
	Blobs    ObjectStore
	Reports  ReportStore
	Jobs     JobStore
	Tracker  ProgressTracker
	Matcher  ai.SkillMatcher
	Judge    ai.HolisticJudge
	Profile  ai.ProfileExtractor
	Insights ai.InsightsAnalyzer
	Events   EventSink
	Logger   *zap.Logger
}

// Config tunes batch execution.
type Config struct {
	// Workers caps how many resumes are screened concurrently.
	Workers int `mapstructure:"workers"`
	// OracleTimeout bounds the oracle calls for a single resume.
	OracleTimeout time.Duration `mapstructure:"oracle_timeout"`
}

const (
	defaultWorkers       = 3
	defaultOracleTimeout = 2 * time.Minute
	saveAttempts         = 3
	uploadAttempts       = 3
)

// Orchestrator screens resume batches against a job.
type Orchestrator struct {
	deps Deps
	cfg  Config
}

// New creates an Orchestrator. Zero config fields get defaults.
func New(deps Deps, cfg Config) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = defaultOracleTimeout
	}
	return &Orchestrator{deps: deps, cfg: cfg}
}

// ScreenBatch screens all resumes against the job. Individual resume failures
// are itemized, never fatal; ErrNoResumesSucceeded is returned only when not a
// single resume produced a report. The returned BatchResult is valid in both
// cases.
func (o *Orchestrator) ScreenBatch(ctx context.Context, job *store.Job, resumes []Resume) (*BatchResult, error) {
	result := &BatchResult{
		Reports:   []*store.CandidateReport{},
		Failures:  []Failure{},
		Timestamp: time.Now().UTC(),
	}

	// Upload everything before initializing the batch so the tracker locks in
	// a total matching what actually landed in the object store.
	uploaded := o.uploadAll(ctx, job.ID, resumes, result)
	if len(uploaded) == 0 {
		return result, ErrNoResumesSucceeded
	}

	if err := o.deps.Tracker.InitializeBatch(ctx, job.ID); err != nil {
		return result, fmt.Errorf("initializing batch for job %s: %w", job.ID, err)
	}
	o.publishSnapshot(ctx, job.ID, "", "", "")

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		queue = make(chan Resume)
	)

	wg.Add(o.cfg.Workers)
	for i := 0; i < o.cfg.Workers; i++ {
		go func() {
			defer wg.Done()
			for resume := range queue {
				report, failure := o.screenOne(ctx, job, resume)
				mu.Lock()
				if report != nil {
					result.Reports = append(result.Reports, report)
				}
				if failure != nil {
					result.Failures = append(result.Failures, *failure)
				}
				mu.Unlock()
			}
		}()
	}

	for _, resume := range uploaded {
		queue <- resume
	}
	close(queue)
	wg.Wait()

	result.ProcessedCount = len(result.Reports) + len(result.Failures)

	// Files in the store without a recorded outcome point at an earlier crash
	// between report persistence and tracker update.
	if leftover, err := o.deps.Tracker.Unprocessed(ctx, job.ID); err == nil && len(leftover) > 0 {
		o.deps.Logger.Warn("stored files without recorded outcomes",
			zap.String("job_id", job.ID),
			zap.Strings("filenames", leftover),
		)
	}

	if len(result.Reports) == 0 {
		return result, ErrNoResumesSucceeded
	}

	if err := o.deps.Jobs.IncrementScreeningStats(ctx, job.ID, len(result.Reports)); err != nil {
		o.deps.Logger.Warn("updating job screening stats failed",
			zap.String("job_id", job.ID), zap.Error(err))
	}

	return result, nil
}

// uploadAll puts every resume into the object store, collecting upload
// failures. Only uploaded resumes join the batch.
func (o *Orchestrator) uploadAll(ctx context.Context, jobID string, resumes []Resume, result *BatchResult) []Resume {
	uploaded := make([]Resume, 0, len(resumes))
	for _, resume := range resumes {
		key := tracker.BatchPrefix(jobID) + resume.Filename
		_, err := retry(uploadAttempts, func() (struct{}, error) {
			return struct{}{}, o.deps.Blobs.Put(ctx, key, resume.Data, resume.ContentType)
		})
		if err != nil {
			o.deps.Logger.Warn("resume upload failed",
				zap.String("job_id", jobID),
				zap.String("filename", resume.Filename),
				zap.Error(err),
			)
			result.Failures = append(result.Failures, Failure{
				Filename: resume.Filename,
				Reason:   fmt.Sprintf("upload failed: %v", err),
			})
			continue
		}
		uploaded = append(uploaded, resume)
	}
	return uploaded
}

// screenOne runs the full pipeline for a single resume. Exactly one of the
// return values is non-nil.
func (o *Orchestrator) screenOne(ctx context.Context, job *store.Job, resume Resume) (*store.CandidateReport, *Failure) {
	log := o.deps.Logger.With(
		zap.String("job_id", job.ID),
		zap.String("filename", resume.Filename),
	)

	text, err := o.deps.Parser.Parse(resume.Data, resume.Filename)
	if err != nil {
		log.Warn("resume parsing failed", zap.Error(err))
		o.recordOutcome(ctx, job.ID, resume.Filename, tracker.OutcomeFailed, "")
		return nil, &Failure{Filename: resume.Filename, Reason: fmt.Sprintf("parsing failed: %v", err)}
	}

	oracleCtx, cancel := context.WithTimeout(ctx, o.cfg.OracleTimeout)
	defer cancel()

	matches, holistic := o.consultOracles(oracleCtx, job, text, log)

	matchedNames := matchedSkillNames(matches)
	candidate := o.extractCandidate(oracleCtx, text, log)
	insights := o.analyzeInsights(oracleCtx, job.Description, text, matchedNames, log)

	breakdown := scoring.Aggregate(scoring.Input{
		MustHave:          job.MustHaveSkills,
		NiceToHave:        job.NiceToHaveSkills,
		MustHaveMatches:   toScoringMatches(matches.MustHave),
		NiceToHaveMatches: toScoringMatches(matches.NiceToHave),
		HolisticScore:     holistic.Score,
	})

	report := &store.CandidateReport{
		ScreeningID:       uuid.NewString(),
		JobID:             job.ID,
		Filename:          resume.Filename,
		ResumeURL:         tracker.BatchPrefix(job.ID) + resume.Filename,
		Candidate:         *candidate,
		FitScore:          breakdown.Fit,
		MustHaveMatches:   matches.MustHave,
		NiceToHaveMatches: matches.NiceToHave,
		HolisticReasoning: holistic.Reasoning,
		Insights:          *insights,
		CreatedAt:         time.Now().UTC(),
	}

	_, err = retry(saveAttempts, func() (struct{}, error) {
		return struct{}{}, o.deps.Reports.SaveReport(ctx, report)
	})
	if err != nil {
		log.Error("saving candidate report failed", zap.Error(err))
		o.recordOutcome(ctx, job.ID, resume.Filename, tracker.OutcomeFailed, "")
		return nil, &Failure{Filename: resume.Filename, Reason: fmt.Sprintf("saving report failed: %v", err)}
	}

	o.recordOutcome(ctx, job.ID, resume.Filename, tracker.OutcomeSuccess, report.ScreeningID)

	log.Info("resume screened",
		zap.String("screening_id", report.ScreeningID),
		zap.Int("fit_score", report.FitScore.Score),
		zap.Int("must_have_matched", ai.MatchedCount(matches.MustHave)),
		zap.Int("nice_to_have_matched", ai.MatchedCount(matches.NiceToHave)),
	)

	return report, nil
}

// consultOracles runs the skill matcher and the holistic judge concurrently.
// Either oracle failing degrades its side of the score instead of failing the
// resume: no matches scores the tiers at zero, and a failed judgment falls
// back to the neutral holistic score.
func (o *Orchestrator) consultOracles(ctx context.Context, job *store.Job, resumeText string, log *zap.Logger) (*ai.SkillMatchSet, *ai.HolisticAssessment) {
	var (
		wg       sync.WaitGroup
		matches  *ai.SkillMatchSet
		holistic *ai.HolisticAssessment
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		m, err := o.deps.Matcher.Match(ctx, resumeText, skillNames(job.MustHaveSkills), skillNames(job.NiceToHaveSkills))
		if err != nil {
			log.Warn("skill matching failed, scoring tiers at zero", zap.Error(err))
			return
		}
		matches = m
	}()
	go func() {
		defer wg.Done()
		h, err := o.deps.Judge.Score(ctx, job.Description, resumeText)
		if err != nil {
			log.Warn("holistic judgment failed, applying neutral score", zap.Error(err))
			return
		}
		holistic = h
	}()
	wg.Wait()

	if matches == nil {
		matches = &ai.SkillMatchSet{}
	}
	if holistic == nil {
		holistic = &ai.HolisticAssessment{
			Score:     scoring.NeutralHolisticScore,
			Reasoning: "Holistic assessment unavailable, neutral score applied.",
		}
	}

	return matches, holistic
}

func (o *Orchestrator) extractCandidate(ctx context.Context, resumeText string, log *zap.Logger) *ai.CandidateInfo {
	candidate, err := o.deps.Profile.Extract(ctx, resumeText)
	if err != nil {
		log.Warn("candidate info extraction failed, using defaults", zap.Error(err))
		return ai.DefaultCandidateInfo()
	}
	return candidate
}

func (o *Orchestrator) analyzeInsights(ctx context.Context, jobDescription, resumeText string, matchedSkills []string, log *zap.Logger) *ai.Insights {
	insights, err := o.deps.Insights.Analyze(ctx, jobDescription, resumeText, matchedSkills)
	if err != nil {
		log.Warn("insights analysis failed, using defaults", zap.Error(err))
		return ai.DefaultInsights(matchedSkills)
	}
	return insights
}

// recordOutcome updates the batch tracker and publishes a progress event.
// Tracker failures are logged and swallowed: progress accounting must never
// fail a resume that already has a persisted report.
func (o *Orchestrator) recordOutcome(ctx context.Context, jobID, filename, outcome, screeningID string) {
	if err := o.deps.Tracker.RecordOutcome(ctx, jobID, filename, outcome, screeningID); err != nil {
		o.deps.Logger.Error("recording batch outcome failed",
			zap.String("job_id", jobID),
			zap.String("filename", filename),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}
	o.publishSnapshot(ctx, jobID, filename, outcome, screeningID)
}

func (o *Orchestrator) publishSnapshot(ctx context.Context, jobID, filename, outcome, screeningID string) {
	if o.deps.Events == nil {
		return
	}

	snap, err := o.deps.Tracker.Snapshot(ctx, jobID)
	if err != nil {
		o.deps.Logger.Warn("snapshot for progress event failed",
			zap.String("job_id", jobID), zap.Error(err))
		return
	}

	o.deps.Events.Publish(events.ProgressEvent{
		JobID:       jobID,
		Filename:    filename,
		Outcome:     outcome,
		Status:      snap.Status,
		Processed:   snap.Processed,
		Total:       snap.Total,
		Percentage:  float64(snap.Percentage),
		ScreeningID: screeningID,
	})
}

func retry[T any](attempts int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for i := 0; i < attempts; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		time.Sleep(time.Duration(100*(i+1)) * time.Millisecond)
	}

	return zero, lastErr
}

func skillNames(skills []scoring.Skill) []string {
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		names = append(names, s.Name)
	}
	return names
}

func matchedSkillNames(set *ai.SkillMatchSet) []string {
	var names []string
	for _, m := range set.MustHave {
		if m.Found {
			names = append(names, m.Skill)
		}
	}
	for _, m := range set.NiceToHave {
		if m.Found {
			names = append(names, m.Skill)
		}
	}
	return names
}

func toScoringMatches(matches []ai.SkillMatch) []scoring.Match {
	out := make([]scoring.Match, 0, len(matches))
	for _, m := range matches {
		out = append(out, scoring.Match{Skill: m.Skill, Found: m.Found})
	}
	return out
}
