package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/docparse"
	"github.com/talentsift/talentsift/internal/scoring"
	"github.com/talentsift/talentsift/internal/screening"
	"github.com/talentsift/talentsift/internal/store"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// createJob accepts a multipart form with the job description document
// (field "description"), a title, and JSON arrays of skill names. Skills get
// the default weights.
func (s *Server) createJob(c *gin.Context) {
	title := c.PostForm("title")
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	mustHave, err := skillNamesField(c, "must_have_skills")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(mustHave) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one must-have skill is required"})
		return
	}
	niceToHave, err := skillNamesField(c, "nice_to_have_skills")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fileHeader, err := c.FormFile("description")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "description document is required"})
		return
	}
	if !docparse.SupportedExtension(fileHeader.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported document format: %s", fileHeader.Filename)})
		return
	}

	data, contentType, err := readUpload(fileHeader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading description document failed"})
		return
	}

	description, err := s.parser.Parse(data, fileHeader.Filename)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("parsing description failed: %v", err)})
		return
	}

	now := time.Now().UTC()
	descriptionKey := fmt.Sprintf("job-descriptions/%d_%s", now.Unix(), fileHeader.Filename)
	if err := s.blobs.Put(c.Request.Context(), descriptionKey, data, contentType); err != nil {
		s.logger.Error("uploading job description failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storing description document failed"})
		return
	}

	job := &store.Job{
		ID:               uuid.NewString(),
		Title:            title,
		Description:      description,
		DescriptionURL:   descriptionKey,
		MustHaveSkills:   scoring.WithDefaultWeights(mustHave, scoring.DefaultMustHaveWeight),
		NiceToHaveSkills: scoring.WithDefaultWeights(niceToHave, scoring.DefaultNiceToHaveWeight),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.jobs.CreateJob(c.Request.Context(), job); err != nil {
		s.logger.Error("creating job failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "creating job failed"})
		return
	}

	s.logger.Info("job created", zap.String("job_id", job.ID), zap.String("title", job.Title))

	c.JSON(http.StatusCreated, job)
}

// screenBatch screens all resumes in the multipart field "resumes" against
// the job. One success is enough for a 200; when every resume fails the
// response still itemizes the failures.
func (s *Server) screenBatch(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	files := form.File["resumes"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one resume is required"})
		return
	}

	resumes := make([]screening.Resume, 0, len(files))
	for _, fileHeader := range files {
		data, contentType, err := readUpload(fileHeader)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("reading %s failed", fileHeader.Filename)})
			return
		}
		resumes = append(resumes, screening.Resume{
			Filename:    fileHeader.Filename,
			Data:        data,
			ContentType: contentType,
		})
	}

	result, err := s.screener.ScreenBatch(c.Request.Context(), job, resumes)
	if errors.Is(err, screening.ErrNoResumesSucceeded) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    "no resumes were screened successfully",
			"failures": result.Failures,
		})
		return
	}
	if err != nil {
		s.logger.Error("screening batch failed", zap.String("job_id", job.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "screening failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) batchProgress(c *gin.Context) {
	jobID := c.Param("id")

	snap, err := s.progress.Snapshot(c.Request.Context(), jobID)
	if err != nil {
		s.logger.Error("reading progress failed", zap.String("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reading progress failed"})
		return
	}

	c.JSON(http.StatusOK, snap)
}

func (s *Server) jobResults(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}

	minScore, err := intQuery(c, "min_score", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_score must be an integer"})
		return
	}
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}

	reports, err := s.jobs.ListReports(c.Request.Context(), job.ID, minScore, limit)
	if err != nil {
		s.logger.Error("listing reports failed", zap.String("job_id", job.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing results failed"})
		return
	}
	if reports == nil {
		reports = []*store.CandidateReport{}
	}

	c.JSON(http.StatusOK, gin.H{"job_id": job.ID, "count": len(reports), "results": reports})
}

func (s *Server) jobStats(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}

	stats, err := s.jobs.Stats(c.Request.Context(), job.ID)
	if err != nil {
		s.logger.Error("computing stats failed", zap.String("job_id", job.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "computing stats failed"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// deleteJob removes the job, its reports and tracker record, then clears the
// uploaded documents. Blob cleanup is best effort.
func (s *Server) deleteJob(c *gin.Context) {
	jobID := c.Param("id")
	ctx := c.Request.Context()

	err := s.jobs.DeleteJobCascade(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		s.logger.Error("deleting job failed", zap.String("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deleting job failed"})
		return
	}

	if err := s.blobs.DeletePrefix(ctx, fmt.Sprintf("resumes/%s/", jobID)); err != nil {
		s.logger.Warn("clearing job resumes failed", zap.String("job_id", jobID), zap.Error(err))
	}

	s.logger.Info("job deleted", zap.String("job_id", jobID))

	c.JSON(http.StatusOK, gin.H{"deleted": jobID})
}

func (s *Server) loadJob(c *gin.Context) (*store.Job, bool) {
	jobID := c.Param("id")

	job, err := s.jobs.GetJob(c.Request.Context(), jobID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return nil, false
	}
	if err != nil {
		s.logger.Error("loading job failed", zap.String("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading job failed"})
		return nil, false
	}

	return job, true
}

func skillNamesField(c *gin.Context, field string) ([]string, error) {
	raw := c.PostForm(field)
	if raw == "" {
		return nil, nil
	}

	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("%s must be a JSON array of skill names", field)
	}
	return names, nil
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func readUpload(fileHeader *multipart.FileHeader) ([]byte, string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return data, contentType, nil
}
