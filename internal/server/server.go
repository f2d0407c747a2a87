// Package server exposes the screening service over HTTP.
package server

import (
	"context"
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/docparse"
	"github.com/talentsift/talentsift/internal/screening"
	"github.com/talentsift/talentsift/internal/store"
	"github.com/talentsift/talentsift/internal/tracker"
)

// JobStore is the persistence surface the handlers need.
type JobStore interface {
	CreateJob(ctx context.Context, job *store.Job) error
	GetJob(ctx context.Context, id string) (*store.Job, error)
	ListReports(ctx context.Context, jobID string, minScore, limit int) ([]*store.CandidateReport, error)
	Stats(ctx context.Context, jobID string) (*store.JobStats, error)
	DeleteJobCascade(ctx context.Context, jobID string) error
}

// Screener runs resume batches through the screening pipeline.
type Screener interface {
	ScreenBatch(ctx context.Context, job *store.Job, resumes []screening.Resume) (*screening.BatchResult, error)
}

// Progress reads and clears batch progress.
type Progress interface {
	Snapshot(ctx context.Context, jobID string) (tracker.Snapshot, error)
	Delete(ctx context.Context, jobID string) error
}

// BlobStore uploads job description documents and clears job prefixes.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Config tunes the HTTP listener.
type Config struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
}

// Server wires the handlers to their collaborators.
type Server struct {
	jobs     JobStore
	screener Screener
	progress Progress
	blobs    BlobStore
	parser   docparse.Parser
	logger   *zap.Logger
	cfg      Config
}

// New creates a Server.
func New(jobs JobStore, screener Screener, progress Progress, blobs BlobStore, parser docparse.Parser, logger *zap.Logger, cfg Config) *Server {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	return &Server{
		jobs:     jobs,
		screener: screener,
		progress: progress,
		blobs:    blobs,
		parser:   parser,
		logger:   logger,
		cfg:      cfg,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	if !s.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	api := r.Group("/api/v1")
	{
		api.GET("/health", s.health)

		api.POST("/jobs", s.createJob)
		api.POST("/jobs/:id/screenings", s.screenBatch)
		api.GET("/jobs/:id/progress", s.batchProgress)
		api.GET("/jobs/:id/results", s.jobResults)
		api.GET("/jobs/:id/stats", s.jobStats)
		api.DELETE("/jobs/:id", s.deleteJob)
	}

	return r
}

// Run starts the listener and blocks until it fails.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("http server starting", zap.String("addr", addr))
	return s.Router().Run(addr)
}
