package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"costume-portal/internal/core/domain/models"
	"costume-portal/internal/core/domain/types"
	"costume-portal/internal/core/port"
	"costume-portal/pkg/logger"
)

// ExportConfig bounds export behavior. Counts at or below AsyncThreshold are
// generated inline; larger sets become background jobs; anything above
// MaxRecords is rejected outright.
type ExportConfig struct {
	AsyncThreshold int
	MaxRecords     int
	ArtifactDir    string
	ArtifactTTL    time.Duration
	JobTimeout     time.Duration
}

// Service serves the communication audit query surface: filtered search,
// windowed summaries and sync/async export.
type Service struct {
	log   logger.Logger
	store port.AuditStore
	jobs  port.JobStore
	cfg   ExportConfig

	queue chan models.ExportJob
	wg    sync.WaitGroup
}

func NewService(store port.AuditStore, jobs port.JobStore, cfg ExportConfig) *Service {
	if cfg.AsyncThreshold <= 0 {
		cfg.AsyncThreshold = 10000
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 250000
	}
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = "./exports"
	}
	if cfg.ArtifactTTL <= 0 {
		cfg.ArtifactTTL = 72 * time.Hour
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	return &Service{
		log:   logger.InitLogger("audit_service", logger.LevelDebug),
		store: store,
		jobs:  jobs,
		cfg:   cfg,
		queue: make(chan models.ExportJob, 64),
	}
}

// Search returns one page of matching records plus totals for the whole
// filtered set, newest first.
func (svc *Service) Search(ctx context.Context, criteria models.SearchCriteria) (models.SearchResult, error) {
	if criteria.Page < 1 {
		criteria.Page = 1
	}
	if criteria.PageSize < 1 {
		criteria.PageSize = 20
	}
	if criteria.PageSize > 200 {
		criteria.PageSize = 200
	}
	return svc.store.Search(ctx, criteria)
}

// Summarize aggregates by status and channel inside the requested window.
func (svc *Service) Summarize(ctx context.Context, orgID string, from, to time.Time) (models.AuditSummary, error) {
	return svc.store.Summarize(ctx, orgID, from, to)
}

// Export produces an artifact inline for small result sets and a pollable
// job for large ones.
func (svc *Service) Export(ctx context.Context, criteria models.SearchCriteria, format models.ExportFormat, opts models.ExportOptions) (models.ExportResult, error) {
	switch format {
	case models.FormatCSV, models.FormatXLSX, models.FormatPDF:
	default:
		return models.ExportResult{}, models.ErrorValidationFailed
	}

	// Export walks the full filtered set; pagination does not apply.
	criteria.Page = 0
	criteria.PageSize = 0

	count, err := svc.store.Count(ctx, criteria)
	if err != nil {
		return models.ExportResult{}, err
	}

	if count > svc.cfg.MaxRecords {
		svc.log.Info(ctx, types.ActionExportRejected, "export exceeds absolute cap, narrow the criteria",
			"estimated_records", count,
			"max_records", svc.cfg.MaxRecords,
		)
		return models.ExportResult{}, models.ErrorExportTooLarge
	}

	if count <= svc.cfg.AsyncThreshold {
		svc.log.Debug(ctx, types.ActionExportRequested, "generating export inline",
			"estimated_records", count,
			"format", format,
		)
		artifact, err := svc.generate(ctx, criteria, format, opts)
		if err != nil {
			return models.ExportResult{}, err
		}
		return models.ExportResult{Artifact: artifact}, nil
	}

	job := models.ExportJob{
		ID:        uuid.NewString(),
		Criteria:  criteria,
		Format:    format,
		Options:   opts,
		Status:    models.JobPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := svc.jobs.Create(ctx, job); err != nil {
		return models.ExportResult{}, err
	}

	svc.queue <- job

	svc.log.Info(ctx, types.ActionExportRequested, "export queued as background job",
		"job_id", job.ID,
		"estimated_records", count,
		"format", format,
	)

	return models.ExportResult{JobID: job.ID}, nil
}

// JobStatus is a cheap O(1) lookup against the job store.
func (svc *Service) JobStatus(ctx context.Context, jobID string) (models.ExportJob, error) {
	job, err := svc.jobs.Get(ctx, jobID)
	if err != nil {
		return models.ExportJob{}, err
	}
	svc.log.Debug(ctx, types.ActionJobStatusQueried, "job status queried",
		"job_id", jobID,
		"status", job.Status,
	)
	return job, nil
}

// StartWorkers launches the background export pool, isolated from the
// request path.
func (svc *Service) StartWorkers(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		svc.wg.Add(1)
		go func() {
			defer svc.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-svc.queue:
					if !ok {
						return
					}
					svc.run(ctx, job)
				}
			}
		}()
	}
}

// Wait blocks until all export workers have stopped.
func (svc *Service) Wait() {
	svc.wg.Wait()
}

func (svc *Service) run(ctx context.Context, job models.ExportJob) {
	job.Status = models.JobProcessing
	job.UpdatedAt = time.Now().UTC()
	if err := svc.jobs.Update(ctx, job); err != nil {
		svc.log.Error(ctx, types.ActionExportFailed, "failed to mark job processing", err, "job_id", job.ID)
	}

	svc.log.Info(ctx, types.ActionExportStarted, "export job started",
		"job_id", job.ID,
		"format", job.Format,
	)

	genCtx, cancel := context.WithTimeout(ctx, svc.cfg.JobTimeout)
	artifact, err := svc.generate(genCtx, job.Criteria, job.Format, job.Options)
	cancel()

	job.UpdatedAt = time.Now().UTC()
	if err != nil {
		job.Status = models.JobFailed
		job.Error = err.Error()
		svc.log.Error(ctx, types.ActionExportFailed, "export job failed", err, "job_id", job.ID)
	} else {
		job.Status = models.JobCompleted
		job.Artifact = artifact
		svc.log.Info(ctx, types.ActionExportCompleted, "export job completed",
			"job_id", job.ID,
			"path", artifact.Path,
			"records", artifact.RecordCount,
		)
	}

	if err := svc.jobs.Update(ctx, job); err != nil {
		svc.log.Error(ctx, types.ActionExportFailed, "failed to persist job result", err, "job_id", job.ID)
	}
}
