package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/schedsnap/schedsnap-api/internal/dto"
	"github.com/schedsnap/schedsnap-api/internal/models"
	"github.com/schedsnap/schedsnap-api/internal/repository"
	appErrors "github.com/schedsnap/schedsnap-api/pkg/errors"
	"github.com/schedsnap/schedsnap-api/pkg/jobs"
)

type importJobStore interface {
	Create(ctx context.Context, job *models.ImportJob) error
	GetByID(ctx context.Context, id string) (*models.ImportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateImportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ImportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type scheduleExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*models.RawExtraction, error)
}

type previewWriter interface {
	Put(ctx context.Context, sessionID string, preview *models.PreviewResult) error
}

type fileSource interface {
	Read(path string) ([]byte, error)
	Delete(path string) error
}

const jobTypeScheduleImport = "schedule_import"

// ImportService owns import job lifecycle: accept, enqueue, expose status,
// and recover queued jobs after a restart.
type ImportService struct {
	repo   importJobStore
	queue  jobDispatcher
	logger *zap.Logger
}

// NewImportService constructs the import service.
func NewImportService(repo importJobStore, queue jobDispatcher, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{repo: repo, queue: queue, logger: logger}
}

// CreateJob persists one job per accepted upload and enqueues processing.
func (s *ImportService) CreateJob(ctx context.Context, sessionID string, files []models.ImportFile) (*dto.UploadResponse, error) {
	if sessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session id is required")
	}
	if len(files) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one file is required")
	}

	job := &models.ImportJob{
		SessionID: sessionID,
		Params:    models.ImportJobParams{SessionID: sessionID, Files: files},
		Status:    models.ImportStatusQueued,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create import job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: jobTypeScheduleImport}); err != nil {
		status := models.ImportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, job.ID, repository.UpdateImportJobParams{
			Status:       &status,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue import job")
	}
	return &dto.UploadResponse{JobID: job.ID}, nil
}

// GetStatus exposes job metadata to the owning session's polling client.
func (s *ImportService) GetStatus(ctx context.Context, id, sessionID string) (*dto.JobStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load import job")
	}
	if job.SessionID != sessionID {
		return nil, appErrors.ErrNotFound
	}
	resp := &dto.JobStatusResponse{ID: job.ID, Status: job.Status}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// RecoverPendingJobs replays queued jobs (e.g. after process restart).
func (s *ImportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued import jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: jobTypeScheduleImport}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending job", "job_id", job.ID, "error", err)
		}
	}
}

// ImportWorker bridges queue jobs to extraction, merge and preview storage.
type ImportWorker struct {
	repo       importJobStore
	extractor  scheduleExtractor
	previews   previewWriter
	files      fileSource
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewImportWorker constructs a worker.
func NewImportWorker(repo importJobStore, extractor scheduleExtractor, previews previewWriter, files fileSource, metrics *MetricsService, maxRetries int, logger *zap.Logger) *ImportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ImportWorker{
		repo:       repo,
		extractor:  extractor,
		previews:   previews,
		files:      files,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job: read each file, extract, merge, persist the
// preview for the session, then mark the row. Temp files are unlinked as
// soon as they are read, on every path.
func (w *ImportWorker) Handle(ctx context.Context, job jobs.Job) error {
	started := time.Now()
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		w.recordFailure(ctx, job, err)
		return err
	}

	processing := models.ImportStatusProcessing
	if err := w.repo.Update(ctx, job.ID, repository.UpdateImportJobParams{Status: &processing}); err != nil {
		w.recordFailure(ctx, job, err)
		return err
	}

	preview, err := w.process(ctx, record)
	if err != nil {
		w.recordFailure(ctx, job, err)
		w.observe(string(models.ImportStatusFailed), started)
		return err
	}

	// Persisting the preview is part of the job: the polling client has no
	// other path to the data, so a store failure must not mark the job
	// complete.
	if err := w.previews.Put(ctx, record.SessionID, preview); err != nil {
		w.recordFailure(ctx, job, err)
		w.observe(string(models.ImportStatusFailed), started)
		return err
	}

	completed := models.ImportStatusCompleted
	now := time.Now().UTC()
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateImportJobParams{
		Status:       &completed,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark job completed", "job_id", job.ID, "error", err)
		return err
	}
	w.observe(string(models.ImportStatusCompleted), started)
	return nil
}

func (w *ImportWorker) process(ctx context.Context, record *models.ImportJob) (*models.PreviewResult, error) {
	merger := NewScheduleMerger(w.logger)

	for _, file := range record.Params.Files {
		data, err := w.readAndUnlink(file.Path)
		if err != nil {
			merger.AddFailure(file.OriginalFilename, err)
			continue
		}

		raw, err := w.extractor.Extract(ctx, data, file.MimeType)
		if err != nil {
			merger.AddFailure(file.OriginalFilename, err)
			continue
		}
		merger.Add(file.OriginalFilename, raw)
	}

	return merger.Finalize()
}

// readAndUnlink reads the temp file and deletes it regardless of what
// happens downstream. A retried job therefore sees missing files as
// per-file failures rather than reprocessing stale uploads.
func (w *ImportWorker) readAndUnlink(path string) ([]byte, error) {
	data, readErr := w.files.Read(path)
	if err := w.files.Delete(path); err != nil {
		w.logger.Sugar().Warnw("failed to delete temp upload", "path", path, "error", err)
	}
	return data, readErr
}

func (w *ImportWorker) recordFailure(ctx context.Context, job jobs.Job, cause error) {
	msg := cause.Error()
	if job.Attempt >= w.maxRetries {
		failed := models.ImportStatusFailed
		now := time.Now().UTC()
		if err := w.repo.Update(ctx, job.ID, repository.UpdateImportJobParams{
			Status:       &failed,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); err != nil {
			w.logger.Sugar().Warnw("failed to mark job failed", "job_id", job.ID, "error", err)
		}
		return
	}

	queued := models.ImportStatusQueued
	if err := w.repo.Update(ctx, job.ID, repository.UpdateImportJobParams{
		Status:       &queued,
		ErrorMessage: &msg,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark job queued", "job_id", job.ID, "error", err)
	}
}

func (w *ImportWorker) observe(status string, started time.Time) {
	if w.metrics == nil {
		return
	}
	w.metrics.ObserveImportJob(status, time.Since(started))
}
