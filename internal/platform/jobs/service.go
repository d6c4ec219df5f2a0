package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"hrdocs/internal/domain/documents"
	"hrdocs/internal/platform/config"
)

const (
	JobExpiryCheck     = "hr_document_expiry_check"
	JobImportProcess   = "hr_document_import"
	JobRequirementSync = "hr_document_requirement_sync"
)

type Service struct {
	DB        *pgxpool.Pool
	Cfg       config.Config
	Documents *documents.Service
	queue     chan job
}

type job struct {
	Type      string
	Initiator string
	Run       func(context.Context) (any, error)
}

// Run describes one row of job_runs.
type Run struct {
	ID          string          `json:"id"`
	JobType     string          `json:"jobType"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

func New(db *pgxpool.Pool, cfg config.Config, docs *documents.Service) *Service {
	return &Service{
		DB:        db,
		Cfg:       cfg,
		Documents: docs,
		queue:     make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.ExpiryCheckInterval > 0 {
		go s.scheduleExpiryChecks(ctx, s.Cfg.ExpiryCheckInterval)
	}
}

// Enqueue reports false when the queue is full and the job was dropped.
func (s *Service) Enqueue(jobType, initiator string, run func(context.Context) (any, error)) bool {
	select {
	case s.queue <- job{Type: jobType, Initiator: initiator, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType, "initiator", initiator)
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, initiator string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Initiator: initiator, Run: run})
}

// EnqueueImport processes an import job in the background.
func (s *Service) EnqueueImport(importJobID, initiator string, dryRun bool) bool {
	return s.Enqueue(JobImportProcess, initiator, func(ctx context.Context) (any, error) {
		result, err := s.Documents.ProcessImportJob(ctx, importJobID, initiator, dryRun)
		return map[string]any{
			"importJobId":  importJobID,
			"dryRun":       dryRun,
			"status":       result.Status,
			"successCount": result.SuccessCount,
			"failureCount": result.FailureCount,
		}, err
	})
}

// RunExpiryCheck runs the sweep synchronously and records it in job_runs.
func (s *Service) RunExpiryCheck(ctx context.Context, referenceDate time.Time, initiator string) (documents.ExpiryResult, error) {
	var result documents.ExpiryResult
	_, err := s.RunNow(ctx, JobExpiryCheck, initiator, func(ctx context.Context) (any, error) {
		var err error
		result, err = s.Documents.RunExpiryCheck(ctx, referenceDate, initiator)
		return result, err
	})
	return result, err
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "initiator", j.Initiator, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, j.Type, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
		details = map[string]any{"error": err.Error(), "result": details}
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(context.WithoutCancel(ctx), `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

func (s *Service) scheduleExpiryChecks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(JobExpiryCheck, "", func(ctx context.Context) (any, error) {
				return s.Documents.RunExpiryCheck(ctx, time.Now().UTC(), "")
			})
		}
	}
}

// ListRuns returns the most recent job runs, optionally filtered by type.
func (s *Service) ListRuns(ctx context.Context, jobType string, limit int) ([]Run, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.DB.Query(ctx, `
    SELECT id, job_type, status, details_json, started_at, completed_at
    FROM job_runs
    WHERE ($1 = '' OR job_type = $1)
    ORDER BY started_at DESC
    LIMIT $2
  `, jobType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Run{}
	for rows.Next() {
		var r Run
		var details []byte
		if err := rows.Scan(&r.ID, &r.JobType, &r.Status, &details, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			r.Details = details
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
