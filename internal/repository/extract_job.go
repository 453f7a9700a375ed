package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// ExtractJobRepository records one row per import attempt:
// QUEUED -> RUNNING -> TEXT_OK -> DONE, or FAILED from any step.
type ExtractJobRepository interface {
	Start(ctx context.Context, documentID, sourcePath, format string) (*entity.ExtractJob, error)
	MarkRunning(ctx context.Context, jobID uuid.UUID) error
	FinishText(ctx context.Context, jobID uuid.UUID, method, language string) error
	FinishSuccess(ctx context.Context, jobID uuid.UUID, confidence float64, needsReview bool) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error
	Get(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error)
}

type extractJobRepo struct {
	db    *DB
	clock common.Clock
	log   *slog.Logger
}

func NewExtractJobRepository(db *DB, clock common.Clock, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	if clock == nil {
		clock = common.SystemClock{}
	}
	return &extractJobRepo{db: db, clock: clock, log: log}
}

func (r *extractJobRepo) Start(ctx context.Context, documentID, sourcePath, format string) (*entity.ExtractJob, error) {
	if err := common.NewValidator().
		Field("format", format, common.OneOf(constants.FileTypes...)).
		Err(); err != nil {
		return nil, err
	}
	job := &entity.ExtractJob{
		ID:         uuid.New(),
		DocumentID: documentID,
		SourcePath: sourcePath,
		Format:     format,
		Status:     string(constants.JobStatusQueued),
		StartedAt:  r.clock.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO extract_jobs (id, document_id, source_path, format, status, started_at, needs_review)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		job.ID.String(), job.DocumentID, job.SourcePath, job.Format, job.Status, job.StartedAt, false,
	)
	if err != nil {
		r.log.Error("extract_job start failed", "document_id", documentID, "err", err)
		return nil, fmt.Errorf("%w: start job: %v", common.ErrDatabase, err)
	}
	r.log.Info("extract_job started", "job_id", job.ID, "document_id", documentID, "format", format)
	return job, nil
}

func (r *extractJobRepo) MarkRunning(ctx context.Context, jobID uuid.UUID) error {
	return r.update(ctx, jobID, constants.JobStatusRunning,
		`UPDATE extract_jobs SET status = ? WHERE id = ?`,
		string(constants.JobStatusRunning), jobID.String())
}

func (r *extractJobRepo) FinishText(ctx context.Context, jobID uuid.UUID, method, language string) error {
	return r.update(ctx, jobID, constants.JobStatusTextOK,
		`UPDATE extract_jobs SET status = ?, method = ?, language = ? WHERE id = ?`,
		string(constants.JobStatusTextOK), method, language, jobID.String())
}

func (r *extractJobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, confidence float64, needsReview bool) error {
	return r.update(ctx, jobID, constants.JobStatusDone,
		`UPDATE extract_jobs SET status = ?, extraction_confidence = ?, needs_review = ?, finished_at = ? WHERE id = ?`,
		string(constants.JobStatusDone), confidence, needsReview, r.clock.Now().UTC(), jobID.String())
}

func (r *extractJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error {
	err := r.update(ctx, jobID, constants.JobStatusFailed,
		`UPDATE extract_jobs SET status = ?, error_message = ?, needs_review = ?, finished_at = ? WHERE id = ?`,
		string(constants.JobStatusFailed), message, true, r.clock.Now().UTC(), jobID.String())
	if err == nil {
		r.log.Warn("extract_job finished (FAILED)", "job_id", jobID, "error", message)
	}
	return err
}

func (r *extractJobRepo) update(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		r.log.Error("extract_job update failed", "job_id", jobID, "status", status, "err", err)
		return fmt.Errorf("%w: update job: %v", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NotFound("extract job " + jobID.String())
	}
	r.log.Debug("extract_job updated", "job_id", jobID, "status", status)
	return nil
}

func (r *extractJobRepo) Get(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error) {
	var (
		job        entity.ExtractJob
		id         string
		finishedAt sql.NullTime
		method     sql.NullString
		language   sql.NullString
		confidence sql.NullFloat64
		errMsg     sql.NullString
	)
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, document_id, source_path, format, status, started_at, finished_at,
			method, language, extraction_confidence, needs_review, error_message
		FROM extract_jobs WHERE id = ?`), jobID.String()).
		Scan(&id, &job.DocumentID, &job.SourcePath, &job.Format, &job.Status, &job.StartedAt,
			&finishedAt, &method, &language, &confidence, &job.NeedsReview, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("extract job " + jobID.String())
	}
	if err != nil {
		r.log.Error("failed to get extract_job", "job_id", jobID, "err", err)
		return nil, fmt.Errorf("%w: get job: %v", common.ErrDatabase, err)
	}

	if job.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: bad job id %q", common.ErrDatabase, id)
	}
	job.StartedAt = job.StartedAt.UTC()
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		job.FinishedAt = &t
	}
	if method.Valid {
		job.Method = &method.String
	}
	if language.Valid {
		job.Language = &language.String
	}
	if confidence.Valid {
		job.ExtractionConfidence = &confidence.Float64
	}
	if errMsg.Valid {
		job.ErrorMessage = &errMsg.String
	}
	return &job, nil
}
