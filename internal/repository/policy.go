package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// PolicyFilter narrows List. Zero values match everything.
type PolicyFilter struct {
	Insurer         string
	MinConfidence   float64
	OnlyNeedsReview bool
	Limit           int
}

type PolicyRepository interface {
	// Upsert stores rec keyed by its document ID and reports whether the row is new.
	Upsert(ctx context.Context, rec entity.PolicyRecord, sourcePath, contentHash string) (bool, error)
	Get(ctx context.Context, documentID string) (*entity.StoredPolicy, error)
	List(ctx context.Context, filter PolicyFilter) ([]*entity.StoredPolicy, error)
}

type policyRepo struct {
	db     *DB
	clock  common.Clock
	logger *slog.Logger
}

func NewPolicyRepository(db *DB, clock common.Clock, logger *slog.Logger) PolicyRepository {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = common.SystemClock{}
	}
	return &policyRepo{db: db, clock: clock, logger: logger}
}

func (r *policyRepo) Upsert(ctx context.Context, rec entity.PolicyRecord, sourcePath, contentHash string) (bool, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encode policy record: %w", err)
	}
	now := r.clock.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: begin: %v", common.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, r.db.Rebind(`SELECT 1 FROM policies WHERE document_id = ?`), rec.DocumentID).Scan(&one)
	created := errors.Is(err, sql.ErrNoRows)
	if err != nil && !created {
		r.logger.Error("policy lookup failed", "document_id", rec.DocumentID, "error", err)
		return false, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}

	_, err = tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO policies (document_id, record, insurer, policy_number, policy_language,
			extraction_confidence, needs_review, source_path, content_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (document_id) DO UPDATE SET
			record = excluded.record,
			insurer = excluded.insurer,
			policy_number = excluded.policy_number,
			policy_language = excluded.policy_language,
			extraction_confidence = excluded.extraction_confidence,
			needs_review = excluded.needs_review,
			source_path = excluded.source_path,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at`),
		rec.DocumentID, string(payload), rec.Insurer, rec.PolicyNumber, rec.PolicyLanguage,
		rec.ExtractionConfidence, rec.NeedsReview, sourcePath, contentHash, now, now,
	)
	if err != nil {
		r.logger.Error("policy upsert failed", "document_id", rec.DocumentID, "error", err)
		return false, fmt.Errorf("%w: upsert policy: %v", common.ErrDatabase, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}

	r.logger.Debug("policy stored", "document_id", rec.DocumentID, "created", created)
	return created, nil
}

const policyColumns = `record, source_path, content_hash, created_at, updated_at`

func (r *policyRepo) Get(ctx context.Context, documentID string) (*entity.StoredPolicy, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT `+policyColumns+` FROM policies WHERE document_id = ?`), documentID)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("policy " + documentID)
	}
	if err != nil {
		r.logger.Error("failed to get policy", "document_id", documentID, "error", err)
		return nil, err
	}
	return p, nil
}

func (r *policyRepo) List(ctx context.Context, filter PolicyFilter) ([]*entity.StoredPolicy, error) {
	var (
		where []string
		args  []any
	)
	if filter.Insurer != "" {
		where = append(where, "UPPER(insurer) = ?")
		args = append(args, strings.ToUpper(filter.Insurer))
	}
	if filter.MinConfidence > 0 {
		where = append(where, "extraction_confidence >= ?")
		args = append(args, filter.MinConfidence)
	}
	if filter.OnlyNeedsReview {
		where = append(where, "needs_review = ?")
		args = append(args, true)
	}

	q := `SELECT ` + policyColumns + ` FROM policies`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY insurer, policy_number, document_id`
	if filter.Limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		r.logger.Error("failed to list policies", "error", err)
		return nil, fmt.Errorf("%w: list policies: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.StoredPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPolicy(s scanner) (*entity.StoredPolicy, error) {
	var (
		payload   string
		p         entity.StoredPolicy
		createdAt time.Time
		updatedAt time.Time
	)
	if err := s.Scan(&payload, &p.SourcePath, &p.ContentHash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan policy: %v", common.ErrDatabase, err)
	}
	if err := json.Unmarshal([]byte(payload), &p.Record); err != nil {
		return nil, fmt.Errorf("decode policy record: %w", err)
	}
	p.CreatedAt = createdAt.UTC()
	p.UpdatedAt = updatedAt.UTC()
	return &p, nil
}
