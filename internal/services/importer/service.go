package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/core"
	"github.com/joseph-ayodele/policy-extractor/internal/core/assemble"
	"github.com/joseph-ayodele/policy-extractor/internal/ingest"
	"github.com/joseph-ayodele/policy-extractor/internal/repository"
)

// Extractor is the slice of core.Processor the importer needs.
type Extractor interface {
	Extract(ctx context.Context, fileBytes []byte, filename, mimeType string) (core.ExtractionResult, error)
}

// Result is the outcome of importing one file.
type Result struct {
	Path        string
	DocumentID  string
	JobID       string
	Created     bool
	Unreadable  bool
	Confidence  float64
	NeedsReview bool
	Err         string
}

// Stats summarizes a directory import.
type Stats struct {
	Scanned    uint32
	Matched    uint32
	Succeeded  uint32
	Created    uint32
	Updated    uint32
	Unreadable uint32
	Failed     uint32
}

// Service loads files, runs extraction and persists records and jobs.
type Service struct {
	loader    ingest.Loader
	extractor Extractor
	policies  repository.PolicyRepository
	jobs      repository.ExtractJobRepository
	workers   int
	limiter   *rate.Limiter
	logger    *slog.Logger
}

type Option func(*Service)

// WithWorkers bounds concurrent extractions in ImportDirectory.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithRateLimit caps submissions per second; 0 means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(s *Service) {
		if perSecond > 0 {
			burst := int(perSecond)
			if burst < 1 {
				burst = 1
			}
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

func NewService(loader ingest.Loader, ex Extractor, policies repository.PolicyRepository, jobs repository.ExtractJobRepository, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		loader:    loader,
		extractor: ex,
		policies:  policies,
		jobs:      jobs,
		workers:   4,
		logger:    logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ImportFile loads path, extracts a PolicyRecord and stores it. Unreadable
// documents are stored with their default record and a FAILED job.
func (s *Service) ImportFile(ctx context.Context, path string) (Result, error) {
	out := Result{Path: path}
	path = strings.TrimSpace(path)
	if path == "" {
		return out, common.InvalidInput("path is required")
	}

	doc, err := s.loader.LoadFile(ctx, path)
	if err != nil {
		s.logger.Warn("failed to load file", "path", path, "error", err)
		return out, err
	}
	out.Path = doc.Path

	documentID := assemble.DocumentID(doc.Content)
	job, err := s.jobs.Start(ctx, documentID, doc.Path, constants.MapMimeToFormat(doc.MimeType))
	if err != nil {
		return out, err
	}
	out.JobID = job.ID.String()
	if err := s.jobs.MarkRunning(ctx, job.ID); err != nil {
		s.fail(ctx, job.ID, err.Error())
		return out, err
	}

	res, err := s.extractor.Extract(ctx, doc.Content, doc.Filename, doc.MimeType)
	if err == nil {
		// a cancelled call yields a default record that must not be stored
		err = ctx.Err()
	}
	if err != nil {
		s.fail(ctx, job.ID, err.Error())
		return out, err
	}

	out.DocumentID = documentID
	out.Confidence = res.Record.ExtractionConfidence
	out.NeedsReview = res.Record.NeedsReview

	if res.Text.Success {
		if err := s.jobs.FinishText(ctx, job.ID, res.Text.Method, res.Language.Code()); err != nil {
			s.fail(ctx, job.ID, err.Error())
			return out, err
		}
	}

	created, err := s.policies.Upsert(ctx, res.Record, doc.Path, doc.HashHex)
	if err != nil {
		s.fail(ctx, job.ID, err.Error())
		return out, err
	}
	out.Created = created

	if !res.Text.Success {
		out.Unreadable = true
		s.fail(ctx, job.ID, common.ErrUnreadableDocument.Error())
		s.logger.Warn("imported unreadable document with defaults", "path", doc.Path, "document_id", documentID)
		return out, nil
	}

	if err := s.jobs.FinishSuccess(ctx, job.ID, out.Confidence, out.NeedsReview); err != nil {
		s.fail(ctx, job.ID, err.Error())
		return out, err
	}
	s.logger.Info("policy imported",
		"path", doc.Path,
		"document_id", documentID,
		"created", created,
		"confidence", out.Confidence,
		"needs_review", out.NeedsReview,
	)
	return out, nil
}

// fail records a FAILED job. It runs detached from ctx so cancellation is
// still recorded.
func (s *Service) fail(ctx context.Context, jobID uuid.UUID, message string) {
	if err := s.jobs.FinishFailure(context.WithoutCancel(ctx), jobID, message); err != nil {
		s.logger.Error("failed to record job failure", "job_id", jobID, "error", err)
	}
}

// ImportDirectory imports every supported file under root with at most
// `workers` extractions in flight. Per-file failures are reported in the
// results; only a walk error or cancellation fails the call.
func (s *Service) ImportDirectory(ctx context.Context, root string, skipHidden bool) ([]Result, Stats, error) {
	paths, dirStats, err := s.loader.WalkDirectory(ctx, root, skipHidden)
	stats := Stats{Scanned: dirStats.Scanned, Matched: dirStats.Matched, Failed: dirStats.Failed}
	if err != nil {
		s.logger.Error("failed to walk directory", "root", root, "error", err)
		return nil, stats, err
	}

	s.logger.Info("starting directory import", "root", root, "files", len(paths), "workers", s.workers)
	results := make([]Result, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, p := range paths {
		if s.limiter != nil {
			if err := s.limiter.Wait(gctx); err != nil {
				break
			}
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r, err := s.ImportFile(gctx, p)
			if err != nil {
				r.Err = err.Error()
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					results[i] = r
					return err
				}
			}
			results[i] = r
			return nil
		})
	}
	waitErr := g.Wait()
	if waitErr == nil {
		waitErr = ctx.Err()
	}

	for _, r := range results {
		switch {
		case r.Path == "":
			// never submitted
		case r.Err != "":
			stats.Failed++
		default:
			stats.Succeeded++
			if r.Created {
				stats.Created++
			} else {
				stats.Updated++
			}
			if r.Unreadable {
				stats.Unreadable++
			}
		}
	}

	s.logger.Info("directory import complete",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"created", stats.Created,
		"updated", stats.Updated,
		"unreadable", stats.Unreadable,
		"failed", stats.Failed,
	)
	if waitErr != nil {
		return results, stats, fmt.Errorf("import %s: %w", root, waitErr)
	}
	return results, stats, nil
}
