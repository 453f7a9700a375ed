package core

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/core/assemble"
	"github.com/joseph-ayodele/policy-extractor/internal/core/confidence"
	"github.com/joseph-ayodele/policy-extractor/internal/core/fields"
	"github.com/joseph-ayodele/policy-extractor/internal/core/language"
	"github.com/joseph-ayodele/policy-extractor/internal/core/textextract"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
	"github.com/joseph-ayodele/policy-extractor/internal/metrics"
)

const (
	DefaultMaxDocumentBytes = 50 << 20
	maxFilenameRunes        = 255
)

// ExtractionResult is a PolicyRecord plus what the pipeline learned on the
// way, for callers that persist jobs or print diagnostics.
type ExtractionResult struct {
	Record   entity.PolicyRecord
	Text     entity.ExtractedText
	Language language.Tag
	Variant  language.Tag
	Fields   fields.Fields
	Duration time.Duration
	Warnings []string
}

// Processor runs acquire → detect → extract → score → assemble. It holds
// only read-only collaborators, so concurrent calls are safe.
type Processor struct {
	logger    *slog.Logger
	acquirer  *textextract.Acquirer
	detector  *language.Detector
	selector  *fields.Selector
	scorer    *confidence.Scorer
	assembler *assemble.Assembler
	metrics   *metrics.Recorder
	maxBytes  int
}

type ProcessorOption func(*Processor)

func WithMetrics(r *metrics.Recorder) ProcessorOption {
	return func(p *Processor) { p.metrics = r }
}

func WithMaxDocumentBytes(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

func NewProcessor(
	logger *slog.Logger,
	acquirer *textextract.Acquirer,
	detector *language.Detector,
	selector *fields.Selector,
	scorer *confidence.Scorer,
	assembler *assemble.Assembler,
	opts ...ProcessorOption,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:    logger,
		acquirer:  acquirer,
		detector:  detector,
		selector:  selector,
		scorer:    scorer,
		assembler: assembler,
		maxBytes:  DefaultMaxDocumentBytes,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ExtractPolicyFields is the single entry point of the pipeline. The only
// error it returns for document problems is InvalidInput; unreadable
// documents yield a default record with confidence 0.
func (p *Processor) ExtractPolicyFields(ctx context.Context, fileBytes []byte, filename, mimeType string) (entity.PolicyRecord, error) {
	res, err := p.Extract(ctx, fileBytes, filename, mimeType)
	if err != nil {
		return entity.PolicyRecord{}, err
	}
	return res.Record, nil
}

// Extract is ExtractPolicyFields with pipeline metadata.
func (p *Processor) Extract(ctx context.Context, fileBytes []byte, filename, mimeType string) (ExtractionResult, error) {
	start := time.Now()
	ctx, _ = common.EnsureRequestID(ctx)
	logger := common.LoggerFrom(ctx, p.logger)

	doc, err := p.validate(fileBytes, filename, mimeType)
	if err != nil {
		p.metrics.ObserveFailure("invalid_input")
		logger.Warn("rejected document", "filename", filename, "mime", mimeType, "error", err)
		return ExtractionResult{}, err
	}

	text := p.acquirer.Acquire(ctx, doc)
	res := ExtractionResult{Text: text, Language: language.Unknown, Variant: language.Unknown}
	res.Warnings = append(res.Warnings, text.Warnings...)

	if !text.Success {
		rec, err := p.assembler.Failed(doc.Content, doc.Filename, text)
		if err != nil {
			return ExtractionResult{}, err
		}
		res.Record = rec
		res.Fields = fields.Fields{}
		res.Warnings = append(res.Warnings, common.ErrUnreadableDocument.Error())
		res.Duration = time.Since(start)
		p.metrics.ObserveFailure("unreadable")
		logger.Warn("no usable text, returning default record",
			"filename", doc.Filename, "warnings", len(text.Warnings))
		return res, nil
	}

	tag := p.detector.Detect(text.Text)
	sel := p.selector.Extract(text.Text, tag)
	if tag == language.Unknown {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%s: ran both variants, kept %s", common.ErrUnsupportedLanguage, sel.Variant))
	}

	score := p.scorer.Score(sel.Fields)
	rec, err := p.assembler.Assemble(assemble.Input{
		Content:     doc.Content,
		Filename:    doc.Filename,
		Text:        text,
		Language:    tag,
		Selection:   sel,
		Confidence:  score,
		NeedsReview: p.scorer.NeedsReview(score),
	})
	if err != nil {
		return ExtractionResult{}, err
	}

	res.Record = rec
	res.Language = tag
	res.Variant = sel.Variant
	res.Fields = sel.Fields
	res.Duration = time.Since(start)
	p.metrics.ObserveExtraction(text.Method, tag.Code(), score)

	logger.Info("policy extracted",
		"filename", doc.Filename,
		"method", text.Method,
		"language", tag.Code(),
		"variant", sel.Variant.Code(),
		"fields", len(sel.Fields),
		"confidence", score,
		"needs_review", rec.NeedsReview,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// validate turns caller input into a RawDocument or an InvalidInput error.
func (p *Processor) validate(fileBytes []byte, filename, mimeType string) (entity.RawDocument, error) {
	v := common.NewValidator().
		Field("file_bytes", fileBytes, common.NonEmptyBytes, common.MaxBytes(p.maxBytes)).
		Field("filename", filename, common.MaxLength(maxFilenameRunes))
	if err := v.Err(); err != nil {
		return entity.RawDocument{}, err
	}

	mediaType := ""
	if strings.TrimSpace(mimeType) != "" {
		mt, _, err := mime.ParseMediaType(mimeType)
		if err != nil {
			return entity.RawDocument{}, common.InvalidInput(fmt.Sprintf("malformed mime type %q", mimeType))
		}
		mediaType = mt
	} else {
		mediaType = constants.MimeForExt(filepath.Ext(filename))
	}

	format := constants.MapMimeToFormat(mediaType)
	if format == "" {
		return entity.RawDocument{}, common.InvalidInput(fmt.Sprintf("unsupported document type %q", mimeType))
	}
	return entity.RawDocument{
		Content:  fileBytes,
		Filename: filename,
		MimeType: mediaType,
		Format:   format,
	}, nil
}
