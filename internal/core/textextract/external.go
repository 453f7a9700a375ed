package textextract

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/core/ocr"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// LayoutReader is satisfied by *ocr.Engine.
type LayoutReader interface {
	LayoutText(ctx context.Context, path string) (ocr.Result, error)
}

// PDFRecognizer is satisfied by *ocr.Engine.
type PDFRecognizer interface {
	RecognizePDF(ctx context.Context, path string) (ocr.Result, error)
}

// LayoutStrategy uses poppler's layout mode, which keeps multi-column
// pages in reading order.
type LayoutStrategy struct {
	reader LayoutReader
	logger *slog.Logger
}

func NewLayoutStrategy(reader LayoutReader, logger *slog.Logger) *LayoutStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &LayoutStrategy{reader: reader, logger: logger}
}

func (*LayoutStrategy) Name() string { return constants.MethodLayout }

func (*LayoutStrategy) Supports(format string) bool { return format == constants.PDF }

func (l *LayoutStrategy) TryExtract(ctx context.Context, doc entity.RawDocument) (Attempt, error) {
	var att Attempt
	err := withTempPDF(doc.Content, l.logger, func(path string) error {
		res, err := l.reader.LayoutText(ctx, path)
		att = Attempt{Text: res.Text, Pages: res.Pages, Warnings: res.Warnings}
		return err
	})
	return att, err
}

// OCRStrategy rasterizes pages and recognizes them; the last resort for
// scanned documents.
type OCRStrategy struct {
	recognizer PDFRecognizer
	logger     *slog.Logger
}

func NewOCRStrategy(recognizer PDFRecognizer, logger *slog.Logger) *OCRStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRStrategy{recognizer: recognizer, logger: logger}
}

func (*OCRStrategy) Name() string { return constants.MethodOCR }

func (*OCRStrategy) Supports(format string) bool { return format == constants.PDF }

func (o *OCRStrategy) TryExtract(ctx context.Context, doc entity.RawDocument) (Attempt, error) {
	var att Attempt
	err := withTempPDF(doc.Content, o.logger, func(path string) error {
		res, err := o.recognizer.RecognizePDF(ctx, path)
		att = Attempt{Text: res.Text, Pages: res.Pages, Warnings: res.Warnings}
		return err
	})
	return att, err
}

// withTempPDF materializes content for the external tools and removes it on
// every exit path.
func withTempPDF(content []byte, logger *slog.Logger, fn func(path string) error) error {
	f, err := os.CreateTemp("", "pe-doc-*.pdf")
	if err != nil {
		return fmt.Errorf("create temp pdf: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove temp pdf", "path", path, "error", err)
		}
	}()

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp pdf: %w", err)
	}
	return fn(path)
}
