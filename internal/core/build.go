package core

import (
	"log/slog"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/core/assemble"
	"github.com/joseph-ayodele/policy-extractor/internal/core/confidence"
	"github.com/joseph-ayodele/policy-extractor/internal/core/fields"
	"github.com/joseph-ayodele/policy-extractor/internal/core/language"
	"github.com/joseph-ayodele/policy-extractor/internal/core/ocr"
	"github.com/joseph-ayodele/policy-extractor/internal/core/textextract"
	"github.com/joseph-ayodele/policy-extractor/internal/metrics"
)

// Deps are the collaborators Build cannot derive from configuration.
type Deps struct {
	Clock   common.Clock      // nil means the system clock
	Metrics *metrics.Recorder // optional
	Runner  ocr.Runner        // nil means exec
}

// Build wires the full pipeline from configuration.
func Build(cfg *common.Config, logger *slog.Logger, deps Deps) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = common.DefaultConfig()
	}

	var ocrOpts []ocr.Option
	if deps.Runner != nil {
		ocrOpts = append(ocrOpts, ocr.WithRunner(deps.Runner))
	}
	engine := ocr.NewEngine(ocr.Config{
		Pdftotext:          cfg.OCR.Pdftotext,
		Pdftoppm:           cfg.OCR.Pdftoppm,
		Tesseract:          cfg.OCR.Tesseract,
		TesseractLang:      cfg.OCR.Lang,
		DPI:                cfg.OCR.DPI,
		MaxPages:           cfg.OCR.MaxPages,
		TessdataDir:        cfg.OCR.TessdataDir,
		BreakerMaxFailures: cfg.OCR.BreakerMaxFailures,
		BreakerTimeout:     cfg.OCR.BreakerTimeout,
	}, logger, ocrOpts...)

	acquirer := textextract.NewAcquirer(
		textextract.Config{MinTextLength: cfg.Pipeline.MinTextLength},
		logger,
		textextract.NewDirectStrategy(logger),
		textextract.NewLayoutStrategy(engine, logger),
		textextract.NewOCRStrategy(engine, logger),
	)
	if deps.Metrics != nil {
		acquirer = acquirer.WithObserver(deps.Metrics)
	}

	detector := language.NewDetector(language.Config{
		HebrewThreshold: cfg.Language.HebrewThreshold,
		MinLetters:      cfg.Language.MinLetters,
	}, logger)

	scorer := confidence.NewScorer(confidence.Config{
		RequiredFields:  cfg.Confidence.RequiredFields,
		FuzzyWeight:     cfg.Confidence.FuzzyWeight,
		ReviewThreshold: cfg.Confidence.ReviewThreshold,
	})

	selector, err := fields.NewDefaultSelector(scorer, logger)
	if err != nil {
		return nil, common.NewAppError(common.CodeConfig, "load field rules", err)
	}

	validator, err := assemble.NewSchemaValidator()
	if err != nil {
		return nil, common.NewAppError(common.CodeInternal, "compile record schema", err)
	}
	asmOpts := []assemble.Option{assemble.WithValidator(validator)}
	if deps.Clock != nil {
		asmOpts = append(asmOpts, assemble.WithClock(deps.Clock))
	}
	assembler := assemble.NewAssembler(logger, asmOpts...)

	return NewProcessor(logger, acquirer, detector, selector, scorer, assembler,
		WithMetrics(deps.Metrics),
		WithMaxDocumentBytes(cfg.Pipeline.MaxDocumentBytes),
	), nil
}
