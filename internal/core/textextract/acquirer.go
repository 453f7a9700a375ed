package textextract

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/core/ocr"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// DefaultMinTextLength is the usable-text threshold in runes, inclusive.
const DefaultMinTextLength = 20

// Attempt is what a single strategy produced before the usability check.
type Attempt struct {
	Text     string
	Pages    int
	Warnings []string
}

// Strategy is one way of turning document bytes into text. Each call is a
// single bounded unit of work; cancellation of ctx must abort it.
type Strategy interface {
	Name() string
	Supports(format string) bool
	TryExtract(ctx context.Context, doc entity.RawDocument) (Attempt, error)
}

// Observer receives per-strategy timings. metrics.Recorder implements it.
type Observer interface {
	ObserveStrategy(strategy, outcome string, d time.Duration)
}

type Config struct {
	MinTextLength int
}

// Acquirer tries strategies in order and keeps the first usable text.
type Acquirer struct {
	strategies []Strategy
	minLen     int
	logger     *slog.Logger
	observer   Observer
}

func NewAcquirer(cfg Config, logger *slog.Logger, strategies ...Strategy) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = DefaultMinTextLength
	}
	return &Acquirer{strategies: strategies, minLen: cfg.MinTextLength, logger: logger}
}

// WithObserver attaches a timing observer and returns the acquirer.
func (a *Acquirer) WithObserver(o Observer) *Acquirer {
	a.observer = o
	return a
}

// Usable normalizes text and reports whether it meets the minimum length.
func Usable(text string, minLen int) (string, bool) {
	normalized := ocr.Normalize(text)
	return normalized, normalized != "" && utf8.RuneCountInString(normalized) >= minLen
}

// Acquire never fails: when no strategy yields usable text the result has
// Success=false, Method "none" and empty Text.
func (a *Acquirer) Acquire(ctx context.Context, doc entity.RawDocument) entity.ExtractedText {
	logger := common.LoggerFrom(ctx, a.logger).With("filename", doc.Filename, "format", doc.Format)
	out := entity.ExtractedText{Method: constants.MethodNone}

	for _, s := range a.strategies {
		if !s.Supports(doc.Format) {
			continue
		}
		if err := ctx.Err(); err != nil {
			logger.Warn("text acquisition aborted", "before", s.Name(), "error", err)
			out.Warnings = append(out.Warnings, "aborted: "+err.Error())
			return out
		}

		start := time.Now()
		attempt, err := s.TryExtract(ctx, doc)
		dur := time.Since(start)
		out.Warnings = append(out.Warnings, attempt.Warnings...)

		if err != nil {
			a.observe(s.Name(), "error", dur)
			logger.Info("extraction strategy failed", "strategy", s.Name(), "duration_ms", dur.Milliseconds(), "error", err)
			out.Warnings = append(out.Warnings, s.Name()+": "+err.Error())
			continue
		}
		text, ok := Usable(attempt.Text, a.minLen)
		if !ok {
			a.observe(s.Name(), "unusable", dur)
			logger.Info("extraction strategy returned too little text",
				"strategy", s.Name(), "chars", utf8.RuneCountInString(text), "min_chars", a.minLen)
			continue
		}

		a.observe(s.Name(), "ok", dur)
		logger.Debug("text acquired", "strategy", s.Name(), "chars", utf8.RuneCountInString(text), "pages", attempt.Pages, "duration_ms", dur.Milliseconds())
		out.Text = text
		out.Method = s.Name()
		out.Success = true
		out.Pages = attempt.Pages
		return out
	}

	logger.Warn("no extraction strategy produced usable text", "error", common.ErrUnreadableDocument)
	return out
}

func (a *Acquirer) observe(strategy, outcome string, d time.Duration) {
	if a.observer != nil {
		a.observer.ObserveStrategy(strategy, outcome, d)
	}
}
