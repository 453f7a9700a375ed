package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "heb+eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit
	TessdataDir   string

	BreakerMaxFailures uint32        // consecutive OCR failures before the breaker opens, default 5
	BreakerTimeout     time.Duration // how long the breaker stays open, default 30s
}

// Result is the raw output of one poppler/tesseract run.
type Result struct {
	Text     string
	Pages    int
	Duration time.Duration
	Warnings []string
}

// Engine shells out to poppler and tesseract. Rasterized pages live in a
// temp dir that is removed before RecognizePDF returns.
type Engine struct {
	cfg     Config
	runner  Runner
	logger  *slog.Logger
	breaker *gobreaker.CircuitBreaker[Result]
}

type Option func(*Engine)

// WithRunner replaces the exec runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(e *Engine) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewEngine(cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "heb+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	e := &Engine{cfg: cfg, runner: ExecRunner{Env: defaultEnv}, logger: logger}
	for _, o := range opts {
		o(e)
	}

	maxFailures := cfg.BreakerMaxFailures
	e.breaker = gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:    "ocr",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up is not a broken OCR install
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("ocr breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return e
}

// LayoutText runs `pdftotext -layout`, which keeps columns in reading order.
func (e *Engine) LayoutText(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, e.logger, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return Result{Warnings: stderrWarning(errb)}, fmt.Errorf("pdftotext: %w", err)
	}
	text := string(out)
	// a form-feed \f is used as page separator by default
	pages := 1 + strings.Count(strings.TrimRight(text, "\f\n"), "\f")
	return Result{Text: text, Pages: pages, Duration: time.Since(start)}, nil
}

// RecognizePDF rasterizes the PDF and runs tesseract page by page.
// Fails fast with gobreaker.ErrOpenState after repeated OCR failures.
func (e *Engine) RecognizePDF(ctx context.Context, path string) (Result, error) {
	return e.breaker.Execute(func() (Result, error) {
		return e.recognizePDF(ctx, path)
	})
}

func (e *Engine) recognizePDF(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	tmpDir, err := os.MkdirTemp("", "pe-pp-*")
	if err != nil {
		return Result{}, err
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", dir, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", fmt.Sprintf("%d", e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-l", fmt.Sprintf("%d", e.cfg.MaxPages))
	}
	args = append(args, path, prefix)
	// pdftoppm -r 300 -png [-l N] <in.pdf> <tmp/page>
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, e.logger, args...); err != nil {
		return Result{Warnings: stderrWarning(errb)}, fmt.Errorf("pdftoppm: %w", err)
	}

	// prefix-1.png, prefix-2.png, ... (zero padded when there are 10+ pages)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return Result{Warnings: []string{"pdftoppm produced no images"}}, errors.New("no pages rendered")
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		if err := ctx.Err(); err != nil {
			return Result{Warnings: warns}, err
		}
		txt, err := e.tesseract(ctx, img)
		if err != nil {
			warns = append(warns, fmt.Sprintf("%s: %v", filepath.Base(img), err))
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)
	}
	if b.Len() == 0 {
		return Result{Pages: len(matches), Warnings: warns}, errors.New("tesseract recognized no text")
	}
	return Result{Text: b.String(), Pages: len(matches), Duration: time.Since(start), Warnings: warns}, nil
}

func (e *Engine) tesseract(ctx context.Context, img string) (string, error) {
	// tesseract <file> stdout -l <lang>
	args := []string{img, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.logger, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 256))
	}
	return string(out), nil
}

func stderrWarning(errb []byte) []string {
	s := strings.TrimSpace(string(errb))
	if s == "" {
		return nil
	}
	return []string{truncate(s, 1024)}
}
