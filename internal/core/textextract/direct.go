package textextract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DirectStrategy reads the text layer in-process: plain text files as-is and
// PDFs through ledongthuc/pdf, page by page, without layout analysis.
type DirectStrategy struct {
	logger *slog.Logger
}

func NewDirectStrategy(logger *slog.Logger) *DirectStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectStrategy{logger: logger}
}

func (*DirectStrategy) Name() string { return constants.MethodDirectText }

func (*DirectStrategy) Supports(format string) bool {
	return format == constants.PDF || format == constants.TEXT
}

func (d *DirectStrategy) TryExtract(ctx context.Context, doc entity.RawDocument) (Attempt, error) {
	if err := ctx.Err(); err != nil {
		return Attempt{}, err
	}
	switch doc.Format {
	case constants.TEXT:
		return Attempt{Text: decodeText(doc.Content), Pages: 1}, nil
	case constants.PDF:
		return d.readPDF(ctx, doc.Content)
	default:
		return Attempt{}, fmt.Errorf("unsupported format %q", doc.Format)
	}
}

func decodeText(b []byte) string {
	b = bytes.TrimPrefix(b, utf8BOM)
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}

// readPDF guards every library call with recover since malformed streams
// make ledongthuc/pdf panic.
func (d *DirectStrategy) readPDF(ctx context.Context, data []byte) (att Attempt, err error) {
	defer func() {
		if r := recover(); r != nil {
			att, err = Attempt{}, fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Attempt{}, fmt.Errorf("open pdf: %w", err)
	}
	pages := reader.NumPage()
	if pages <= 0 {
		return Attempt{}, errors.New("pdf has no pages")
	}

	var b strings.Builder
	var warns []string
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return Attempt{}, err
		}
		text, perr := pageText(reader, i)
		if perr != nil {
			warns = append(warns, fmt.Sprintf("page %d: %v", i, perr))
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(text)
	}
	d.logger.Debug("pdf text layer read", "pages", pages, "bytes", b.Len(), "warnings", len(warns))
	return Attempt{Text: b.String(), Pages: pages, Warnings: warns}, nil
}

func pageText(reader *pdf.Reader, i int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	page := reader.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
