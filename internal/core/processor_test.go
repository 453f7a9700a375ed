package core_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/core"
	"github.com/joseph-ayodele/policy-extractor/internal/core/language"
	"github.com/joseph-ayodele/policy-extractor/internal/metrics"
)

// brokenRunner stands in for a machine without poppler or tesseract.
type brokenRunner struct{}

func (brokenRunner) Run(context.Context, string, *slog.Logger, ...string) ([]byte, []byte, error) {
	return nil, []byte("not installed"), errors.New("executable file not found")
}

var fixedToday = common.FixedClock(time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC))

func newProcessor(t *testing.T) *core.Processor {
	t.Helper()
	p, err := core.Build(common.DefaultConfig(), nil, core.Deps{
		Clock:   fixedToday,
		Runner:  brokenRunner{},
		Metrics: metrics.NewRecorder(),
	})
	require.NoError(t, err)
	return p
}

const englishPolicy = `Allstate Insurance Company
Homeowners Policy Declarations
Policy Number: ALL-HOME-2024-123456
Named Insured: Maria Lopez
Policy Period: 01/01/2024 to 12/31/2024
Monthly Premium: $150
Deductible: $1000
`

const hebrewPolicy = `פוליסת ביטוח בריאות קבוצתית
אפלייד מטיריאלס
מספר פוליסה: 7788-2024
תאריך תחילה: 01/01/2024
פרמיה חודשית: 250 ₪
דוא"ל: info@amat.co.il
`

func TestExtractEnglishRoundTrip(t *testing.T) {
	rec, err := newProcessor(t).ExtractPolicyFields(context.Background(), []byte(englishPolicy), "allstate.txt", "text/plain")
	require.NoError(t, err)

	assert.Equal(t, "ALLSTATE", rec.Insurer)
	assert.Equal(t, "ALL-HOME-2024-123456", rec.PolicyNumber)
	assert.Equal(t, 150.0, rec.PremiumMonthly)
	assert.Equal(t, 1800.0, rec.PremiumAnnual)
	assert.Equal(t, 1000.0, rec.Deductible)
	assert.Equal(t, "2024-01-01", rec.StartDate)
	assert.Equal(t, "2024-12-31", rec.EndDate)
	assert.Equal(t, "en", rec.PolicyLanguage)
	assert.Equal(t, "home_insurance", rec.DocumentType)
	assert.GreaterOrEqual(t, rec.ExtractionConfidence, 0.8)
	assert.False(t, rec.NeedsReview)
	assert.Equal(t, "Imported from direct-text", rec.Notes)
}

func TestExtractHebrewPartialCoverage(t *testing.T) {
	res, err := newProcessor(t).Extract(context.Background(), []byte(hebrewPolicy), "amat.txt", "text/plain; charset=utf-8")
	require.NoError(t, err)
	rec := res.Record

	assert.Equal(t, language.Hebrew, res.Language)
	assert.Equal(t, "he", rec.PolicyLanguage)
	assert.Equal(t, "info@amat.co.il", rec.ContactEmail)
	assert.Equal(t, "7788-2024", rec.PolicyNumber)
	assert.Equal(t, 250.0, rec.PremiumMonthly)
	assert.Equal(t, "health_insurance", rec.DocumentType)
	assert.GreaterOrEqual(t, rec.ExtractionConfidence, 0.5)
	assert.LessOrEqual(t, rec.ExtractionConfidence, 0.8)
	// end date was not in the document: one year from the start
	assert.Equal(t, "2024-12-31", rec.EndDate)
}

func TestExtractRejectsInvalidInput(t *testing.T) {
	p := newProcessor(t)
	tests := []struct {
		name     string
		data     []byte
		filename string
		mime     string
	}{
		{"empty bytes", nil, "a.pdf", "application/pdf"},
		{"unsupported mime", []byte("GIF89a"), "a.gif", "image/gif"},
		{"malformed mime", []byte("x"), "a.txt", "text/;;"},
		{"unknown extension without mime", []byte("x"), "a.docx", ""},
		{"filename too long", []byte("x"), strings.Repeat("n", 256) + ".txt", "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ExtractPolicyFields(context.Background(), tt.data, tt.filename, tt.mime)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestExtractMaxDocumentBytes(t *testing.T) {
	cfg := common.DefaultConfig()
	cfg.Pipeline.MaxDocumentBytes = 10
	p, err := core.Build(cfg, nil, core.Deps{Clock: fixedToday, Runner: brokenRunner{}})
	require.NoError(t, err)

	_, err = p.ExtractPolicyFields(context.Background(), []byte(englishPolicy), "big.txt", "text/plain")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestExtractInfersMimeFromExtension(t *testing.T) {
	rec, err := newProcessor(t).ExtractPolicyFields(context.Background(), []byte(englishPolicy), "policy.TXT", "")
	require.NoError(t, err)
	assert.Equal(t, "ALL-HOME-2024-123456", rec.PolicyNumber)
}

func TestExtractUnreadableDocumentYieldsDefaults(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		filename string
		mime     string
	}{
		{"garbage pdf with no ocr tools", "%PDF-1.4 not really", "scan.pdf", constants.MimePDF},
		{"text below usable length", "Policy 12", "tiny.txt", constants.MimeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newProcessor(t).Extract(context.Background(), []byte(tt.data), tt.filename, tt.mime)
			require.NoError(t, err)
			rec := res.Record

			assert.False(t, res.Text.Success)
			assert.Equal(t, 0.0, rec.ExtractionConfidence)
			assert.Equal(t, constants.UnknownInsurer, rec.Insurer)
			assert.Equal(t, constants.UnknownProductType, rec.ProductType)
			assert.Equal(t, "unknown", rec.PolicyLanguage)
			assert.Equal(t, constants.GenericDocument, rec.DocumentType)
			assert.Equal(t, "2024-06-01", rec.StartDate)
			assert.Equal(t, "2025-05-31", rec.EndDate)
			assert.Equal(t, tt.filename, rec.OriginalFilename)
			assert.NotEmpty(t, rec.DocumentID)
			assert.True(t, rec.NeedsReview)
			assert.Contains(t, res.Warnings, common.ErrUnreadableDocument.Error())
		})
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	p := newProcessor(t)
	first, err := p.ExtractPolicyFields(context.Background(), []byte(hebrewPolicy), "a.txt", "text/plain")
	require.NoError(t, err)
	second, err := p.ExtractPolicyFields(context.Background(), []byte(hebrewPolicy), "a.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtractNAPremiumIsAbsent(t *testing.T) {
	doc := "Insurer: Travelers\nPolicy Number: TR-55501\nMonthly Premium: N/A\n"
	rec, err := newProcessor(t).ExtractPolicyFields(context.Background(), []byte(doc), "t.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.PremiumMonthly)
	assert.Equal(t, "TRAVELERS", rec.Insurer)
}

func TestExtractConcurrentCallsAgree(t *testing.T) {
	p := newProcessor(t)
	want, err := p.ExtractPolicyFields(context.Background(), []byte(englishPolicy), "a.txt", "text/plain")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := p.ExtractPolicyFields(context.Background(), []byte(englishPolicy), "a.txt", "text/plain")
			if err != nil {
				errs <- err
				return
			}
			if got.PolicyNumber != want.PolicyNumber || got.ExtractionConfidence != want.ExtractionConfidence {
				errs <- errors.New("diverging result")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestExtractCancelledContextIsUnreadable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec, err := newProcessor(t).ExtractPolicyFields(ctx, []byte(englishPolicy), "a.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.ExtractionConfidence)
}
