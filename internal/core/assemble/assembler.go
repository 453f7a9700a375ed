package assemble

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/core/fields"
	"github.com/joseph-ayodele/policy-extractor/internal/core/language"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

const dateLayout = "2006-01-02"

// documentNamespace scopes document IDs so equal bytes always map to the
// same ID.
var documentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("policy-extractor/document"))

// DocumentID derives the stable ID of a document from its bytes.
func DocumentID(content []byte) string {
	sum := sha256.Sum256(content)
	return uuid.NewSHA1(documentNamespace, sum[:]).String()
}

// Input is everything the upstream stages produced for one document.
type Input struct {
	Content     []byte
	Filename    string
	Text        entity.ExtractedText
	Language    language.Tag
	Selection   fields.Selection
	Confidence  float64
	NeedsReview bool
}

// Assembler turns stage output into a complete PolicyRecord.
type Assembler struct {
	clock     common.Clock
	validator *SchemaValidator
	logger    *slog.Logger
}

type Option func(*Assembler)

// WithClock replaces the clock that supplies the default start date.
func WithClock(c common.Clock) Option {
	return func(a *Assembler) { a.clock = c }
}

// WithValidator enables schema validation of every record.
func WithValidator(v *SchemaValidator) Option {
	return func(a *Assembler) { a.validator = v }
}

func NewAssembler(logger *slog.Logger, opts ...Option) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Assembler{clock: common.SystemClock{}, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble fills every attribute, defaulting what extraction left absent.
// The only error is a schema violation, which means a bug upstream.
func (a *Assembler) Assemble(in Input) (entity.PolicyRecord, error) {
	f := in.Selection.Fields
	if f == nil {
		f = fields.Fields{}
	}

	rec := entity.PolicyRecord{
		DocumentID:           DocumentID(in.Content),
		Insurer:              textOr(f, fields.Insurer, constants.UnknownInsurer),
		ProductType:          textOr(f, fields.ProductType, constants.UnknownProductType),
		PolicyNumber:         f.Text(fields.PolicyNumber),
		OwnerName:            f.Text(fields.OwnerName),
		PremiumMonthly:       money(f, fields.PremiumMonthly),
		PremiumAnnual:        money(f, fields.PremiumAnnual),
		Deductible:           money(f, fields.Deductible),
		CoverageLimit:        money(f, fields.CoverageLimit),
		ContactEmail:         f.Text(fields.ContactEmail),
		ContactPhone:         f.Text(fields.ContactPhone),
		ContactAddress:       f.Text(fields.ContactAddress),
		AgentName:            f.Text(fields.AgentName),
		AgentContact:         f.Text(fields.AgentContact),
		PolicyLanguage:       in.Language.Code(),
		OriginalFilename:     in.Filename,
		ExtractionConfidence: clamp(in.Confidence),
		NeedsReview:          in.NeedsReview,
		Notes:                notes(in.Text),
		CoverageDetails:      in.Selection.Coverage,
		PolicyChapters:       in.Selection.Chapters,
	}
	rec.StartDate, rec.EndDate = a.dates(f)
	rec.DocumentType = documentType(f.Text(fields.ProductType), in.Text.Text)

	if a.validator != nil {
		if err := a.validator.Validate(rec); err != nil {
			a.logger.Error("assembled record failed schema validation",
				"document_id", rec.DocumentID, "error", err)
			return entity.PolicyRecord{}, common.NewAppError(common.CodeInternal, "invalid policy record", fmt.Errorf("%w: %v", common.ErrInternal, err))
		}
	}
	return rec, nil
}

// Failed is the record for a document no strategy could read.
func (a *Assembler) Failed(content []byte, filename string, text entity.ExtractedText) (entity.PolicyRecord, error) {
	return a.Assemble(Input{
		Content:     content,
		Filename:    filename,
		Text:        text,
		Language:    language.Unknown,
		NeedsReview: true,
	})
}

// dates defaults a missing start to today and a missing end to a one-year
// term from the start.
func (a *Assembler) dates(f fields.Fields) (string, string) {
	start, ok := parseDate(f.Text(fields.StartDate))
	if !ok {
		start = common.Today(a.clock)
	}
	end, ok := parseDate(f.Text(fields.EndDate))
	if !ok {
		end = start.AddDate(1, 0, -1)
	}
	return start.Format(dateLayout), end.Format(dateLayout)
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s)
	return t, err == nil
}

// headerLines bounds how far into a document the product keyword fallback looks.
const headerLines = 12

var (
	titleLine    = regexp.MustCompile(`(?i)\b(?:insurance|policy|declarations?|plan)\b|ביטוח|פוליס`)
	coverageLine = regexp.MustCompile(`(?i)\bcoverages?\b|כיסוי`)
)

// documentType prefers the extracted product and falls back to keywords in
// the document header. Title lines are searched before the rest of the
// header; coverage lines are ignored since they name benefits, not the
// product.
func documentType(product, text string) string {
	if p, ok := constants.CanonicalizeProduct(product); ok {
		return p.DocumentType()
	}
	var titles, rest []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(titles)+len(rest) == headerLines {
			break
		}
		switch {
		case coverageLine.MatchString(line):
			rest = append(rest, "")
		case titleLine.MatchString(line):
			titles = append(titles, line)
		default:
			rest = append(rest, line)
		}
	}
	for _, group := range [][]string{titles, rest} {
		if p, ok := constants.CanonicalizeProduct(strings.Join(group, "\n")); ok {
			return p.DocumentType()
		}
	}
	return constants.GenericDocument
}

func textOr(f fields.Fields, name, def string) string {
	if s := f.Text(name); s != "" {
		return s
	}
	return def
}

func money(f fields.Fields, name string) float64 {
	v, ok := f.Number(name)
	if !ok || v < 0 {
		return 0
	}
	return v
}

func notes(t entity.ExtractedText) string {
	method := t.Method
	if method == "" {
		method = constants.MethodNone
	}
	return "Imported from " + method
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
