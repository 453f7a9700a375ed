package assemble_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/core/assemble"
	"github.com/joseph-ayodele/policy-extractor/internal/core/fields"
	"github.com/joseph-ayodele/policy-extractor/internal/core/language"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

var today = common.FixedClock(time.Date(2025, 3, 10, 15, 4, 5, 0, time.UTC))

func newAssembler(t *testing.T) *assemble.Assembler {
	t.Helper()
	v, err := assemble.NewSchemaValidator()
	require.NoError(t, err)
	return assemble.NewAssembler(nil, assemble.WithClock(today), assemble.WithValidator(v))
}

func TestAssembleDefaults(t *testing.T) {
	rec, err := newAssembler(t).Failed([]byte("%PDF-garbage"), "scan.pdf", entity.ExtractedText{Method: constants.MethodNone})
	require.NoError(t, err)

	assert.Equal(t, constants.UnknownInsurer, rec.Insurer)
	assert.Equal(t, constants.UnknownProductType, rec.ProductType)
	assert.Equal(t, "", rec.PolicyNumber)
	assert.Equal(t, "2025-03-10", rec.StartDate)
	assert.Equal(t, "2026-03-09", rec.EndDate)
	assert.Zero(t, rec.PremiumMonthly)
	assert.Zero(t, rec.Deductible)
	assert.Equal(t, "unknown", rec.PolicyLanguage)
	assert.Equal(t, "scan.pdf", rec.OriginalFilename)
	assert.Equal(t, constants.GenericDocument, rec.DocumentType)
	assert.Zero(t, rec.ExtractionConfidence)
	assert.True(t, rec.NeedsReview)
	assert.Equal(t, "Imported from none", rec.Notes)
	assert.Nil(t, rec.CoverageDetails)
	assert.Nil(t, rec.PolicyChapters)
}

func TestAssembleEveryKeyPresent(t *testing.T) {
	rec, err := newAssembler(t).Failed([]byte("x"), "x.txt", entity.ExtractedText{})
	require.NoError(t, err)

	b, err := json.Marshal(rec)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))

	for _, key := range []string{
		"insurer", "product_type", "policy_number", "owner_name", "start_date", "end_date",
		"premium_monthly", "premium_annual", "deductible", "coverage_limit",
		"contact_email", "contact_phone", "contact_address", "agent_name", "agent_contact",
		"policy_language", "original_filename", "document_type", "extraction_confidence",
		"coverage_details", "policy_chapters",
	} {
		assert.Contains(t, m, key)
	}
	assert.Nil(t, m["coverage_details"])
}

func TestAssembleExtractedValues(t *testing.T) {
	f := fields.Fields{
		fields.Insurer:        {Text: "ALLSTATE"},
		fields.ProductType:    {Text: "Home"},
		fields.PolicyNumber:   {Text: "ALL-HOME-2024-123456"},
		fields.StartDate:      {Text: "2024-01-01", Kind: fields.KindDate},
		fields.PremiumMonthly: {Number: 150, Kind: fields.KindMoney},
		fields.PremiumAnnual:  {Number: 1800, Kind: fields.KindMoney, Fuzzy: true},
		fields.Deductible:     {Number: 1000, Kind: fields.KindMoney},
	}
	cov := &entity.CoverageDetails{Coverages: map[string]entity.CoverageItem{
		"dwelling_coverage": {Amount: 350000, Description: "Dwelling Coverage"},
	}}

	rec, err := newAssembler(t).Assemble(assemble.Input{
		Content:    []byte("doc"),
		Filename:   "allstate.pdf",
		Text:       entity.ExtractedText{Text: "...", Method: constants.MethodLayout, Success: true},
		Language:   language.English,
		Selection:  fields.Selection{Fields: f, Variant: language.English, Coverage: cov},
		Confidence: 0.9,
	})
	require.NoError(t, err)

	assert.Equal(t, "ALLSTATE", rec.Insurer)
	assert.Equal(t, "Home", rec.ProductType)
	assert.Equal(t, "home_insurance", rec.DocumentType)
	assert.Equal(t, "2024-01-01", rec.StartDate)
	assert.Equal(t, "2024-12-31", rec.EndDate, "end defaults to a one year term")
	assert.Equal(t, 150.0, rec.PremiumMonthly)
	assert.Equal(t, 1800.0, rec.PremiumAnnual)
	assert.Equal(t, 1000.0, rec.Deductible)
	assert.Equal(t, "en", rec.PolicyLanguage)
	assert.Equal(t, "Imported from layout", rec.Notes)
	assert.Equal(t, 0.9, rec.ExtractionConfidence)
	assert.Same(t, cov, rec.CoverageDetails)
}

func TestDocumentTypeInference(t *testing.T) {
	tests := []struct {
		name    string
		product string
		text    string
		want    string
	}{
		{"from product", "Health", "", "health_insurance"},
		{"hebrew text keyword", "", "פוליסה לביטוח רכב מקיף", "auto_insurance"},
		{"english text keyword", "", "This life insurance policy", "life_insurance"},
		{"non canonical product falls back to text", "Umbrella", "travel plan", "travel_insurance"},
		{"generic", "", "terms and conditions", constants.GenericDocument},
		{"coverage names do not decide the product", "",
			"Travelers Insurance Company\nDeclarations Page\nMedical Payments Coverage: $5,000\nVehicle: 2020 Toyota Camry\n",
			"auto_insurance"},
		{"title beats earlier body line", "",
			"Account 4471 dental rider attached\nAuto Policy Declarations\n",
			"auto_insurance"},
		{"hebrew keyword inside a longer word", "",
			"מסמך מורכב\nתנאים כלליים\n",
			constants.GenericDocument},
		{"hebrew coverage line is skipped", "", "כיסוי לנזקים שנגרמו ברכב המבוטח", constants.GenericDocument},
		{"hebrew prefixed keyword in title", "", "פוליסה לביטוח ברכב פרטי", "auto_insurance"},
		{"keyword past the header is ignored", "",
			"Acme Mutual\n1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n11\n12\nlife\n",
			constants.GenericDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fields.Fields{}
			if tt.product != "" {
				f[fields.ProductType] = fields.Value{Text: tt.product}
			}
			rec, err := newAssembler(t).Assemble(assemble.Input{
				Content:   []byte(tt.name),
				Text:      entity.ExtractedText{Text: tt.text},
				Selection: fields.Selection{Fields: f},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.DocumentType)
		})
	}
}

func TestDocumentIDIsContentDerived(t *testing.T) {
	a := assemble.DocumentID([]byte("same bytes"))
	assert.Equal(t, a, assemble.DocumentID([]byte("same bytes")))
	assert.NotEqual(t, a, assemble.DocumentID([]byte("other bytes")))
}

func TestAssembleConfidenceClamped(t *testing.T) {
	rec, err := newAssembler(t).Assemble(assemble.Input{Content: []byte("a"), Confidence: 1.7})
	require.NoError(t, err)
	assert.Equal(t, 1.0, rec.ExtractionConfidence)
}

func TestSchemaValidatorRejectsBadRecords(t *testing.T) {
	v, err := assemble.NewSchemaValidator()
	require.NoError(t, err)

	good, err := newAssembler(t).Failed([]byte("a"), "a.pdf", entity.ExtractedText{})
	require.NoError(t, err)
	require.NoError(t, v.Validate(good))

	bad := good
	bad.StartDate = "01/02/2024"
	assert.Error(t, v.Validate(bad))

	bad = good
	bad.PolicyLanguage = "fr"
	assert.Error(t, v.Validate(bad))

	assert.Error(t, v.ValidateJSON([]byte(`{"insurer": "x"}`)))
}
