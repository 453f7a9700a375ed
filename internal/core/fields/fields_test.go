package fields_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/policy-extractor/internal/core/fields"
	"github.com/joseph-ayodele/policy-extractor/internal/core/language"
)

const allstateDoc = `Allstate Insurance Company
Homeowners Policy Declarations

Policy Number: ALL-HOME-2024-123456
Named Insured: John Smith
Mailing Address: 123 Main Street, Springfield, IL 62701
Effective Date: 01/01/2024
Expiration Date: 12/31/2024

Monthly Premium: $150.00
Deductible: $1,000
Coverage Limit: $350,000

Dwelling Coverage: $350,000
Personal Liability: $300,000
Exclusion: Flood; Earthquake

Agent: Jane Doe
Agent Phone: (217) 555-0199
Customer Service Phone: 1-800-255-7828
Email: claims@allstate.com

Section 1 - Property Coverages
Section 2 - Liability Coverages
`

const hebrewDoc = `פוליסת ביטוח בריאות קבוצתית
אפלייד מטיריאלס
מספר פוליסה: 7788-2024
תאריך תחילה: 01/01/2024
פרמיה חודשית: 250 ₪
דוא״ל: info@amat.co.il
`

func mustEnglish(t *testing.T) fields.Extractor {
	t.Helper()
	x, err := fields.NewEnglishExtractor()
	require.NoError(t, err)
	return x
}

func mustHebrew(t *testing.T) fields.Extractor {
	t.Helper()
	x, err := fields.NewHebrewExtractor()
	require.NoError(t, err)
	return x
}

// ============================================================================
// English variant
// ============================================================================

func TestEnglishExtract(t *testing.T) {
	got := mustEnglish(t).Extract(allstateDoc)

	assert.Equal(t, "ALLSTATE", got.Text(fields.Insurer))
	assert.Equal(t, "ALL-HOME-2024-123456", got.Text(fields.PolicyNumber))
	assert.Equal(t, "John Smith", got.Text(fields.OwnerName))
	assert.Equal(t, "Home", got.Text(fields.ProductType))
	assert.Equal(t, "2024-01-01", got.Text(fields.StartDate))
	assert.Equal(t, "2024-12-31", got.Text(fields.EndDate))
	assert.Equal(t, "claims@allstate.com", got.Text(fields.ContactEmail))
	assert.Equal(t, "1-800-255-7828", got.Text(fields.ContactPhone))
	assert.Equal(t, "123 Main Street, Springfield, IL 62701", got.Text(fields.ContactAddress))
	assert.Equal(t, "Jane Doe", got.Text(fields.AgentName))
	assert.Equal(t, "(217) 555-0199", got.Text(fields.AgentContact))

	premium, ok := got.Number(fields.PremiumMonthly)
	require.True(t, ok)
	assert.Equal(t, 150.0, premium)

	deductible, ok := got.Number(fields.Deductible)
	require.True(t, ok)
	assert.Equal(t, 1000.0, deductible)

	limit, _ := got.Number(fields.CoverageLimit)
	assert.Equal(t, 350000.0, limit)

	// annual premium is derived from the monthly one
	annual := got[fields.PremiumAnnual]
	assert.Equal(t, 1800.0, annual.Number)
	assert.True(t, annual.Fuzzy)
	assert.Equal(t, "derived:premium_monthly", annual.Rule)
}

func TestEnglishRules(t *testing.T) {
	rs, err := fields.EmbeddedRuleSet("en")
	require.NoError(t, err)
	eng, err := fields.NewEngine(rs)
	require.NoError(t, err)

	tests := []struct {
		rule  string
		text  string
		want  string
		match bool
	}{
		{"insurer_label", "Insurer: State Farm Mutual Automobile Insurance Company", "STATE FARM MUTUAL AUTOMOBILE", true},
		{"insurer_label", "Underwritten by: Liberty Mutual Insurance Co.", "LIBERTY MUTUAL", true},
		{"insurer_known_carrier", "Thank you for choosing GEICO.", "GEICO", true},
		{"insurer_known_carrier", "Thank you for choosing us.", "", false},
		{"insurer_company_line", "Acme Mutual Insurance Company\nPolicy", "ACME MUTUAL", true},
		{"policy_number_label", "Policy No. HX-99812", "HX-99812", true},
		{"policy_number_label", "policy #: 0012345.", "0012345", true},
		{"policy_number_label", "Policy Notice: read carefully", "", false},
		{"start_date_label", "Effective Date: January 15, 2024", "2024-01-15", true},
		{"start_date_label", "Start date 15 Mar 2024", "2024-03-15", true},
		{"start_date_period", "Policy Period: 03/01/2024 to 02/28/2025", "2024-03-01", true},
		{"end_date_period", "Policy Period: 03/01/2024 to 02/28/2025", "2025-02-28", true},
		{"end_date_label", "Expiration Date: 02/30/2025", "", false},
		{"premium_monthly_label", "Monthly Premium: N/A", "", false},
		{"premium_monthly_label", "Monthly premium: $1,234.50", "1234.5", true},
		{"premium_monthly_per_month", "You pay $89.99 per month", "89.99", true},
		{"premium_monthly_per_month", "You pay $89.99/month", "89.99", true},
		{"premium_annual_label", "Annual Premium: USD 2,400", "2400", true},
		{"deductible_trailing", "a $500 deductible applies", "500", true},
		{"email_any", "write to help@example.org today", "help@example.org", true},
		{"phone_us_any", "call 217.555.0100", "217.555.0100", true},
		{"address_label", "Email Address: a@b.com\nProperty Address: 9 Elm Rd", "9 Elm Rd", true},
		{"agent_label", "Agent Phone: 555-0101", "", false},
		{"premium_monthly_label", "Monthly Premium:\n$1000 deductible", "", false},
		{"deductible_label", "Deductible\n$250 per month", "", false},
		{"start_date_label", "Effective Date:\n01/01/2024", "", false},
		{"end_date_period", "Policy Period: 01/01/2024 to\n12/31/2024", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.rule+"/"+tt.text, func(t *testing.T) {
			v, ok := eng.MatchRule(tt.rule, tt.text)
			assert.Equal(t, tt.match, ok)
			if tt.match {
				assert.Equal(t, tt.want, v.Text)
				assert.Equal(t, tt.rule, v.Rule)
			}
		})
	}
}

func TestEnglishValueNeverTakenFromNextLine(t *testing.T) {
	text := "Allstate\nPolicy number ALL-HOME-2024-123456\n$150 monthly premium\n$1000 deductible\nEffective date\n01/01/2024\n"
	got := mustEnglish(t).Extract(text)

	premium := got[fields.PremiumMonthly]
	assert.Equal(t, 150.0, premium.Number)
	assert.Equal(t, "premium_monthly_per_month", premium.Rule)

	deductible := got[fields.Deductible]
	assert.Equal(t, 1000.0, deductible.Number)
	assert.Equal(t, "deductible_trailing", deductible.Rule)
	assert.True(t, deductible.Fuzzy)

	assert.False(t, got.Has(fields.StartDate))
}

func TestEnglishSections(t *testing.T) {
	cov, chapters := mustEnglish(t).Sections(allstateDoc)

	require.NotNil(t, cov)
	assert.Equal(t, 350000.0, cov.Coverages["dwelling_coverage"].Amount)
	assert.Equal(t, "Dwelling Coverage", cov.Coverages["dwelling_coverage"].Description)
	assert.Equal(t, 300000.0, cov.Coverages["personal_liability"].Amount)
	assert.Equal(t, []string{"Flood", "Earthquake"}, cov.Exclusions)

	require.NotNil(t, chapters)
	assert.Equal(t, 2, chapters.Count)
	assert.Equal(t, "1", chapters.Chapters[0].Number)
	assert.Equal(t, "Property Coverages", chapters.Chapters[0].Title)
}

func TestSectionsNilWhenAbsent(t *testing.T) {
	cov, chapters := mustEnglish(t).Sections("Policy Number: 12345")
	assert.Nil(t, cov)
	assert.Nil(t, chapters)
}

// ============================================================================
// Hebrew variant
// ============================================================================

func TestHebrewExtract(t *testing.T) {
	got := mustHebrew(t).Extract(hebrewDoc)

	assert.Equal(t, "אפלייד מטיריאלס", got.Text(fields.Insurer))
	assert.True(t, got[fields.Insurer].Fuzzy)
	assert.Equal(t, "7788-2024", got.Text(fields.PolicyNumber))
	assert.Equal(t, "2024-01-01", got.Text(fields.StartDate))
	assert.Equal(t, "info@amat.co.il", got.Text(fields.ContactEmail))
	assert.Equal(t, "Health", got.Text(fields.ProductType))
	assert.False(t, got.Has(fields.EndDate))

	premium, ok := got.Number(fields.PremiumMonthly)
	require.True(t, ok)
	assert.Equal(t, 250.0, premium)
}

func TestHebrewRules(t *testing.T) {
	rs, err := fields.EmbeddedRuleSet("he")
	require.NoError(t, err)
	eng, err := fields.NewEngine(rs)
	require.NoError(t, err)

	tests := []struct {
		rule  string
		text  string
		want  string
		match bool
	}{
		{"insurer_label", "חברת ביטוח: הראל חברה לביטוח בע\"מ", "הראל", true},
		{"insurer_known_carrier", "פוליסה של מגדל לשנת 2024", "מגדל", true},
		{"insurer_known_carrier", "בישראל", "", false},
		{"start_date_label", "תאריך תחילת הביטוח: 15 במרץ 2024", "2024-03-15", true},
		{"start_date_period", "תקופת הביטוח: מ-01/03/2024 עד 28/02/2025", "2024-03-01", true},
		{"end_date_period", "תקופת הביטוח: מ-01/03/2024 עד 28/02/2025", "2025-02-28", true},
		{"end_date_label", "תאריך סיום: 31.12.2024", "2024-12-31", true},
		{"premium_annual_label", "פרמיה שנתית: 1,200 ש\"ח", "1200", true},
		{"premium_monthly_label", "פרמיה חודשית: לא ידוע", "", false},
		{"deductible_label", "השתתפות עצמית: ₪350", "350", true},
		{"phone_israeli_any", "לבירורים 03-5551234 בכל שעה", "03-5551234", true},
		{"agent_label", "טלפון הסוכן: 03-5551234", "", false},
		{"agent_phone", "טלפון הסוכן: 03-5551234", "03-5551234", true},
		{"premium_monthly_label", "פרמיה חודשית:\n500 ₪ השתתפות עצמית", "", false},
		{"deductible_label", "השתתפות עצמית:\n350", "", false},
		{"end_date_label", "תאריך סיום:\n31.12.2024", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			v, ok := eng.MatchRule(tt.rule, tt.text)
			assert.Equal(t, tt.match, ok)
			if tt.match {
				assert.Equal(t, tt.want, v.Text)
			}
		})
	}
}

func TestHebrewPunctuationFolded(t *testing.T) {
	got := mustHebrew(t).Extract("פרמיה שנתית: 600 ש״ח")
	v, ok := got.Number(fields.PremiumAnnual)
	require.True(t, ok)
	assert.Equal(t, 600.0, v)
	monthly, _ := got.Number(fields.PremiumMonthly)
	assert.Equal(t, 50.0, monthly)
}

func TestHebrewSections(t *testing.T) {
	text := "כיסוי אשפוז: 500,000 ₪\nחריגים: מחלות קודמות; ספורט אתגרי\nפרק ב׳ - הגדרות"
	cov, chapters := mustHebrew(t).Sections(text)

	require.NotNil(t, cov)
	assert.Equal(t, 500000.0, cov.Coverages["כיסוי_אשפוז"].Amount)
	assert.Equal(t, []string{"מחלות קודמות", "ספורט אתגרי"}, cov.Exclusions)
	require.NotNil(t, chapters)
	assert.Equal(t, "ב'", chapters.Chapters[0].Number)
	assert.Equal(t, "הגדרות", chapters.Chapters[0].Title)
}

// ============================================================================
// Engine
// ============================================================================

func TestEngineFirstRuleWins(t *testing.T) {
	rs := fields.RuleSet{
		Language: "en",
		Rules: []fields.Rule{
			{Name: "specific", Field: fields.PolicyNumber, Pattern: `policy number:\s*(\S+)`, Normalizer: "identifier"},
			{Name: "loose", Field: fields.PolicyNumber, Pattern: `(\d{5,})`, Normalizer: "identifier", Fuzzy: true},
		},
	}
	eng, err := fields.NewEngine(rs)
	require.NoError(t, err)

	got := eng.Extract("ref 99999 POLICY NUMBER: AB-123")
	assert.Equal(t, "AB-123", got.Text(fields.PolicyNumber))
	assert.Equal(t, "specific", got[fields.PolicyNumber].Rule)

	got = eng.Extract("ref 99999")
	assert.Equal(t, "99999", got.Text(fields.PolicyNumber))
	assert.True(t, got[fields.PolicyNumber].Fuzzy)
}

func TestEngineTriesLaterMatchesWhenNormalizationFails(t *testing.T) {
	rs := fields.RuleSet{
		Language: "en",
		Rules: []fields.Rule{
			{Name: "premium", Field: fields.PremiumMonthly, Pattern: `premium:\s*(\S+)`, Normalizer: "money"},
		},
	}
	eng, err := fields.NewEngine(rs)
	require.NoError(t, err)

	got := eng.Extract("premium: N/A\npremium: $75")
	v, ok := got.Number(fields.PremiumMonthly)
	require.True(t, ok)
	assert.Equal(t, 75.0, v)
}

func TestEngineMacros(t *testing.T) {
	rs, err := fields.ParseRuleSet([]byte(`
language: xx
macros:
  NUM: '\d+'
  ID: 'id-{{NUM}}'
rules:
  - name: id
    field: policy_number
    pattern: '({{ID}})'
    normalizer: identifier
`))
	require.NoError(t, err)
	assert.Equal(t, fields.MonthFirst, rs.DateOrder)

	eng, err := fields.NewEngine(rs)
	require.NoError(t, err)
	v, ok := eng.MatchRule("id", "see ID-42 attached")
	require.True(t, ok)
	assert.Equal(t, "ID-42", v.Text)
}

func TestNewEngineRejectsBadRules(t *testing.T) {
	tests := []struct {
		name string
		rule fields.Rule
	}{
		{"unknown field", fields.Rule{Name: "x", Field: "colour", Pattern: "a", Normalizer: "text"}},
		{"unknown normalizer", fields.Rule{Name: "x", Field: fields.Insurer, Pattern: "a", Normalizer: "magic"}},
		{"bad regexp", fields.Rule{Name: "x", Field: fields.Insurer, Pattern: "(", Normalizer: "text"}},
		{"empty pattern", fields.Rule{Name: "x", Field: fields.Insurer, Pattern: " ", Normalizer: "text"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fields.NewEngine(fields.RuleSet{Language: "en", Rules: []fields.Rule{tt.rule}})
			assert.Error(t, err)
		})
	}

	_, err := fields.NewEngine(fields.RuleSet{
		Language:   "en",
		Exclusions: []fields.SectionRule{{Name: "x", Pattern: `exclusion: (.+)`}},
	})
	assert.ErrorContains(t, err, `missing named group "item"`)
}

func TestParseRuleSetRequiresLanguage(t *testing.T) {
	_, err := fields.ParseRuleSet([]byte("rules: []"))
	assert.Error(t, err)

	_, err = fields.EmbeddedRuleSet("fr")
	assert.Error(t, err)
}

// ============================================================================
// Selector
// ============================================================================

type countScorer struct{}

func (countScorer) Score(f fields.Fields) float64 { return float64(len(f)) / 100 }

func TestSelectorRoutesByTag(t *testing.T) {
	sel, err := fields.NewDefaultSelector(countScorer{}, nil)
	require.NoError(t, err)

	got := sel.Extract(hebrewDoc, language.Hebrew)
	assert.Equal(t, language.Hebrew, got.Variant)
	assert.Equal(t, "7788-2024", got.Fields.Text(fields.PolicyNumber))

	got = sel.Extract(allstateDoc, language.English)
	assert.Equal(t, language.English, got.Variant)
	assert.NotNil(t, got.Coverage)
	assert.NotNil(t, got.Chapters)
}

func TestSelectorUnknownPicksHigherScore(t *testing.T) {
	sel, err := fields.NewDefaultSelector(countScorer{}, nil)
	require.NoError(t, err)

	got := sel.Extract("מספר פוליסה: 5511-22\nפרמיה חודשית: 90 ₪", language.Unknown)
	assert.Equal(t, language.Hebrew, got.Variant)

	got = sel.Extract("Policy Number: ZZ-1234\nDeductible: $250", language.Unknown)
	assert.Equal(t, language.English, got.Variant)
}

func TestSelectorUnknownTieGoesToEnglish(t *testing.T) {
	sel, err := fields.NewDefaultSelector(countScorer{}, nil)
	require.NoError(t, err)

	got := sel.Extract("nothing to see here", language.Unknown)
	assert.Equal(t, language.English, got.Variant)
	assert.Empty(t, got.Fields)
}
