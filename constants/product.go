package constants

import (
	"strings"
	"unicode"
)

type Product string

const (
	ProductHealth     Product = "health"
	ProductAuto       Product = "auto"
	ProductHome       Product = "home"
	ProductLife       Product = "life"
	ProductDisability Product = "disability"
	ProductTravel     Product = "travel"
	ProductCommercial Product = "commercial"
	ProductGeneral    Product = "general"
)

// Defaults written by the assembler when nothing was extracted.
const (
	UnknownInsurer     = "Unknown"
	UnknownProductType = "Unknown"
	GenericDocument    = "insurance_policy"
)

var allProducts = []Product{
	ProductHealth,
	ProductAuto,
	ProductHome,
	ProductLife,
	ProductDisability,
	ProductTravel,
	ProductCommercial,
}

type productKeyword struct {
	keyword string
	product Product
}

// Keywords are whole tokens; multi-word keywords match consecutive tokens.
// When two keywords start at the same token the earlier entry wins.
var productKeywords = []productKeyword{
	{"health", ProductHealth},
	{"medical", ProductHealth},
	{"dental", ProductHealth},
	{"בריאות", ProductHealth},
	{"רפואי", ProductHealth},
	{"רפואית", ProductHealth},
	{"אשפוז", ProductHealth},
	{"auto", ProductAuto},
	{"automobile", ProductAuto},
	{"car", ProductAuto},
	{"vehicle", ProductAuto},
	{"motor", ProductAuto},
	{"רכב", ProductAuto},
	{"home", ProductHome},
	{"homeowners", ProductHome},
	{"homeowner", ProductHome},
	{"property", ProductHome},
	{"dwelling", ProductHome},
	{"renters", ProductHome},
	{"דירה", ProductHome},
	{"מבנה", ProductHome},
	{"life", ProductLife},
	{"חיים", ProductLife},
	{"disability", ProductDisability},
	{"אובדן כושר", ProductDisability},
	{"travel", ProductTravel},
	{"נסיעות", ProductTravel},
	{"חו\"ל", ProductTravel},
	{"commercial", ProductCommercial},
	{"business", ProductCommercial},
	{"עסק", ProductCommercial},
	{"עסקים", ProductCommercial},
}

// hebrewPrefixes are the attached particles a keyword token may carry
// (ו, ש, then one of ה ב ל מ כ).
var hebrewPrefixes = []string{
	"וש", "וה", "וב", "ול", "ומ", "וכ",
	"שה", "שב", "של", "שמ", "מה",
	"ו", "ש", "ה", "ב", "ל", "מ", "כ",
}

var productDisplay = map[Product]string{
	ProductHealth:     "Health",
	ProductAuto:       "Auto",
	ProductHome:       "Home",
	ProductLife:       "Life",
	ProductDisability: "Disability",
	ProductTravel:     "Travel",
	ProductCommercial: "Commercial",
	ProductGeneral:    "General",
}

// Display returns the human-facing name of a product key.
func (p Product) Display() string {
	if d, ok := productDisplay[p]; ok {
		return d
	}
	return string(p)
}

// DocumentType maps a product to the document_type written on records.
func (p Product) DocumentType() string {
	for _, known := range allProducts {
		if p == known {
			return string(p) + "_insurance"
		}
	}
	return GenericDocument
}

// CanonicalizeProduct resolves free text such as "Homeowners Insurance" or
// "ביטוח בריאות" to a product key. Keywords match whole tokens, and Hebrew
// tokens may carry one attached prefix. The keyword that occurs first in the
// text wins.
func CanonicalizeProduct(input string) (Product, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return ProductGeneral, false
	}

	for _, p := range allProducts {
		if normalized == string(p) {
			return p, true
		}
	}

	tokens := productTokens(normalized)
	for i := range tokens {
		for _, kw := range productKeywords {
			if matchesAt(tokens, i, strings.Fields(kw.keyword)) {
				return kw.product, true
			}
		}
	}
	return ProductGeneral, false
}

// productTokens splits on anything but letters, keeping inner quotes so
// abbreviations like חו"ל stay one token.
func productTokens(s string) []string {
	raw := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '"' && r != '\''
	})
	out := raw[:0]
	for _, t := range raw {
		if t = strings.Trim(t, `"'`); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func matchesAt(tokens []string, i int, words []string) bool {
	if len(words) == 0 || i+len(words) > len(tokens) {
		return false
	}
	if !tokenMatches(tokens[i], words[0]) {
		return false
	}
	for j := 1; j < len(words); j++ {
		if tokens[i+j] != words[j] {
			return false
		}
	}
	return true
}

func tokenMatches(token, keyword string) bool {
	if token == keyword {
		return true
	}
	if isASCII(keyword) {
		return false
	}
	for _, p := range hebrewPrefixes {
		if strings.TrimPrefix(token, p) == keyword && len(token) > len(p) {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
