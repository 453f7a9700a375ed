package fields

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
)

// DateOrder resolves ambiguous numeric dates like 03/04/2024.
type DateOrder string

const (
	MonthFirst DateOrder = "mdy"
	DayFirst   DateOrder = "dmy"
)

// Options carries rule-set wide settings into normalizers.
type Options struct {
	DateOrder DateOrder
}

// Normalized is a coerced capture.
type Normalized struct {
	Text   string
	Number float64
	Kind   Kind
}

// Normalizer coerces a raw capture. An error means the rule did not match.
type Normalizer func(raw string, opts Options) (Normalized, error)

var normalizers = map[string]Normalizer{
	"text":       normalizeText,
	"upper":      normalizeUpper,
	"insurer":    normalizeInsurer,
	"identifier": normalizeIdentifier,
	"money":      normalizeMoney,
	"date":       normalizeDate,
	"email":      normalizeEmail,
	"phone":      normalizePhone,
	"address":    normalizeAddress,
	"product":    normalizeProduct,
}

// LookupNormalizer returns the normalizer registered under name.
func LookupNormalizer(name string) (Normalizer, bool) {
	n, ok := normalizers[name]
	return n, ok
}

const maxTextRunes = 200

var reSpaces = regexp.MustCompile(`\s+`)

func cleanText(raw string) string {
	s := reSpaces.ReplaceAllString(strings.TrimSpace(raw), " ")
	s = strings.TrimRight(s, " .,;:|-–_")
	s = strings.TrimLeft(s, " .,;:|-–_")
	if utf8.RuneCountInString(s) > maxTextRunes {
		s = string([]rune(s)[:maxTextRunes])
	}
	return strings.TrimSpace(s)
}

func normalizeText(raw string, _ Options) (Normalized, error) {
	s := cleanText(raw)
	if s == "" || !strings.ContainsFunc(s, unicode.IsLetter) {
		return Normalized{}, common.MalformedField("text", raw)
	}
	return Normalized{Text: s}, nil
}

func normalizeUpper(raw string, opts Options) (Normalized, error) {
	n, err := normalizeText(raw, opts)
	if err != nil {
		return n, err
	}
	n.Text = strings.ToUpper(n.Text)
	return n, nil
}

// Corporate suffixes dropped from insurer names, longest first.
var insurerSuffixes = []string{
	"property and casualty insurance company",
	"insurance company of america",
	"insurance company",
	"insurance co.",
	"insurance co",
	"insurance group",
	"insurance",
	"companies",
	"company",
	"corporation",
	"corp.",
	"corp",
	"inc.",
	"inc",
	"llc",
	"ltd.",
	"ltd",
	"חברה לביטוח",
	"לביטוח",
	"בע\"מ",
	"ביטוח",
}

func normalizeInsurer(raw string, opts Options) (Normalized, error) {
	n, err := normalizeText(raw, opts)
	if err != nil {
		return n, err
	}
	s := n.Text
	for changed := true; changed; {
		changed = false
		lower := strings.ToLower(s)
		for _, suf := range insurerSuffixes {
			if strings.HasSuffix(lower, " "+suf) {
				s = cleanText(s[:len(s)-len(suf)])
				changed = true
				break
			}
		}
	}
	if s == "" {
		return Normalized{}, common.MalformedField("insurer", raw)
	}
	return Normalized{Text: strings.ToUpper(s)}, nil
}

func normalizeIdentifier(raw string, _ Options) (Normalized, error) {
	s := strings.Trim(strings.TrimSpace(raw), ".,;:()[]{}\"'")
	if s == "" || !strings.ContainsFunc(s, unicode.IsDigit) {
		return Normalized{}, common.MalformedField("identifier", raw)
	}
	return Normalized{Text: strings.ToUpper(s)}, nil
}

// Currency markers removed before parsing, longer tokens first.
var currencyTokens = []string{
	"us$", "usd", "ils", "nis", "eur", "gbp",
	"ש\"ח", "ש״ח", "שקלים", "שקל",
	"$", "₪", "€", "£",
}

var reAmount = regexp.MustCompile(`^\d+(\.\d+)?$`)

// normalizeMoney parses "$1,234.50", "1.234,50 €" or "150 ש\"ח". N/A, empty
// and negative amounts are rejected.
func normalizeMoney(raw string, _ Options) (Normalized, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, tok := range currencyTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	s = strings.Join(strings.Fields(s), "")
	s = strings.TrimSuffix(s, ".")
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "(") {
		return Normalized{}, common.MalformedField("money", raw)
	}

	lastComma, lastDot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case lastComma > lastDot && lastDot >= 0:
		// 1.234,50
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma > lastDot && strings.Count(s, ",") == 1 && len(s)-lastComma-1 == 2:
		// 150,50
		s = strings.Replace(s, ",", ".", 1)
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	if !reAmount.MatchString(s) {
		return Normalized{}, common.MalformedField("money", raw)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Normalized{}, common.MalformedField("money", raw)
	}
	return Normalized{Text: strconv.FormatFloat(v, 'f', -1, 64), Number: v, Kind: KindMoney}, nil
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
	"ינואר": time.January, "פברואר": time.February, "מרץ": time.March, "מרס": time.March,
	"אפריל": time.April, "מאי": time.May, "יוני": time.June, "יולי": time.July,
	"אוגוסט": time.August, "ספטמבר": time.September, "אוקטובר": time.October,
	"נובמבר": time.November, "דצמבר": time.December,
}

var (
	reISODate     = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	reNumericDate = regexp.MustCompile(`^(\d{1,2})([/.\-])(\d{1,2})[/.\-](\d{2}|\d{4})$`)
	reOrdinal     = regexp.MustCompile(`(\d)(st|nd|rd|th)\b`)
)

// normalizeDate returns YYYY-MM-DD. Numeric dates follow opts.DateOrder,
// except dotted dates which are always day first.
func normalizeDate(raw string, opts Options) (Normalized, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimSuffix(s, ".")
	s = reOrdinal.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, ",", " ")
	s = strings.Join(strings.Fields(s), " ")

	var y, m, d int
	switch {
	case reISODate.MatchString(s):
		p := reISODate.FindStringSubmatch(s)
		y, m, d = atoi(p[1]), atoi(p[2]), atoi(p[3])
	case reNumericDate.MatchString(s):
		p := reNumericDate.FindStringSubmatch(s)
		a, b := atoi(p[1]), atoi(p[3])
		y = expandYear(p[4])
		if opts.DateOrder == DayFirst || p[2] == "." {
			d, m = a, b
		} else {
			m, d = a, b
		}
		if m > 12 && d <= 12 {
			m, d = d, m
		}
	default:
		var ok bool
		y, m, d, ok = writtenDate(s)
		if !ok {
			return Normalized{}, common.MalformedField("date", raw)
		}
	}

	if y < 1900 || y > 2100 || m < 1 || m > 12 || d < 1 {
		return Normalized{}, common.MalformedField("date", raw)
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		// Feb 30 and friends roll over in time.Date
		return Normalized{}, common.MalformedField("date", raw)
	}
	return Normalized{Text: t.Format("2006-01-02"), Kind: KindDate}, nil
}

// writtenDate handles "january 15 2024", "15 jan 2024" and "15 בינואר 2024".
func writtenDate(s string) (y, m, d int, ok bool) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	month := func(tok string) (time.Month, bool) {
		tok = strings.TrimSuffix(tok, ".")
		if mo, ok := months[tok]; ok {
			return mo, true
		}
		// Hebrew "בינואר" = "in January"
		if r, size := utf8.DecodeRuneInString(tok); r == 'ב' {
			mo, ok := months[tok[size:]]
			return mo, ok
		}
		return 0, false
	}
	if mo, found := month(parts[0]); found {
		return atoi(parts[2]), int(mo), atoi(parts[1]), isDigits(parts[1]) && isDigits(parts[2])
	}
	if mo, found := month(parts[1]); found {
		return atoi(parts[2]), int(mo), atoi(parts[0]), isDigits(parts[0]) && isDigits(parts[2])
	}
	return 0, 0, 0, false
}

func expandYear(s string) int {
	y := atoi(s)
	if len(s) == 2 {
		if y < 70 {
			return 2000 + y
		}
		return 1900 + y
	}
	return y
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

func isDigits(s string) bool {
	return s != "" && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) == -1
}

var reEmail = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

func normalizeEmail(raw string, _ Options) (Normalized, error) {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(raw), ".,;:<>()[]"))
	if !reEmail.MatchString(s) {
		return Normalized{}, common.MalformedField("email", raw)
	}
	return Normalized{Text: s}, nil
}

func normalizePhone(raw string, _ Options) (Normalized, error) {
	s := strings.Trim(reSpaces.ReplaceAllString(strings.TrimSpace(raw), " "), ".,;:")
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' || r == '-' || r == '(' || r == ')' || r == '.' || r == ' ':
		default:
			return Normalized{}, common.MalformedField("phone", raw)
		}
	}
	if digits < 7 || digits > 15 {
		return Normalized{}, common.MalformedField("phone", raw)
	}
	return Normalized{Text: s}, nil
}

func normalizeAddress(raw string, opts Options) (Normalized, error) {
	n, err := normalizeText(raw, opts)
	if err != nil {
		return n, err
	}
	if strings.Contains(n.Text, "@") {
		return Normalized{}, common.MalformedField("address", raw)
	}
	return n, nil
}

func normalizeProduct(raw string, opts Options) (Normalized, error) {
	n, err := normalizeText(raw, opts)
	if err != nil {
		return n, err
	}
	if p, ok := constants.CanonicalizeProduct(n.Text); ok {
		return Normalized{Text: p.Display()}, nil
	}
	return n, nil
}
