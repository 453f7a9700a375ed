package language

import (
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tag is the detected document language.
type Tag int

const (
	Unknown Tag = iota
	English
	Hebrew
)

// Code is the value written to policy_language.
func (t Tag) Code() string {
	switch t {
	case English:
		return "en"
	case Hebrew:
		return "he"
	default:
		return "unknown"
	}
}

func (t Tag) String() string { return t.Code() }

// ParseTag accepts the codes produced by Code.
func ParseTag(code string) (Tag, bool) {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "en", "english":
		return English, true
	case "he", "iw", "hebrew":
		return Hebrew, true
	case "unknown", "":
		return Unknown, true
	}
	return Unknown, false
}

const (
	DefaultHebrewThreshold = 0.15
	DefaultMinLetters      = 8
	latinDominance         = 0.5
)

var (
	hebrewKeywords  = []string{"ביטוח", "פוליסה", "פרמיה", "מבוטח"}
	englishKeywords = []string{"policy", "insurance", "premium", "insured"}
)

type Config struct {
	HebrewThreshold float64 // share of letters that must be Hebrew
	MinLetters      int     // fewer letters than this is Unknown
}

// Detector classifies text by script proportions with a keyword tie-break.
// It holds no mutable state and is safe for concurrent use.
type Detector struct {
	cfg    Config
	logger *slog.Logger
}

func NewDetector(cfg Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HebrewThreshold <= 0 || cfg.HebrewThreshold >= 1 {
		cfg.HebrewThreshold = DefaultHebrewThreshold
	}
	if cfg.MinLetters <= 0 {
		cfg.MinLetters = DefaultMinLetters
	}
	return &Detector{cfg: cfg, logger: logger}
}

// Counts is the letter census Detect bases its decision on.
type Counts struct {
	Hebrew  int
	Latin   int
	Letters int
}

// Count tallies Hebrew letters (U+05D0..U+05EA), Latin letters and all letters.
func Count(text string) Counts {
	var c Counts
	for _, r := range norm.NFKC.String(text) {
		if !unicode.IsLetter(r) {
			continue
		}
		c.Letters++
		switch {
		case r >= 0x05D0 && r <= 0x05EA:
			c.Hebrew++
		case unicode.Is(unicode.Latin, r):
			c.Latin++
		}
	}
	return c
}

func (d *Detector) Detect(text string) Tag {
	c := Count(text)
	tag := d.classify(text, c)
	d.logger.Debug("language detected", "tag", tag.Code(), "hebrew", c.Hebrew, "latin", c.Latin, "letters", c.Letters)
	return tag
}

func (d *Detector) classify(text string, c Counts) Tag {
	if c.Letters < d.cfg.MinLetters {
		return Unknown
	}
	letters := float64(c.Letters)
	if float64(c.Hebrew)/letters > d.cfg.HebrewThreshold {
		return Hebrew
	}
	if float64(c.Latin)/letters >= latinDominance && c.Latin > c.Hebrew {
		return English
	}

	// neither script dominates: fall back to domain keywords
	lower := strings.ToLower(text)
	he := containsAny(lower, hebrewKeywords)
	en := containsAny(lower, englishKeywords)
	switch {
	case he && !en:
		return Hebrew
	case en && !he:
		return English
	default:
		return Unknown
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
