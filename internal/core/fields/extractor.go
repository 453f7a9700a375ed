package fields

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/policy-extractor/internal/core/language"
	"github.com/joseph-ayodele/policy-extractor/internal/core/ocr"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// Extractor is one language variant of field extraction.
type Extractor interface {
	Language() language.Tag
	Extract(text string) Fields
	Sections(text string) (*entity.CoverageDetails, *entity.PolicyChapters)
	Rules() RuleSet
}

type variant struct {
	tag    language.Tag
	engine *Engine
	prep   func(string) string
}

func (v *variant) Language() language.Tag { return v.tag }
func (v *variant) Rules() RuleSet         { return v.engine.RuleSet() }

func (v *variant) Extract(text string) Fields {
	return v.engine.Extract(v.prep(text))
}

func (v *variant) Sections(text string) (*entity.CoverageDetails, *entity.PolicyChapters) {
	return v.engine.Sections(v.prep(text))
}

var englishPunct = strings.NewReplacer(
	"‘", "'", "’", "'", "“", `"`, "”", `"`,
	"–", "-", "—", "-",
)

// NewEnglishExtractor builds the English variant from the built-in rules.
func NewEnglishExtractor() (Extractor, error) {
	return newVariant(language.English, "en", englishPunct.Replace)
}

var hebrewPunct = strings.NewReplacer(
	"״", `"`, // gershayim
	"׳", "'", // geresh
	"־", "-", // maqaf
	"“", `"`, "”", `"`, "’", "'",
	"–", "-", "—", "-",
)

// NewHebrewExtractor builds the Hebrew variant from the built-in rules.
func NewHebrewExtractor() (Extractor, error) {
	return newVariant(language.Hebrew, "he", prepHebrew)
}

func prepHebrew(s string) string {
	s = hebrewPunct.Replace(s)
	// niqqud and cantillation
	return strings.Map(func(r rune) rune {
		if r >= 0x0591 && r <= 0x05C7 && r != 0x05BE && r != 0x05C0 && r != 0x05C3 && r != 0x05C6 {
			return -1
		}
		return r
	}, s)
}

func newVariant(tag language.Tag, code string, prep func(string) string) (Extractor, error) {
	rs, err := EmbeddedRuleSet(code)
	if err != nil {
		return nil, err
	}
	return NewExtractor(tag, rs, prep)
}

// NewExtractor builds a variant from an arbitrary rule set, e.g. one loaded
// with LoadRuleSetFile. A nil prep leaves text unchanged.
func NewExtractor(tag language.Tag, rs RuleSet, prep func(string) string) (Extractor, error) {
	eng, err := NewEngine(rs)
	if err != nil {
		return nil, fmt.Errorf("%s rules: %w", rs.Language, err)
	}
	if prep == nil {
		prep = func(s string) string { return s }
	}
	return &variant{tag: tag, engine: eng, prep: prep}, nil
}

// Scorer rates a field set; the Selector uses it to arbitrate Unknown text.
type Scorer interface {
	Score(Fields) float64
}

// Selection is what the Selector produced for one document.
type Selection struct {
	Fields   Fields
	Variant  language.Tag
	Coverage *entity.CoverageDetails
	Chapters *entity.PolicyChapters
}

// Selector routes text to a language variant.
type Selector struct {
	english Extractor
	hebrew  Extractor
	scorer  Scorer
	logger  *slog.Logger
}

func NewSelector(english, hebrew Extractor, scorer Scorer, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{english: english, hebrew: hebrew, scorer: scorer, logger: logger}
}

// NewDefaultSelector wires both built-in variants.
func NewDefaultSelector(scorer Scorer, logger *slog.Logger) (*Selector, error) {
	en, err := NewEnglishExtractor()
	if err != nil {
		return nil, err
	}
	he, err := NewHebrewExtractor()
	if err != nil {
		return nil, err
	}
	return NewSelector(en, he, scorer, logger), nil
}

// Extract runs the variant for tag. Unknown runs both and keeps the higher
// score, preferring English on a tie.
func (s *Selector) Extract(text string, tag language.Tag) Selection {
	text = ocr.Normalize(text)

	switch tag {
	case language.Hebrew:
		return s.run(s.hebrew, text)
	case language.English:
		return s.run(s.english, text)
	}

	en := s.run(s.english, text)
	he := s.run(s.hebrew, text)
	if s.scorer == nil {
		return en
	}
	enScore, heScore := s.scorer.Score(en.Fields), s.scorer.Score(he.Fields)
	s.logger.Debug("ambiguous language, ran both variants",
		"en_score", enScore, "he_score", heScore)
	if heScore > enScore {
		return he
	}
	return en
}

func (s *Selector) run(x Extractor, text string) Selection {
	f := x.Extract(text)
	cov, ch := x.Sections(text)
	return Selection{Fields: f, Variant: x.Language(), Coverage: cov, Chapters: ch}
}
