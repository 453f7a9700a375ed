package fields

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

type compiledRule struct {
	Rule
	re        *regexp.Regexp
	normalize Normalizer
}

type compiledSection struct {
	SectionRule
	re *regexp.Regexp
}

// Engine applies a RuleSet. It is immutable after construction and safe for
// concurrent use.
type Engine struct {
	set        RuleSet
	opts       Options
	rules      []compiledRule
	coverage   []compiledSection
	exclusions []compiledSection
	chapters   []compiledSection
}

// NewEngine compiles every pattern of rs. Matching is always case-insensitive.
func NewEngine(rs RuleSet) (*Engine, error) {
	e := &Engine{set: rs, opts: Options{DateOrder: rs.DateOrder}}
	for _, r := range rs.Rules {
		if !isKnown(r.Field) {
			return nil, fmt.Errorf("rule %q: unknown field %q", r.Name, r.Field)
		}
		norm, ok := LookupNormalizer(r.Normalizer)
		if !ok {
			return nil, fmt.Errorf("rule %q: unknown normalizer %q", r.Name, r.Normalizer)
		}
		re, err := compile(rs, r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		e.rules = append(e.rules, compiledRule{Rule: r, re: re, normalize: norm})
	}

	var err error
	if e.coverage, err = compileSections(rs, rs.Coverage, "name", "amount"); err != nil {
		return nil, err
	}
	if e.exclusions, err = compileSections(rs, rs.Exclusions, "item"); err != nil {
		return nil, err
	}
	if e.chapters, err = compileSections(rs, rs.Chapters, "number", "title"); err != nil {
		return nil, err
	}
	return e, nil
}

func compile(rs RuleSet, pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	return regexp.Compile("(?i)" + rs.expand(pattern))
}

func compileSections(rs RuleSet, in []SectionRule, groups ...string) ([]compiledSection, error) {
	out := make([]compiledSection, 0, len(in))
	for _, s := range in {
		re, err := compile(rs, s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("section rule %q: %w", s.Name, err)
		}
		for _, g := range groups {
			if re.SubexpIndex(g) < 0 {
				return nil, fmt.Errorf("section rule %q: missing named group %q", s.Name, g)
			}
		}
		out = append(out, compiledSection{SectionRule: s, re: re})
	}
	return out, nil
}

// RuleSet returns the table the engine was built from.
func (e *Engine) RuleSet() RuleSet { return e.set }

// Extract runs every rule in order. A field keeps the first value whose
// capture normalizes; later rules for that field are skipped.
func (e *Engine) Extract(text string) Fields {
	out := Fields{}
	for _, r := range e.rules {
		if out.Has(r.Field) {
			continue
		}
		if v, ok := e.apply(r, text); ok {
			out[r.Field] = v
		}
	}
	derivePremiums(out)
	return out
}

// MatchRule applies a single named rule, for inspecting rule tables.
func (e *Engine) MatchRule(name, text string) (Value, bool) {
	for _, r := range e.rules {
		if r.Name == name {
			return e.apply(r, text)
		}
	}
	return Value{}, false
}

func (e *Engine) apply(r compiledRule, text string) (Value, bool) {
	for _, m := range r.re.FindAllStringSubmatch(text, -1) {
		raw := capture(r.re, m)
		n, err := r.normalize(raw, e.opts)
		if err != nil {
			continue
		}
		return Value{
			Field:  r.Field,
			Raw:    strings.TrimSpace(raw),
			Text:   n.Text,
			Number: n.Number,
			Kind:   n.Kind,
			Rule:   r.Name,
			Fuzzy:  r.Fuzzy,
		}, true
	}
	return Value{}, false
}

// capture prefers a group named "value", then group 1, then the whole match.
func capture(re *regexp.Regexp, m []string) string {
	if i := re.SubexpIndex("value"); i > 0 && i < len(m) {
		return m[i]
	}
	if len(m) > 1 {
		return m[1]
	}
	return m[0]
}

// derivePremiums fills the missing half of a monthly/annual pair.
func derivePremiums(f Fields) {
	monthly, hasMonthly := f.Number(PremiumMonthly)
	annual, hasAnnual := f.Number(PremiumAnnual)
	switch {
	case hasMonthly && !hasAnnual:
		f[PremiumAnnual] = derived(PremiumAnnual, round2(monthly*12), PremiumMonthly)
	case hasAnnual && !hasMonthly:
		f[PremiumMonthly] = derived(PremiumMonthly, round2(annual/12), PremiumAnnual)
	}
}

func derived(field string, v float64, from string) Value {
	return Value{
		Field:  field,
		Text:   fmt.Sprintf("%.2f", v),
		Number: v,
		Kind:   KindMoney,
		Rule:   "derived:" + from,
		Fuzzy:  true,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Sections extracts coverage lines, exclusions and chapter headings.
// Each result is nil when nothing matched.
func (e *Engine) Sections(text string) (*entity.CoverageDetails, *entity.PolicyChapters) {
	var cov *entity.CoverageDetails
	for _, s := range e.coverage {
		for _, m := range s.re.FindAllStringSubmatch(text, -1) {
			name := cleanText(m[s.re.SubexpIndex("name")])
			amount, err := normalizeMoney(m[s.re.SubexpIndex("amount")], e.opts)
			if name == "" || err != nil {
				continue
			}
			key := coverageKey(name)
			if cov == nil {
				cov = &entity.CoverageDetails{}
			}
			if cov.Coverages == nil {
				cov.Coverages = map[string]entity.CoverageItem{}
			}
			if _, seen := cov.Coverages[key]; !seen {
				cov.Coverages[key] = entity.CoverageItem{Amount: amount.Number, Description: name}
			}
		}
	}

	seen := map[string]struct{}{}
	for _, s := range e.exclusions {
		for _, m := range s.re.FindAllStringSubmatch(text, -1) {
			for _, item := range strings.Split(m[s.re.SubexpIndex("item")], ";") {
				item = cleanText(item)
				if item == "" {
					continue
				}
				if _, dup := seen[strings.ToLower(item)]; dup {
					continue
				}
				seen[strings.ToLower(item)] = struct{}{}
				if cov == nil {
					cov = &entity.CoverageDetails{}
				}
				cov.Exclusions = append(cov.Exclusions, item)
			}
		}
	}

	var chapters *entity.PolicyChapters
	for _, s := range e.chapters {
		for _, m := range s.re.FindAllStringSubmatch(text, -1) {
			title := cleanText(m[s.re.SubexpIndex("title")])
			if title == "" {
				continue
			}
			if chapters == nil {
				chapters = &entity.PolicyChapters{}
			}
			chapters.Chapters = append(chapters.Chapters, entity.Chapter{
				Number: strings.ToUpper(strings.TrimSpace(m[s.re.SubexpIndex("number")])),
				Title:  title,
			})
		}
	}
	if chapters != nil {
		chapters.Count = len(chapters.Chapters)
	}
	return cov, chapters
}

func coverageKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}
