package fields

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

//go:embed rules/*.yaml
var embeddedRules embed.FS

// Rule maps one pattern onto one field. Rules for the same field are tried
// in file order; the first that matches and normalizes wins.
type Rule struct {
	Name       string `yaml:"name"`
	Field      string `yaml:"field"`
	Pattern    string `yaml:"pattern"`
	Normalizer string `yaml:"normalizer"`
	Fuzzy      bool   `yaml:"fuzzy"`
}

// SectionRule captures structured sub-data with named groups:
// name/amount for coverage, item for exclusions, number/title for chapters.
type SectionRule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// RuleSet is the data behind one language variant.
type RuleSet struct {
	Language   string            `yaml:"language"`
	DateOrder  DateOrder         `yaml:"date_order"`
	Macros     map[string]string `yaml:"macros"`
	Rules      []Rule            `yaml:"rules"`
	Coverage   []SectionRule     `yaml:"coverage"`
	Exclusions []SectionRule     `yaml:"exclusions"`
	Chapters   []SectionRule     `yaml:"chapters"`
}

// ParseRuleSet decodes a YAML rule table.
func ParseRuleSet(data []byte) (RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("decode rule set: %w", err)
	}
	if rs.Language == "" {
		return RuleSet{}, fmt.Errorf("rule set has no language")
	}
	if rs.DateOrder == "" {
		rs.DateOrder = MonthFirst
	}
	return rs, nil
}

// LoadRuleSetFile reads a rule table from disk, for tables maintained
// outside the binary.
func LoadRuleSetFile(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read rule set: %w", err)
	}
	return ParseRuleSet(data)
}

// EmbeddedRuleSet returns the built-in table for a language code ("en", "he").
func EmbeddedRuleSet(code string) (RuleSet, error) {
	data, err := embeddedRules.ReadFile("rules/" + code + ".yaml")
	if err != nil {
		return RuleSet{}, fmt.Errorf("no built-in rules for %q: %w", code, err)
	}
	return ParseRuleSet(data)
}

// expand substitutes {{NAME}} macros. Macros may reference earlier macros
// only through a second pass, which keeps expansion bounded.
func (rs RuleSet) expand(pattern string) string {
	if len(rs.Macros) == 0 || !strings.Contains(pattern, "{{") {
		return pattern
	}
	names := make([]string, 0, len(rs.Macros))
	for k := range rs.Macros {
		names = append(names, k)
	}
	sort.Strings(names)
	for pass := 0; pass < 2; pass++ {
		for _, k := range names {
			pattern = strings.ReplaceAll(pattern, "{{"+k+"}}", "(?:"+rs.Macros[k]+")")
		}
	}
	return pattern
}
