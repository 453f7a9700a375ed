package confidence

import (
	"github.com/joseph-ayodele/policy-extractor/internal/core/fields"
)

const (
	DefaultFuzzyWeight     = 0.5
	DefaultReviewThreshold = 0.6
)

// DefaultRequiredFields are the fields downstream comparison relies on.
var DefaultRequiredFields = []string{
	fields.Insurer,
	fields.PolicyNumber,
	fields.PremiumMonthly,
	fields.StartDate,
	fields.EndDate,
}

type Config struct {
	RequiredFields  []string
	FuzzyWeight     float64 // weight of a fuzzy or derived match, 0..1
	ReviewThreshold float64 // scores below this need manual review
}

// Scorer computes extraction confidence. It is stateless and deterministic.
type Scorer struct {
	required []string
	fuzzy    float64
	review   float64
}

// NewScorer fills zero values with defaults. An explicitly empty (non-nil)
// required list is kept and scores everything 0.
func NewScorer(cfg Config) *Scorer {
	required := cfg.RequiredFields
	if required == nil {
		required = DefaultRequiredFields
	}
	fuzzy := cfg.FuzzyWeight
	if fuzzy <= 0 || fuzzy > 1 {
		fuzzy = DefaultFuzzyWeight
	}
	review := cfg.ReviewThreshold
	if review <= 0 || review > 1 {
		review = DefaultReviewThreshold
	}
	return &Scorer{
		required: append([]string(nil), required...),
		fuzzy:    fuzzy,
		review:   review,
	}
}

// Score is the weighted share of required fields present in f, in [0,1].
func (s *Scorer) Score(f fields.Fields) float64 {
	if len(s.required) == 0 {
		return 0
	}
	var sum float64
	for _, name := range s.required {
		v, ok := f[name]
		if !ok {
			continue
		}
		if v.Fuzzy {
			sum += s.fuzzy
		} else {
			sum += 1
		}
	}
	return clamp(sum / float64(len(s.required)))
}

func (s *Scorer) NeedsReview(score float64) bool {
	return score < s.review
}

func (s *Scorer) RequiredFields() []string {
	return append([]string(nil), s.required...)
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
