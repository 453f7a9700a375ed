package fields

import "sort"

// Canonical field names.
const (
	Insurer        = "insurer"
	ProductType    = "product_type"
	PolicyNumber   = "policy_number"
	OwnerName      = "owner_name"
	StartDate      = "start_date"
	EndDate        = "end_date"
	PremiumMonthly = "premium_monthly"
	PremiumAnnual  = "premium_annual"
	Deductible     = "deductible"
	CoverageLimit  = "coverage_limit"
	ContactEmail   = "contact_email"
	ContactPhone   = "contact_phone"
	ContactAddress = "contact_address"
	AgentName      = "agent_name"
	AgentContact   = "agent_contact"
)

// Known lists every field a rule may target.
var Known = []string{
	Insurer, ProductType, PolicyNumber, OwnerName, StartDate, EndDate,
	PremiumMonthly, PremiumAnnual, Deductible, CoverageLimit,
	ContactEmail, ContactPhone, ContactAddress, AgentName, AgentContact,
}

func isKnown(field string) bool {
	for _, k := range Known {
		if k == field {
			return true
		}
	}
	return false
}

type Kind int

const (
	KindText Kind = iota
	KindMoney
	KindDate
)

// Value is one extracted field. Text holds the normalized string form
// (ISO date for KindDate); Number is set for KindMoney.
type Value struct {
	Field  string
	Raw    string
	Text   string
	Number float64
	Kind   Kind
	Rule   string
	Fuzzy  bool
}

// Fields maps field name to its extracted value. Missing keys are unmatched.
type Fields map[string]Value

func (f Fields) Has(name string) bool {
	_, ok := f[name]
	return ok
}

func (f Fields) Text(name string) string {
	return f[name].Text
}

func (f Fields) Number(name string) (float64, bool) {
	v, ok := f[name]
	if !ok || v.Kind != KindMoney {
		return 0, false
	}
	return v.Number, true
}

// Names returns matched field names in sorted order.
func (f Fields) Names() []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
