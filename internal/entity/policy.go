package entity

// PolicyRecord is the normalized result of one extraction call. Every field
// is populated; absent values carry their documented defaults.
type PolicyRecord struct {
	DocumentID           string           `json:"document_id"`
	Insurer              string           `json:"insurer"`
	ProductType          string           `json:"product_type"`
	PolicyNumber         string           `json:"policy_number"`
	OwnerName            string           `json:"owner_name"`
	StartDate            string           `json:"start_date"` // YYYY-MM-DD
	EndDate              string           `json:"end_date"`   // YYYY-MM-DD
	PremiumMonthly       float64          `json:"premium_monthly"`
	PremiumAnnual        float64          `json:"premium_annual"`
	Deductible           float64          `json:"deductible"`
	CoverageLimit        float64          `json:"coverage_limit"`
	ContactEmail         string           `json:"contact_email"`
	ContactPhone         string           `json:"contact_phone"`
	ContactAddress       string           `json:"contact_address"`
	AgentName            string           `json:"agent_name"`
	AgentContact         string           `json:"agent_contact"`
	PolicyLanguage       string           `json:"policy_language"` // he | en | unknown
	OriginalFilename     string           `json:"original_filename"`
	DocumentType         string           `json:"document_type"`
	ExtractionConfidence float64          `json:"extraction_confidence"`
	NeedsReview          bool             `json:"needs_review"`
	Notes                string           `json:"notes"`
	CoverageDetails      *CoverageDetails `json:"coverage_details"`
	PolicyChapters       *PolicyChapters  `json:"policy_chapters"`
}

// CoverageItem is one named coverage line, e.g. "Dwelling: $350,000".
type CoverageItem struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// CoverageDetails groups coverage lines by normalized name plus listed exclusions.
type CoverageDetails struct {
	Coverages  map[string]CoverageItem `json:"coverages,omitempty"`
	Exclusions []string                `json:"exclusions,omitempty"`
}

type Chapter struct {
	Number string `json:"number"`
	Title  string `json:"title"`
}

// PolicyChapters lists chapter or section headings in document order.
type PolicyChapters struct {
	Chapters []Chapter `json:"chapters"`
	Count    int       `json:"count"`
}
