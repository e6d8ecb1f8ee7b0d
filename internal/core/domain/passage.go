package domain

// LawCategory is the legal domain a passage or a question belongs to.
type LawCategory string

const (
	CategoryCivil          LawCategory = "civil"
	CategoryCriminal       LawCategory = "criminal"
	CategoryAdministrative LawCategory = "administrative"
	CategoryLabor          LawCategory = "labor"
	CategoryTax            LawCategory = "tax"
	CategoryOther          LawCategory = "other"
)

// ParseLawCategory maps free-form category text to the enum.
// Unknown values fall back to CategoryOther, never an error.
func ParseLawCategory(raw string) LawCategory {
	switch LawCategory(raw) {
	case CategoryCivil, CategoryCriminal, CategoryAdministrative, CategoryLabor, CategoryTax, CategoryOther:
		return LawCategory(raw)
	default:
		return CategoryOther
	}
}

// Passage is one retrievable unit of statute text. It is created at
// ingestion time and never mutated by the pipeline.
type Passage struct {
	ID        string      `json:"id"`
	Category  LawCategory `json:"category"`
	Article   string      `json:"article"`
	Text      string      `json:"text"`
	Language  string      `json:"language"`
	Keywords  []string    `json:"keywords,omitempty"`
	CrossRefs []string    `json:"cross_refs,omitempty"`
}

// SearchFilter narrows retrieval to one law category.
type SearchFilter struct {
	Category LawCategory
}

// Candidate is a passage paired with a stage-local relevance score.
// Scores are comparable within one stage, not across stages.
type Candidate struct {
	Passage Passage `json:"passage"`
	Score   float64 `json:"score"`
}

// VerifiedCandidate is a candidate that passed the relevance gate.
// Justification is kept for audit only and is never shown to the user.
type VerifiedCandidate struct {
	Candidate
	Justification string `json:"justification"`
}
