package domain

type Intent string

const (
	IntentLegalQuery       Intent = "legal_query"
	IntentDocumentAnalysis Intent = "document_analysis"
	IntentLawyerNeeded     Intent = "lawyer_needed"
	IntentGeneralChat      Intent = "general_chat"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentLegalQuery, IntentDocumentAnalysis, IntentLawyerNeeded, IntentGeneralChat:
		return true
	default:
		return false
	}
}

type Clarity string

const (
	ClarityClear              Clarity = "clear"
	ClarityNeedsClarification Clarity = "needs_clarification"
)

func (c Clarity) Valid() bool {
	return c == ClarityClear || c == ClarityNeedsClarification
}

type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

func (u Urgency) Valid() bool {
	return u == UrgencyHigh || u == UrgencyMedium || u == UrgencyLow
}

// IntentClassification is computed fresh for every turn; the same text can
// classify differently once conversational context accumulates.
type IntentClassification struct {
	Intent  Intent      `json:"intent"`
	Domain  LawCategory `json:"domain"`
	Clarity Clarity     `json:"clarity"`
	Urgency Urgency     `json:"urgency"`
}
