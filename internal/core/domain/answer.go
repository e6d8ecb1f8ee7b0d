package domain

import "time"

// Confidence is derived from the number of verified candidates, never
// asserted by the model.
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ConfidenceFor maps the verified candidate count to a confidence tier.
func ConfidenceFor(verifiedCount int) Confidence {
	switch {
	case verifiedCount <= 0:
		return ConfidenceNone
	case verifiedCount == 1:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

type Citation struct {
	PassageID string `json:"passage_id"`
	Article   string `json:"article"`
	Excerpt   string `json:"excerpt"`
}

type Answer struct {
	Text       string     `json:"text"`
	Citations  []Citation `json:"citations"`
	Confidence Confidence `json:"confidence"`
}

type ClarificationRequest struct {
	Questions []string `json:"questions"`
	Reasoning string   `json:"reasoning"`
}

// TurnState is the orchestrator state reached when the turn finished.
type TurnState string

const (
	StateStart        TurnState = "start"
	StateClassifying  TurnState = "classifying"
	StateClarifying   TurnState = "clarifying"
	StateRetrieving   TurnState = "retrieving"
	StateVerifying    TurnState = "verifying"
	StateSynthesizing TurnState = "synthesizing"
	StateDone         TurnState = "done"
	StateFailed       TurnState = "failed"
)

// TurnResult is the outcome of one HandleTurn call. Exactly one of Answer
// and Clarification is set on success.
type TurnResult struct {
	ConversationID string                `json:"conversation_id"`
	State          TurnState             `json:"state"`
	Intent         Intent                `json:"intent"`
	Domain         LawCategory           `json:"domain"`
	Answer         *Answer               `json:"answer,omitempty"`
	Clarification  *ClarificationRequest `json:"clarification,omitempty"`
	Retrieved      int                   `json:"retrieved"`
	Verified       int                   `json:"verified"`
}

// TurnAudit is the per-turn record published to the audit trail.
type TurnAudit struct {
	ConversationID string      `json:"conversation_id"`
	Seq            int         `json:"seq"`
	State          TurnState   `json:"state"`
	Intent         Intent      `json:"intent"`
	Domain         LawCategory `json:"domain"`
	Confidence     Confidence  `json:"confidence"`
	Retrieved      int         `json:"retrieved"`
	Verified       int         `json:"verified"`
	CreatedAt      time.Time   `json:"created_at"`
}
