package domain

import "time"

type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	CurrentSeq     int       `json:"current_seq"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Turn is one entry of the append-only conversation log. Past turns are
// never mutated.
type Turn struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Seq            int       `json:"seq"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
