package ports

import (
	"context"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
)

// Embedder maps text to fixed-length vectors. Query and passage modes use
// different instruction prefixes (asymmetric encoding).
type Embedder interface {
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore indexes passages and serves both retrieval signals.
type VectorStore interface {
	IndexPassages(ctx context.Context, passages []domain.Passage, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.Candidate, error)
	SearchLexical(ctx context.Context, queryText string, limit int, filter domain.SearchFilter) ([]domain.Candidate, error)
}

// PassageStore reads the durable passage corpus.
type PassageStore interface {
	GetByID(ctx context.Context, id string) (*domain.Passage, error)
}

// PassageWriter persists passages at ingestion time. The retrieval
// pipeline never writes.
type PassageWriter interface {
	UpsertPassages(ctx context.Context, passages []domain.Passage) error
}

// Generator is the LLM text generation call. Each caller applies its own
// temperature policy.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
	GenerateJSON(ctx context.Context, prompt string, temperature float64) (string, error)
}

// ConversationStore is the append-only, ordered turn log. Past turns are
// never mutated.
type ConversationStore interface {
	EnsureConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
	NextSeq(ctx context.Context, conversationID string) (int, error)
	AppendTurn(ctx context.Context, turn domain.Turn) error
	ListRecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.Turn, error)
}

// CrossReferenceStore resolves statute cross-references for candidate
// expansion. Implementations back onto the citation graph.
type CrossReferenceStore interface {
	Related(ctx context.Context, passageID string, limit int) ([]string, error)
}

// CrossReferenceWriter records citation edges at ingestion time.
type CrossReferenceWriter interface {
	UpsertReferences(ctx context.Context, passageID string, refs []string) error
}

// AuditTrail records per-turn pipeline outcomes for offline inspection.
type AuditTrail interface {
	PublishTurnAudit(ctx context.Context, audit domain.TurnAudit) error
}
