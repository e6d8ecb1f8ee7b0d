package ports

import (
	"context"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
)

// Assistant is the single inbound contract of the pipeline: one user
// message in, an answer or a clarification request out.
type Assistant interface {
	HandleTurn(ctx context.Context, conversationID, userText string) (*domain.TurnResult, error)
}

// PassageIndexer is the inbound contract for (ingestion-time) corpus
// indexing. The retrieval pipeline itself only reads.
type PassageIndexer interface {
	IndexPassages(ctx context.Context, passages []domain.Passage) error
}
