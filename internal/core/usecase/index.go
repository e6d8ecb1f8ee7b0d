package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/ports"
)

type passageSplitter interface {
	SplitPassage(passage domain.Passage) []domain.Passage
}

// IndexPassagesUseCase persists ingested passages and pushes them into
// the vector index. Over-long articles are split before embedding so
// every indexed passage fits the embedding window.
type IndexPassagesUseCase struct {
	embedder ports.Embedder
	vectors  ports.VectorStore
	store    ports.PassageWriter
	splitter passageSplitter
	refs     ports.CrossReferenceWriter
	logger   *slog.Logger
}

func NewIndexPassagesUseCase(
	embedder ports.Embedder,
	vectors ports.VectorStore,
	store ports.PassageWriter,
	splitter passageSplitter,
	refs ports.CrossReferenceWriter,
	logger *slog.Logger,
) *IndexPassagesUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexPassagesUseCase{
		embedder: embedder,
		vectors:  vectors,
		store:    store,
		splitter: splitter,
		refs:     refs,
		logger:   logger,
	}
}

func (uc *IndexPassagesUseCase) IndexPassages(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	prepared := make([]domain.Passage, 0, len(passages))
	for _, passage := range passages {
		if strings.TrimSpace(passage.ID) == "" || strings.TrimSpace(passage.Text) == "" {
			return domain.WrapError(domain.ErrInvalidInput, "index passages",
				fmt.Errorf("passage id and text are required"))
		}
		if uc.splitter != nil {
			prepared = append(prepared, uc.splitter.SplitPassage(passage)...)
			continue
		}
		prepared = append(prepared, passage)
	}

	if uc.store != nil {
		if err := uc.store.UpsertPassages(ctx, prepared); err != nil {
			return fmt.Errorf("persist passages: %w", err)
		}
	}

	texts := make([]string, 0, len(prepared))
	for _, passage := range prepared {
		texts = append(texts, passage.Text)
	}
	vectors, err := uc.embedder.EmbedPassages(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed passages: %w", err)
	}
	if len(vectors) != len(prepared) {
		return fmt.Errorf("embedding count mismatch: %d passages, %d vectors", len(prepared), len(vectors))
	}

	if err := uc.vectors.IndexPassages(ctx, prepared, vectors); err != nil {
		return fmt.Errorf("index passages: %w", err)
	}

	// Citation edges feed retrieval-time expansion; a graph outage must
	// not fail ingestion.
	if uc.refs != nil {
		for _, passage := range prepared {
			if len(passage.CrossRefs) == 0 {
				continue
			}
			if err := uc.refs.UpsertReferences(ctx, passage.ID, passage.CrossRefs); err != nil {
				uc.logger.Warn("cross reference upsert failed",
					"passage_id", passage.ID,
					"error", err,
				)
			}
		}
	}
	return nil
}
