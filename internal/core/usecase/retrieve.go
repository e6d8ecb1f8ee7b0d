package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/ports"
)

type RetrieverOptions struct {
	CandidateLimit int
	RRFConstant    int
	CrossRefLimit  int
}

// HybridRetriever runs semantic and lexical searches concurrently, fuses
// the rankings and optionally expands the head with statute
// cross-references.
type HybridRetriever struct {
	embedder  ports.Embedder
	vectors   ports.VectorStore
	crossRefs ports.CrossReferenceStore
	passages  ports.PassageStore
	logger    *slog.Logger
	opts      RetrieverOptions
}

func NewHybridRetriever(
	embedder ports.Embedder,
	vectors ports.VectorStore,
	crossRefs ports.CrossReferenceStore,
	passages ports.PassageStore,
	logger *slog.Logger,
	opts RetrieverOptions,
) *HybridRetriever {
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = 30
	}
	if opts.RRFConstant <= 0 {
		opts.RRFConstant = 60
	}
	if opts.CrossRefLimit <= 0 {
		opts.CrossRefLimit = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridRetriever{
		embedder:  embedder,
		vectors:   vectors,
		crossRefs: crossRefs,
		passages:  passages,
		logger:    logger,
		opts:      opts,
	}
}

// Retrieve returns up to topK candidates ordered by relevance. A single
// failed sub-search degrades to the surviving signal; only when both fail
// is the retrieval itself unavailable.
func (r *HybridRetriever) Retrieve(
	ctx context.Context,
	query string,
	topK int,
	filter domain.SearchFilter,
) ([]domain.Candidate, error) {
	if topK <= 0 {
		topK = 5
	}

	var (
		semantic    []domain.Candidate
		lexical     []domain.Candidate
		semanticErr error
		lexicalErr  error
	)

	// Sub-search failures are captured, not returned: the join point below
	// decides whether the surviving signal is enough.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		queryVector, err := r.embedder.EmbedQuery(groupCtx, query)
		if err != nil {
			semanticErr = fmt.Errorf("embed query: %w", err)
			return nil
		}
		semantic, semanticErr = r.vectors.Search(groupCtx, queryVector, r.opts.CandidateLimit, filter)
		return nil
	})
	group.Go(func() error {
		lexical, lexicalErr = r.vectors.SearchLexical(groupCtx, query, r.opts.CandidateLimit, filter)
		return nil
	})
	_ = group.Wait()

	if semanticErr != nil && lexicalErr != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "hybrid retrieve",
			fmt.Errorf("semantic: %v; lexical: %v", semanticErr, lexicalErr))
	}
	if semanticErr != nil {
		r.logger.Warn("semantic search degraded", "error", semanticErr)
		semantic = nil
	}
	if lexicalErr != nil {
		r.logger.Warn("lexical search degraded", "error", lexicalErr)
		lexical = nil
	}

	fused := fuseCandidatesRRF(semantic, lexical, r.opts.RRFConstant)
	if len(fused) == 0 {
		return nil, nil
	}

	fused = trimCandidates(fused, topK)
	fused = r.expandCrossReferences(ctx, fused, filter)
	return trimCandidates(fused, topK), nil
}

// expandCrossReferences inserts passages cited by the top fused candidate
// directly behind it, so they displace the weakest fused hits instead of
// falling past the verification window. Expansion failures never fail
// retrieval.
func (r *HybridRetriever) expandCrossReferences(
	ctx context.Context,
	fused []domain.Candidate,
	filter domain.SearchFilter,
) []domain.Candidate {
	if r.crossRefs == nil || r.passages == nil || len(fused) == 0 {
		return fused
	}

	head := fused[0]
	related, err := r.crossRefs.Related(ctx, head.Passage.ID, r.opts.CrossRefLimit)
	if err != nil {
		r.logger.Warn("cross-reference expansion skipped", "error", err)
		return fused
	}

	seen := make(map[string]struct{}, len(fused))
	for _, candidate := range fused {
		seen[candidate.Passage.ID] = struct{}{}
	}

	inserts := make([]domain.Candidate, 0, len(related))
	for _, id := range related {
		if _, dup := seen[id]; dup {
			continue
		}
		passage, err := r.passages.GetByID(ctx, id)
		if err != nil {
			if !domain.IsKind(err, domain.ErrPassageNotFound) {
				r.logger.Warn("cross-referenced passage lookup failed", "passage_id", id, "error", err)
			}
			continue
		}
		if filter.Category != "" && passage.Category != filter.Category {
			continue
		}
		seen[id] = struct{}{}
		inserts = append(inserts, domain.Candidate{Passage: *passage, Score: head.Score})
	}
	if len(inserts) == 0 {
		return fused
	}

	expanded := make([]domain.Candidate, 0, len(fused)+len(inserts))
	expanded = append(expanded, head)
	expanded = append(expanded, inserts...)
	expanded = append(expanded, fused[1:]...)
	return expanded
}
