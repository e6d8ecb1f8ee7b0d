package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/ports"
)

const verifyTemperature = 0.0

// Verifier is the anti-hallucination gate: a binary, per-candidate
// judgment of whether a passage directly addresses the question. Each
// candidate is judged in isolation so one strong match can never bias the
// acceptance of a weak one.
type Verifier struct {
	generator ports.Generator
	logger    *slog.Logger
	maxChecks int
}

func NewVerifier(generator ports.Generator, logger *slog.Logger, maxChecks int) *Verifier {
	if maxChecks <= 0 {
		maxChecks = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{generator: generator, logger: logger, maxChecks: maxChecks}
}

// Verify judges the top candidates concurrently and returns the survivors
// in their pre-verification order. A failed or malformed judgment rejects
// that candidate only; rejection is authoritative over ranking.
func (v *Verifier) Verify(
	ctx context.Context,
	query string,
	candidates []domain.Candidate,
) ([]domain.VerifiedCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	checked := candidates
	if len(checked) > v.maxChecks {
		checked = checked[:v.maxChecks]
	}

	type judgment struct {
		accepted      bool
		justification string
	}
	judgments := make([]judgment, len(checked))

	group, groupCtx := errgroup.WithContext(ctx)
	for i := range checked {
		i := i
		group.Go(func() error {
			accepted, justification, err := v.judge(groupCtx, query, checked[i].Passage)
			if err != nil {
				v.logger.Warn("verification judgment failed, candidate rejected",
					"passage_id", checked[i].Passage.ID, "error", err)
				return nil
			}
			judgments[i] = judgment{accepted: accepted, justification: justification}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// Result order is the pre-verification ranking: the slice index, not
	// goroutine completion order, decides placement.
	out := make([]domain.VerifiedCandidate, 0, len(checked))
	for i, candidate := range checked {
		if !judgments[i].accepted {
			continue
		}
		out = append(out, domain.VerifiedCandidate{
			Candidate:     candidate,
			Justification: judgments[i].justification,
		})
	}
	return out, nil
}

func (v *Verifier) judge(ctx context.Context, query string, passage domain.Passage) (bool, string, error) {
	raw, err := v.generator.GenerateJSON(ctx, buildVerifyPrompt(query, passage), verifyTemperature)
	if err != nil {
		return false, "", err
	}

	var payload struct {
		Relevant bool   `json:"relevant"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return false, "", fmt.Errorf("parse verification json: %w", err)
	}
	return payload.Relevant, strings.TrimSpace(payload.Reason), nil
}

func buildVerifyPrompt(query string, passage domain.Passage) string {
	return fmt.Sprintf(`Does the legal passage below directly address the user's question?
Answer with strict JSON: {"relevant": true|false, "reason": "one sentence"}
Judge only this passage. Sharing vocabulary is not enough; the passage must
actually answer the question.

Question:
%s

Passage (%s, %s):
%s
`, query, passage.Article, passage.Category, passage.Text)
}
