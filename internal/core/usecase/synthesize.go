package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/ports"
)

const (
	synthesizeTemperature = 0.3
	citationExcerptRunes  = 160
)

// Synthesizer composes the final grounded answer from verified passages
// only. Citations are built from the verified set, so an answer can never
// cite a passage that did not pass the gate.
type Synthesizer struct {
	generator ports.Generator
}

func NewSynthesizer(generator ports.Generator) *Synthesizer {
	return &Synthesizer{generator: generator}
}

func (s *Synthesizer) Synthesize(
	ctx context.Context,
	query string,
	category domain.LawCategory,
	verified []domain.VerifiedCandidate,
) (*domain.Answer, error) {
	if len(verified) == 0 {
		// Legitimate terminal outcome, not an error: nothing grounded was
		// found, and unverified content is never used as a fallback.
		return &domain.Answer{
			Text:       notFoundMessage(category),
			Citations:  []domain.Citation{},
			Confidence: domain.ConfidenceNone,
		}, nil
	}

	text, err := s.generator.Generate(ctx, buildAnswerPrompt(query, verified), synthesizeTemperature)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSynthesis, "synthesize answer", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.WrapError(domain.ErrSynthesis, "synthesize answer", fmt.Errorf("empty generation result"))
	}

	citations := make([]domain.Citation, 0, len(verified))
	for _, candidate := range verified {
		citations = append(citations, domain.Citation{
			PassageID: candidate.Passage.ID,
			Article:   candidate.Passage.Article,
			Excerpt:   excerpt(candidate.Passage.Text, citationExcerptRunes),
		})
	}

	return &domain.Answer{
		Text:       text,
		Citations:  citations,
		Confidence: domain.ConfidenceFor(len(verified)),
	}, nil
}

func buildAnswerPrompt(query string, verified []domain.VerifiedCandidate) string {
	var contextBuilder strings.Builder
	for idx, candidate := range verified {
		fmt.Fprintf(&contextBuilder, "[%d] %s (%s)\n%s\n\n",
			idx+1,
			candidate.Passage.Article,
			candidate.Passage.Category,
			candidate.Passage.Text,
		)
	}

	return fmt.Sprintf(`You answer legal questions for people without legal training.
Use ONLY the passages below. Do not add legal claims that are not in them.
Answer in the user's language, plainly, without jargon. Structure:
1. A direct answer in 2-3 sentences.
2. The governing provision, naming its article or section.
3. One practical next step.

Question:
%s

Passages:
%s`, query, contextBuilder.String())
}

func notFoundMessage(category domain.LawCategory) string {
	base := "I could not find a provision in the available legislation that answers your question."
	if category != "" && category != domain.CategoryOther {
		base = fmt.Sprintf(
			"I could not find a provision in the available %s legislation that answers your question.",
			category,
		)
	}
	return base + " For a reliable answer, please consult a qualified lawyer."
}

func excerpt(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}
