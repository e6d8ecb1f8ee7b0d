package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/ports"
)

const classifyTemperature = 0.0

// IntentClassifier labels a user message with intent, legal domain,
// clarity and urgency. It retries malformed model output once with a
// stricter formatting instruction and never returns a partial object.
type IntentClassifier struct {
	generator ports.Generator
}

func NewIntentClassifier(generator ports.Generator) *IntentClassifier {
	return &IntentClassifier{generator: generator}
}

func (c *IntentClassifier) Classify(
	ctx context.Context,
	text string,
	history []domain.Turn,
) (domain.IntentClassification, error) {
	prompt := buildClassificationPrompt(text, history, false)
	raw, err := c.generator.GenerateJSON(ctx, prompt, classifyTemperature)
	if err == nil {
		if cls, parseErr := parseClassification(raw); parseErr == nil {
			return cls, nil
		}
	}

	// Single bounded retry with a stricter format instruction. The
	// orchestrator never retries this state again.
	prompt = buildClassificationPrompt(text, history, true)
	raw, retryErr := c.generator.GenerateJSON(ctx, prompt, classifyTemperature)
	if retryErr != nil {
		if err == nil {
			err = retryErr
		}
		return domain.IntentClassification{}, domain.WrapError(domain.ErrClassification, "classify intent", err)
	}
	cls, parseErr := parseClassification(raw)
	if parseErr != nil {
		return domain.IntentClassification{}, domain.WrapError(domain.ErrClassification, "classify intent", parseErr)
	}
	return cls, nil
}

func parseClassification(raw string) (domain.IntentClassification, error) {
	var payload struct {
		Intent  string `json:"intent"`
		Domain  string `json:"domain"`
		Clarity string `json:"clarity"`
		Urgency string `json:"urgency"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return domain.IntentClassification{}, fmt.Errorf("parse classification json: %w", err)
	}

	cls := domain.IntentClassification{
		Intent:  domain.Intent(strings.ToLower(strings.TrimSpace(payload.Intent))),
		Domain:  domain.ParseLawCategory(strings.ToLower(strings.TrimSpace(payload.Domain))),
		Clarity: domain.Clarity(strings.ToLower(strings.TrimSpace(payload.Clarity))),
		Urgency: domain.Urgency(strings.ToLower(strings.TrimSpace(payload.Urgency))),
	}
	if !cls.Intent.Valid() {
		return domain.IntentClassification{}, fmt.Errorf("invalid intent %q", payload.Intent)
	}
	if !cls.Clarity.Valid() {
		return domain.IntentClassification{}, fmt.Errorf("invalid clarity %q", payload.Clarity)
	}
	if !cls.Urgency.Valid() {
		return domain.IntentClassification{}, fmt.Errorf("invalid urgency %q", payload.Urgency)
	}
	return cls, nil
}

func buildClassificationPrompt(text string, history []domain.Turn, strict bool) string {
	historyLines := make([]string, 0, len(history))
	for _, turn := range history {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		historyLines = append(historyLines, fmt.Sprintf("%s: %s", turn.Role, content))
	}
	if len(historyLines) == 0 {
		historyLines = append(historyLines, "(empty)")
	}

	var b strings.Builder
	b.WriteString(`You are an intent classifier for a legal question assistant.
Return strict JSON with exactly these keys:
intent   - one of: legal_query, document_analysis, lawyer_needed, general_chat
domain   - one of: civil, criminal, administrative, labor, tax, other
clarity  - one of: clear, needs_clarification
urgency  - one of: high, medium, low
`)
	if strict {
		b.WriteString("Return ONLY the JSON object. No markdown, no prose, no extra keys, every key present.\n")
	}
	b.WriteString("\nConversation so far:\n")
	b.WriteString(strings.Join(historyLines, "\n"))
	b.WriteString("\n\nUser message:\n")
	b.WriteString(text)
	b.WriteString("\n")
	return b.String()
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
