package usecase

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/ports"
)

const (
	clarifyTemperature = 0.4
	maxQuestions       = 3
	minQuestions       = 2
)

//go:embed clarify_templates.yaml
var clarifyTemplatesYAML []byte

type templateBank struct {
	Rationale string   `yaml:"rationale"`
	Questions []string `yaml:"questions"`
}

func loadTemplateBanks(raw []byte) (map[domain.LawCategory]templateBank, error) {
	decoded := map[string]templateBank{}
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode template banks: %w", err)
	}
	banks := make(map[domain.LawCategory]templateBank, len(decoded))
	for name, bank := range decoded {
		banks[domain.ParseLawCategory(name)] = bank
	}
	return banks, nil
}

// Clarifier produces 2-3 targeted follow-up questions for an ambiguous
// message. Per-domain template banks seed the prompt as a grounding prior;
// the generated set is not required to reuse them literally.
type Clarifier struct {
	generator ports.Generator
	banks     map[domain.LawCategory]templateBank
	logger    *slog.Logger
}

func NewClarifier(generator ports.Generator, logger *slog.Logger) (*Clarifier, error) {
	banks, err := loadTemplateBanks(clarifyTemplatesYAML)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Clarifier{generator: generator, banks: banks, logger: logger}, nil
}

func (c *Clarifier) Clarify(
	ctx context.Context,
	text string,
	category domain.LawCategory,
) (*domain.ClarificationRequest, error) {
	bank, hasBank := c.banks[category]

	raw, err := c.generator.GenerateJSON(ctx, buildClarifyPrompt(text, category, bank, hasBank), clarifyTemperature)
	if err != nil {
		if hasBank {
			// The template bank is the degraded response: static questions
			// beat a failed turn.
			c.logger.Warn("clarifier generation degraded to template bank", "domain", category, "error", err)
			return &domain.ClarificationRequest{
				Questions: clampQuestions(bank.Questions),
				Reasoning: bank.Rationale,
			}, nil
		}
		return nil, fmt.Errorf("generate clarification: %w", err)
	}

	request, parseErr := parseClarification(raw)
	if parseErr != nil {
		if hasBank {
			c.logger.Warn("clarifier output unparseable, using template bank", "domain", category, "error", parseErr)
			return &domain.ClarificationRequest{
				Questions: clampQuestions(bank.Questions),
				Reasoning: bank.Rationale,
			}, nil
		}
		return nil, parseErr
	}

	request.Questions = clampQuestions(request.Questions)
	if len(request.Questions) < minQuestions {
		if hasBank {
			request.Questions = topUpQuestions(request.Questions, bank.Questions)
		} else if len(request.Questions) == 0 {
			return nil, fmt.Errorf("clarifier returned no questions for domain %s", category)
		}
		// A single question is acceptable only for domains without a bank.
	}
	if request.Reasoning == "" && hasBank {
		request.Reasoning = bank.Rationale
	}
	return request, nil
}

func parseClarification(raw string) (*domain.ClarificationRequest, error) {
	var payload struct {
		Questions []string `json:"questions"`
		Reasoning string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return nil, fmt.Errorf("parse clarification json: %w", err)
	}

	questions := make([]string, 0, len(payload.Questions))
	for _, question := range payload.Questions {
		question = strings.TrimSpace(question)
		if question != "" {
			questions = append(questions, question)
		}
	}
	return &domain.ClarificationRequest{
		Questions: questions,
		Reasoning: strings.TrimSpace(payload.Reasoning),
	}, nil
}

func clampQuestions(questions []string) []string {
	if len(questions) > maxQuestions {
		return questions[:maxQuestions]
	}
	return questions
}

func topUpQuestions(questions, templates []string) []string {
	for _, template := range templates {
		if len(questions) >= minQuestions {
			break
		}
		duplicate := false
		for _, existing := range questions {
			if strings.EqualFold(existing, template) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			questions = append(questions, template)
		}
	}
	return questions
}

func buildClarifyPrompt(text string, category domain.LawCategory, bank templateBank, hasBank bool) string {
	var b strings.Builder
	b.WriteString(`You help a legal assistant ask follow-up questions.
The user's message is ambiguous. Write 2-3 specific follow-up questions in
the user's own language and register. Plain language, no legal jargon.
Return strict JSON: {"questions": ["..."], "reasoning": "one line"}

`)
	fmt.Fprintf(&b, "Legal domain: %s\n", category)
	if hasBank {
		b.WriteString("Example questions for this domain (adapt, do not copy blindly):\n")
		for _, question := range bank.Questions {
			fmt.Fprintf(&b, "- %s\n", question)
		}
	}
	b.WriteString("\nUser message:\n")
	b.WriteString(text)
	b.WriteString("\n")
	return b.String()
}
