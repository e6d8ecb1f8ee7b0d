package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/infrastructure/resilience"
)

// Instruction prefixes for asymmetric retrieval: multilingual-e5 models
// are trained with distinct query and passage instructions, which yields
// higher precision than symmetric encoding.
const (
	queryPrefix   = "query: "
	passagePrefix = "passage: "
)

// Client talks to an Ollama server for both generation and embeddings.
// One instance is a process-wide capability shared by all requests; it
// holds no per-request state.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	runner     *resilience.Runner
}

func New(baseURL, genModel, embedModel string, runner *resilience.Runner) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		runner:     runner,
	}
}

// Generate produces free text for the prompt at the given temperature.
func (c *Client) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	return c.generate(ctx, map[string]any{
		"model":   c.genModel,
		"prompt":  prompt,
		"stream":  false,
		"options": map[string]any{"temperature": temperature},
	})
}

// GenerateJSON forces Ollama's JSON format mode.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, temperature float64) (string, error) {
	return c.generate(ctx, map[string]any{
		"model":   c.genModel,
		"prompt":  prompt,
		"stream":  false,
		"format":  "json",
		"options": map[string]any{"temperature": temperature},
	})
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	err := c.execute(ctx, "ollama.generate", func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", reqBody, &response, "generate")
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// EmbedPassages embeds texts in document mode.
func (c *Client) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prefixed := make([]string, len(texts))
	for i, text := range texts {
		prefixed[i] = passagePrefix + text
	}
	return c.embed(ctx, prefixed)
}

// EmbedQuery embeds one text in query mode.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{queryPrefix + text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (c *Client) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	request := map[string]any{
		"model": c.embedModel,
		"input": inputs,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := c.execute(ctx, "ollama.embed", func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/embed", request, &response, "embed")
	})
	if err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.runner == nil {
		return wrapErrorKind(operation, call(ctx))
	}
	err := c.runner.Do(ctx, operation, classifyOllamaError, call)
	return wrapErrorKind(operation, err)
}
