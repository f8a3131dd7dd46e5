package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/provider"
)

// Generator turns a rendered prompt into the model's text answer.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client is the chat backend picked by provider.Select.
type Client struct {
	Generator
	kind    provider.Kind
	model   string
	closeFn func() error
}

// New builds the chat client for the selected provider.
func New(ctx context.Context, sel provider.Selection) (*Client, error) {
	log.Debug().Str("provider", string(sel.Kind)).Str("model", sel.Model).Msg("Creating chat client")

	c := &Client{kind: sel.Kind, model: sel.Model, closeFn: func() error { return nil }}

	switch sel.Kind {
	case provider.OpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(sel.APIKey, "Bearer ")),
			openai.WithModel(sel.Model),
		}
		if sel.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(sel.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("init openai client: %w", err)
		}
		c.Generator = &langchainGenerator{llm: llm}
	case provider.Ollama:
		llm, err := ollama.New(
			ollama.WithServerURL(sel.BaseURL),
			ollama.WithModel(sel.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("init ollama client: %w", err)
		}
		c.Generator = &langchainGenerator{llm: llm}
	case provider.Google:
		g, err := NewGemini(ctx, sel.APIKey, sel.Model)
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		c.Generator = g
		c.closeFn = g.Close
	default:
		return nil, fmt.Errorf("unsupported chat provider %q", sel.Kind)
	}

	return c, nil
}

func (c *Client) Name() string {
	return fmt.Sprintf("%s/%s", c.kind, c.model)
}

func (c *Client) Close() error {
	return c.closeFn()
}

type langchainGenerator struct {
	llm llms.Model
}

func (g *langchainGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g.llm, prompt)
}
