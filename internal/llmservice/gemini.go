package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Gemini{
		client: client,
		model:  client.GenerativeModel(model),
	}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	return candidateText(resp)
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

// candidateText joins the text parts of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("model returned no candidates")
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return "", fmt.Errorf("model returned an empty candidate (finish reason %v)", resp.Candidates[0].FinishReason)
	}

	var texts []string
	for _, part := range content.Parts {
		if pt, ok := part.(genai.Text); ok {
			texts = append(texts, string(pt))
		}
	}
	return strings.Join(texts, ""), nil
}
