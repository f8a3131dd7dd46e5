package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GoogleEmbedder calls the Gemini embedding API.
type GoogleEmbedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

func NewGoogleEmbedder(ctx context.Context, apiKey, modelName string) (*GoogleEmbedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GoogleEmbedder{
		client: client,
		model:  client.EmbeddingModel(modelName),
	}, nil
}

func (g *GoogleEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	res, err := g.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if res.Embedding == nil {
		return nil, fmt.Errorf("empty embedding response")
	}
	return res.Embedding.Values, nil
}

func (g *GoogleEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	batch := g.model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	res, err := g.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, 0, len(res.Embeddings))
	for _, emb := range res.Embeddings {
		vectors = append(vectors, emb.Values)
	}
	return vectors, nil
}

func (g *GoogleEmbedder) Close() error {
	return g.client.Close()
}
