package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/helper"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/models"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/provider"
)

// Embedder is an embeddings.Embedder that knows which backend produced it.
type Embedder struct {
	embeddings.Embedder
	identity models.Identity
	closeFn  func() error
}

// New builds the embedder for the selected provider.
func New(ctx context.Context, sel provider.Selection) (*Embedder, error) {
	log.Debug().Str("provider", string(sel.Kind)).Str("model", sel.Model).Msg("Creating embedder")

	e := &Embedder{
		identity: models.Identity{Provider: string(sel.Kind), Model: sel.Model},
		closeFn:  func() error { return nil },
	}

	switch sel.Kind {
	case provider.OpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(sel.APIKey, "Bearer ")),
			openai.WithEmbeddingModel(sel.Model),
		}
		if sel.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(sel.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("init openai client: %w", err)
		}
		impl, err := embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		e.Embedder = impl
	case provider.Ollama:
		llm, err := ollama.New(
			ollama.WithServerURL(sel.BaseURL),
			ollama.WithModel(sel.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("init ollama client: %w", err)
		}
		impl, err := embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		e.Embedder = impl
	case provider.Google:
		g, err := NewGoogleEmbedder(ctx, sel.APIKey, sel.Model)
		if err != nil {
			return nil, fmt.Errorf("init google client: %w", err)
		}
		e.Embedder = g
		e.closeFn = g.Close
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", sel.Kind)
	}

	return e, nil
}

// Identity reports provider and model. The dimension is only known once a
// vector has been produced and is left zero here.
func (e *Embedder) Identity() models.Identity {
	return e.identity
}

func (e *Embedder) Close() error {
	return e.closeFn()
}

// GenerateEmbedding embeds chunks in batches of batchSize and returns one
// record per chunk. progress, if not nil, is called after every batch.
func GenerateEmbedding(ctx context.Context, embedder embeddings.Embedder, chunks []models.Chunk, batchSize int, progress func(done, total int)) ([]models.Record, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks generated from content")
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = len(chunks)
	}

	records := make([]models.Record, 0, len(chunks))
	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		vectors, err := embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		for i, chunk := range batch {
			records = append(records, models.Record{
				ID:        helper.ChunkUUID(chunk),
				Chunk:     chunk,
				Embedding: vectors[i],
			})
		}

		if progress != nil {
			progress(end, len(chunks))
		}
	}

	return records, nil
}
