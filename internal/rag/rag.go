package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/prompts"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/config"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/embedding"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/llmservice"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/models"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/parser"
)

// VectorStore is a single named collection of embedded chunks.
type VectorStore interface {
	// Collection reports the identity recorded at creation and whether the
	// collection exists.
	Collection(ctx context.Context) (models.Identity, bool, error)
	CreateCollection(ctx context.Context, id models.Identity) error
	AddDocuments(ctx context.Context, records []models.Record) error
	SimilaritySearch(ctx context.Context, vector []float32, k int) ([]models.SearchResult, error)
	DeleteCollection(ctx context.Context) error
}

// Embedder is an embeddings.Embedder that can name its backend.
type Embedder interface {
	embeddings.Embedder
	Identity() models.Identity
}

// checkIdentity validates got against the collection. Collections without a
// recorded identity are accepted as they are.
func checkIdentity(ctx context.Context, store VectorStore, got models.Identity) (exists bool, err error) {
	stored, exists, err := store.Collection(ctx)
	if err != nil || !exists {
		return exists, err
	}
	if stored.Provider == "" {
		log.Warn().Msg("Collection has no recorded embedding identity; skipping consistency check")
		return true, nil
	}
	return true, stored.Check(got)
}

// collectionReplacer is implemented by stores that can drop, recreate and
// fill a collection atomically.
type collectionReplacer interface {
	ReplaceCollection(ctx context.Context, id models.Identity, records []models.Record) error
}

type IngestResult struct {
	Pages  int
	Chunks int
}

type Ingestor struct {
	store    VectorStore
	embedder Embedder
	loader   parser.Loader
	splitter *parser.Splitter
	cfg      config.RAGConfig

	// Progress is called after every embedded batch.
	Progress func(done, total int)
}

func NewIngestor(store VectorStore, embedder Embedder, loader parser.Loader, cfg config.RAGConfig) *Ingestor {
	return &Ingestor{
		store:    store,
		embedder: embedder,
		loader:   loader,
		splitter: parser.NewSplitter(cfg),
		cfg:      cfg,
	}
}

// Ingest loads, splits and embeds the document at path and writes all of its
// chunks to the collection. With reset the collection is dropped first.
// Nothing is written unless every chunk was embedded.
func (in *Ingestor) Ingest(ctx context.Context, path string, reset bool) (*IngestResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}

	log.Info().Str("file", path).Msg("Loading document")
	pages, err := in.loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	log.Info().Int("pages", len(pages)).Msg("Splitting document")
	chunks, err := in.splitter.Split(pages)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no text could be extracted from %s", path)
	}
	log.Info().Int("chunks", len(chunks)).Msg("Created chunks")

	records, err := embedding.GenerateEmbedding(ctx, in.embedder, chunks, in.cfg.BatchSize, in.Progress)
	if err != nil {
		return nil, fmt.Errorf("generate embeddings: %w", err)
	}

	id := in.embedder.Identity()
	id.Dimension = len(records[0].Embedding)
	for _, r := range records {
		if len(r.Embedding) != id.Dimension {
			return nil, fmt.Errorf("%w: embedder returned vectors of dimension %d and %d", models.ErrIdentityMismatch, id.Dimension, len(r.Embedding))
		}
	}

	if reset {
		if err := in.replace(ctx, id, records); err != nil {
			return nil, err
		}
		return &IngestResult{Pages: len(pages), Chunks: len(chunks)}, nil
	}

	exists, err := checkIdentity(ctx, in.store, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := in.store.CreateCollection(ctx, id); err != nil {
			return nil, err
		}
	}

	log.Info().Int("records", len(records)).Msg("Storing embeddings")
	if err := in.store.AddDocuments(ctx, records); err != nil {
		return nil, fmt.Errorf("store embeddings: %w", err)
	}

	return &IngestResult{Pages: len(pages), Chunks: len(chunks)}, nil
}

// replace drops the collection and writes records under a fresh identity.
// Stores without collectionReplacer leave an empty collection behind when
// the final write fails.
func (in *Ingestor) replace(ctx context.Context, id models.Identity, records []models.Record) error {
	if r, ok := in.store.(collectionReplacer); ok {
		log.Info().Int("records", len(records)).Msg("Replacing collection")
		if err := r.ReplaceCollection(ctx, id, records); err != nil {
			return fmt.Errorf("replace collection: %w", err)
		}
		return nil
	}

	log.Info().Msg("Deleting existing collection")
	if err := in.store.DeleteCollection(ctx); err != nil {
		return fmt.Errorf("reset collection: %w", err)
	}
	if err := in.store.CreateCollection(ctx, id); err != nil {
		return err
	}
	log.Info().Int("records", len(records)).Msg("Storing embeddings")
	if err := in.store.AddDocuments(ctx, records); err != nil {
		return fmt.Errorf("store embeddings: %w", err)
	}
	return nil
}

type Retriever struct {
	store    VectorStore
	embedder Embedder
	topK     int
}

func NewRetriever(store VectorStore, embedder Embedder, topK int) *Retriever {
	return &Retriever{store: store, embedder: embedder, topK: topK}
}

// Search returns at most k chunks ordered by increasing distance to query.
// k <= 0 means the configured default.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("empty query")
	}
	if k <= 0 {
		k = r.topK
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	id := r.embedder.Identity()
	id.Dimension = len(vector)
	exists, err := checkIdentity(ctx, r.store, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.ErrCollectionNotFound
	}

	results, err := r.store.SimilaritySearch(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	log.Debug().Int("results", len(results)).Msg("Retrieved chunks")
	return results, nil
}

// GenerationError wraps a failure of the chat backend, as opposed to a
// retrieval failure.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "generate answer: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type Answerer struct {
	retriever *Retriever
	generator llmservice.Generator
	prompt    prompts.PromptTemplate
	topK      int
}

func NewAnswerer(retriever *Retriever, generator llmservice.Generator, topK int) *Answerer {
	return &Answerer{
		retriever: retriever,
		generator: generator,
		prompt:    prompts.NewPromptTemplate(models.PromptTemplate, []string{"context", "question"}),
		topK:      topK,
	}
}

// Answer retrieves context for question and asks the model, returning its
// text verbatim.
func (a *Answerer) Answer(ctx context.Context, question string) (*models.PromptResponse, error) {
	results, err := a.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	return a.Generate(ctx, question, results)
}

// Retrieve returns the top-k chunks for question.
func (a *Answerer) Retrieve(ctx context.Context, question string) ([]models.SearchResult, error) {
	results, err := a.retriever.Search(ctx, question, a.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	return results, nil
}

// Generate renders the prompt from results and asks the model. Model
// failures are returned as *GenerationError.
func (a *Answerer) Generate(ctx context.Context, question string, results []models.SearchResult) (*models.PromptResponse, error) {
	prompt, err := a.RenderPrompt(FormatDocs(results), question)
	if err != nil {
		return nil, err
	}

	content, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	return &models.PromptResponse{
		Query:   question,
		Source:  FormatSources(results),
		Content: content,
	}, nil
}

func (a *Answerer) RenderPrompt(docs, question string) (string, error) {
	return a.prompt.Format(map[string]any{
		"context":  docs,
		"question": question,
	})
}

// FormatDocs joins the chunk texts in rank order.
func FormatDocs(results []models.SearchResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Content
	}
	return strings.Join(texts, models.ContextSeparator)
}

// FormatSources lists the distinct chunk locations in rank order.
func FormatSources(results []models.SearchResult) string {
	seen := make(map[string]bool, len(results))
	var sources []string
	for _, r := range results {
		loc := r.Chunk.Location()
		if seen[loc] {
			continue
		}
		seen[loc] = true
		sources = append(sources, loc)
	}
	return strings.Join(sources, ", ")
}

var _ Embedder = (*embedding.Embedder)(nil)
