package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/config"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/helper"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/models"
)

const (
	metaSource  = "source"
	metaPage    = "page"
	metaChunkID = "chunk_id"
)

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db             *chromem.DB
	collectionName string
	dbPath         string
	inMemory       bool

	mu       sync.Mutex
	identity *models.Identity
}

// identityFile is the side file recording a collection's embedding identity.
type identityFile struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// NewVectorDBManager initializes a new vector database manager
func NewVectorDBManager(dbPath, collectionName string, inMemory, compress bool) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(dbPath); err != nil {
			return nil, err
		}
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	return &VectorDBManager{
		db:             db,
		collectionName: collectionName,
		dbPath:         dbPath,
		inMemory:       inMemory,
	}, nil
}

func Open(cfg *config.Config) (*VectorDBManager, error) {
	return NewVectorDBManager(cfg.VectorStore.Path, cfg.RAG.CollectionName, cfg.VectorStore.InMemory, cfg.VectorStore.Compress)
}

func (m *VectorDBManager) identityPath() string {
	return filepath.Join(m.dbPath, m.collectionName+".identity.yaml")
}

func (m *VectorDBManager) loadIdentity() (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.identity != nil || m.inMemory {
		return m.identity, nil
	}

	data, err := os.ReadFile(m.identityPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var f identityFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", m.identityPath(), err)
	}
	m.identity = &models.Identity{Provider: f.Provider, Model: f.Model, Dimension: f.Dimension}
	return m.identity, nil
}

// Collection returns the recorded identity and whether the collection exists.
func (m *VectorDBManager) Collection(ctx context.Context) (models.Identity, bool, error) {
	id, err := m.loadIdentity()
	if err != nil {
		return models.Identity{}, false, err
	}
	if id != nil {
		return *id, true, nil
	}
	// a collection created by another tool has no identity file
	if c := m.db.GetCollection(m.collectionName, nil); c != nil {
		return models.Identity{}, true, nil
	}
	return models.Identity{}, false, nil
}

func (m *VectorDBManager) CreateCollection(ctx context.Context, id models.Identity) error {
	if _, err := m.db.GetOrCreateCollection(m.collectionName, id.Metadata(), nil); err != nil {
		return fmt.Errorf("failed to create/get collection: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = &id
	if m.inMemory {
		return nil
	}

	data, err := yaml.Marshal(identityFile{Provider: id.Provider, Model: id.Model, Dimension: id.Dimension})
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.identityPath(), data, 0o644); err != nil {
		return fmt.Errorf("write collection identity: %w", err)
	}
	log.Info().Str("collection", m.collectionName).Str("identity", id.String()).Msg("Created collection")
	return nil
}

// AddDocuments stores records; an existing ID is overwritten.
func (m *VectorDBManager) AddDocuments(ctx context.Context, records []models.Record) error {
	c := m.db.GetCollection(m.collectionName, nil)
	if c == nil {
		return fmt.Errorf("collection %s does not exist", m.collectionName)
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:      r.ID,
			Content: r.Chunk.Content,
			Metadata: map[string]string{
				metaSource:  r.Chunk.Source,
				metaPage:    strconv.Itoa(r.Chunk.PageNumber),
				metaChunkID: strconv.Itoa(r.Chunk.ChunkID),
			},
			Embedding: r.Embedding,
		}
	}

	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	return nil
}

// SimilaritySearch returns at most k results ordered by cosine distance.
func (m *VectorDBManager) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]models.SearchResult, error) {
	c := m.db.GetCollection(m.collectionName, nil)
	if c == nil {
		return nil, fmt.Errorf("collection %s does not exist", m.collectionName)
	}
	// chromem rejects more results than documents
	k = min(k, c.Count())
	if k <= 0 {
		return nil, nil
	}

	res, err := c.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	results := make([]models.SearchResult, len(res))
	for i, r := range res {
		page, _ := strconv.Atoi(r.Metadata[metaPage])
		chunkID, _ := strconv.Atoi(r.Metadata[metaChunkID])
		results[i] = models.SearchResult{
			Chunk: models.Chunk{
				Content:    r.Content,
				Source:     r.Metadata[metaSource],
				PageNumber: page,
				ChunkID:    chunkID,
			},
			Score: 1 - float64(r.Similarity),
		}
	}
	return results, nil
}

// DeleteCollection drops the collection and its identity.
func (m *VectorDBManager) DeleteCollection(ctx context.Context) error {
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = nil
	if m.inMemory {
		return nil
	}
	if err := os.Remove(m.identityPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (m *VectorDBManager) Close() error {
	return nil
}
