package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/config"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/helper"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/models"
)

// Collection and Embedding follow the table layout used by langchain's
// PGVector so that collections can be shared with it.
type Collection struct {
	bun.BaseModel `bun:"table:langchain_pg_collection,alias:c"`
	UUID          uuid.UUID         `bun:"uuid,pk,type:uuid"`
	Name          string            `bun:"name,notnull,unique"`
	CMetadata     map[string]string `bun:"cmetadata,type:jsonb"`
}

type Embedding struct {
	bun.BaseModel `bun:"table:langchain_pg_embedding,alias:e"`
	ID            string          `bun:"id,pk"`
	CollectionID  uuid.UUID       `bun:"collection_id,type:uuid,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,type:vector"`
	Document      string          `bun:"document"`
	CMetadata     ChunkMetadata   `bun:"cmetadata,type:jsonb"`
}

type ChunkMetadata struct {
	Source  string `json:"source"`
	Page    int    `json:"page"`
	ChunkID int    `json:"chunk_id"`
}

type scoredEmbedding struct {
	ID        string        `bun:"id"`
	Document  string        `bun:"document"`
	CMetadata ChunkMetadata `bun:"cmetadata,type:jsonb"`
	Distance  float64       `bun:"distance"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN())))
	return sqldb, nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*Collection)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create collection table: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*Embedding)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create embedding table: %w", err)
	}
	_, err := db.NewCreateIndex().
		Model((*Embedding)(nil)).
		Index("langchain_pg_embedding_collection_id_idx").
		IfNotExists().
		Column("collection_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create collection index: %w", err)
	}
	return nil
}

// Store is a pgvector backed collection.
type Store struct {
	db   *bun.DB
	name string
}

// Open connects to postgres and makes sure the tables exist.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	sqldb, err := ConnectDB(&cfg.Database)
	if err != nil {
		return nil, err
	}
	db := NewDB(sqldb, cfg.Database.Debug)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := InitDB(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return NewStore(db, cfg.RAG.CollectionName), nil
}

func NewStore(db *bun.DB, collectionName string) *Store {
	return &Store{db: db, name: collectionName}
}

func (s *Store) collection(ctx context.Context, db bun.IDB) (*Collection, error) {
	c := new(Collection)
	err := db.NewSelect().Model(c).Where("c.name = ?", s.name).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Collection returns the identity recorded for the collection and whether
// the collection exists at all.
func (s *Store) Collection(ctx context.Context) (models.Identity, bool, error) {
	c, err := s.collection(ctx, s.db)
	if err != nil || c == nil {
		return models.Identity{}, false, err
	}
	id, _ := models.IdentityFromMetadata(c.CMetadata)
	return id, true, nil
}

func (s *Store) CreateCollection(ctx context.Context, id models.Identity) error {
	if err := s.createCollection(ctx, s.db, id); err != nil {
		return err
	}
	log.Info().Str("collection", s.name).Str("identity", id.String()).Msg("Created collection")
	return nil
}

func (s *Store) createCollection(ctx context.Context, db bun.IDB, id models.Identity) error {
	collectionID, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	c := &Collection{
		UUID:      collectionID,
		Name:      s.name,
		CMetadata: id.Metadata(),
	}
	if _, err := db.NewInsert().Model(c).On("CONFLICT (name) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("create collection %s: %w", s.name, err)
	}
	return nil
}

// AddDocuments writes all records in one transaction. Records with an
// existing ID are replaced.
func (s *Store) AddDocuments(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.addDocuments(ctx, tx, records)
	})
}

// ReplaceCollection drops the collection, recreates it with id and writes
// records, all in one transaction. On failure the old collection is kept.
func (s *Store) ReplaceCollection(ctx context.Context, id models.Identity, records []models.Record) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.deleteCollection(ctx, tx); err != nil {
			return err
		}
		if err := s.createCollection(ctx, tx, id); err != nil {
			return err
		}
		return s.addDocuments(ctx, tx, records)
	})
	if err != nil {
		return err
	}
	log.Info().Str("collection", s.name).Str("identity", id.String()).Int("records", len(records)).Msg("Replaced collection")
	return nil
}

func (s *Store) addDocuments(ctx context.Context, tx bun.IDB, records []models.Record) error {
	c, err := s.collection(ctx, tx)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("collection %s does not exist", s.name)
	}

	rows := make([]Embedding, len(records))
	for i, r := range records {
		rows[i] = Embedding{
			ID:           r.ID,
			CollectionID: c.UUID,
			Embedding:    pgvector.NewVector(r.Embedding),
			Document:     r.Chunk.Content,
			CMetadata: ChunkMetadata{
				Source:  r.Chunk.Source,
				Page:    r.Chunk.PageNumber,
				ChunkID: r.Chunk.ChunkID,
			},
		}
	}

	_, err = tx.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("collection_id = EXCLUDED.collection_id").
		Set("embedding = EXCLUDED.embedding").
		Set("document = EXCLUDED.document").
		Set("cmetadata = EXCLUDED.cmetadata").
		Exec(ctx)
	return err
}

// SimilaritySearch returns the k nearest records by cosine distance.
func (s *Store) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]models.SearchResult, error) {
	var rows []scoredEmbedding
	err := s.db.NewSelect().
		Model((*Embedding)(nil)).
		ColumnExpr("e.id, e.document, e.cmetadata").
		ColumnExpr("e.embedding <=> ? AS distance", pgvector.NewVector(vector)).
		Join("JOIN langchain_pg_collection AS c ON c.uuid = e.collection_id").
		Where("c.name = ?", s.name).
		OrderExpr("distance ASC").
		Limit(k).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, len(rows))
	for i, row := range rows {
		results[i] = models.SearchResult{
			Chunk: models.Chunk{
				Content:    row.Document,
				Source:     row.CMetadata.Source,
				PageNumber: row.CMetadata.Page,
				ChunkID:    row.CMetadata.ChunkID,
			},
			Score: row.Distance,
		}
	}
	return results, nil
}

// DeleteCollection drops the collection and its records.
func (s *Store) DeleteCollection(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.deleteCollection(ctx, tx)
	})
}

func (s *Store) deleteCollection(ctx context.Context, tx bun.IDB) error {
	c, err := s.collection(ctx, tx)
	if err != nil || c == nil {
		return err
	}
	if _, err := tx.NewDelete().Model((*Embedding)(nil)).Where("collection_id = ?", c.UUID).Exec(ctx); err != nil {
		return err
	}
	_, err = tx.NewDelete().Model((*Collection)(nil)).Where("uuid = ?", c.UUID).Exec(ctx)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
