package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultCollectionName = "documents"
	defaultChunkSize      = 1000 // characters
	defaultChunkOverlap   = 150  // characters
	defaultTopK           = 10
	defaultBatchSize      = 64
	defaultDocumentPath   = "document.pdf"
	defaultDBHost         = "localhost"
	defaultChromemPath    = "./chromemdb"

	BackendPGVector = "pgvector"
	BackendChromem  = "chromem"
)

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Providers   ProvidersConfig   `yaml:"providers"`
	RAG         RAGConfig         `yaml:"rag"`
	Log         LogConfig         `yaml:"log"`
}

type DatabaseConfig struct {
	// URL takes precedence over the discrete fields below.
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Debug    bool   `yaml:"debug"`
}

type VectorStoreConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
	Compress bool   `yaml:"compress"`
}

type ProvidersConfig struct {
	OpenAI LLMConfig `yaml:"openai"`
	Google LLMConfig `yaml:"google"`
	Ollama LLMConfig `yaml:"ollama"`
}

type LLMConfig struct {
	Key            string `yaml:"key"`
	BaseURL        string `yaml:"base_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
}

type RAGConfig struct {
	CollectionName string `yaml:"collection_name"`
	ChunkSize      int    `yaml:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
	TopK           int    `yaml:"top_k"`
	BatchSize      int    `yaml:"batch_size"`
	DocumentPath   string `yaml:"document_path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     defaultDBHost,
			Port:     5432,
			User:     "langchain",
			Password: "langchain",
			Name:     "langchain",
		},
		VectorStore: VectorStoreConfig{
			Backend: BackendPGVector,
			Path:    defaultChromemPath,
		},
		RAG: RAGConfig{
			CollectionName: defaultCollectionName,
			ChunkSize:      defaultChunkSize,
			ChunkOverlap:   defaultChunkOverlap,
			TopK:           defaultTopK,
			BatchSize:      defaultBatchSize,
			DocumentPath:   defaultDocumentPath,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// LoadConfig reads the yaml file at path (a missing file is not an error),
// overlays the environment and fills in defaults.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Providers.OpenAI.Key, "OPENAI_API_KEY")
	setFromEnv(&c.Providers.Google.Key, "GOOGLE_API_KEY")
	setFromEnv(&c.Providers.Ollama.BaseURL, "OLLAMA_HOST")
	setFromEnv(&c.Database.URL, "POSTGRES_CONNECTION")
	setFromEnv(&c.Database.Host, "DB_HOST")
	setFromEnv(&c.Log.Level, "LOG_LEVEL")
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.RAG.CollectionName == "" {
		c.RAG.CollectionName = d.RAG.CollectionName
	}
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = d.RAG.ChunkSize
	}
	if c.RAG.ChunkOverlap < 0 {
		c.RAG.ChunkOverlap = d.RAG.ChunkOverlap
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = d.RAG.TopK
	}
	if c.RAG.BatchSize <= 0 {
		c.RAG.BatchSize = d.RAG.BatchSize
	}
	if c.RAG.DocumentPath == "" {
		c.RAG.DocumentPath = d.RAG.DocumentPath
	}
	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = d.VectorStore.Backend
	}
	if c.VectorStore.Path == "" {
		c.VectorStore.Path = d.VectorStore.Path
	}
	if c.Database.Host == "" {
		c.Database.Host = d.Database.Host
	}
	if c.Database.Port == 0 {
		c.Database.Port = d.Database.Port
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

func (c *Config) Validate() error {
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap (%d) must be smaller than rag.chunk_size (%d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	switch c.VectorStore.Backend {
	case BackendPGVector, BackendChromem:
	default:
		return fmt.Errorf("unknown vector_store.backend %q", c.VectorStore.Backend)
	}
	return nil
}

// DSN returns the postgres connection string. SQLAlchemy style schemes such
// as postgresql+psycopg:// are accepted and reduced to postgresql://. A URL
// without sslmode gets sslmode=disable, as local pgvector servers run
// without TLS.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return withSSLMode(normalizeScheme(d.URL))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func normalizeScheme(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	if base, _, found := strings.Cut(scheme, "+"); found {
		scheme = base
	}
	return scheme + "://" + rest
}

func withSSLMode(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return dsn
	}
	q := u.Query()
	if q.Has("sslmode") {
		return dsn
	}
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}
