package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/chromemdb"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/config"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/db"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/embedding"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/provider"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/providererr"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/rag"
)

const defaultConfigPath = "./configs/config.yaml"

var (
	configFilePath string
	cfg            *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "pdfrag",
	Short:         "Ask questions about a PDF using a pgvector-backed RAG pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		cfg, err = config.LoadConfig(configFilePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Error loading config")
		}
		setupLogger(cfg.Log)
		log.Debug().Str("backend", cfg.VectorStore.Backend).Str("collection", cfg.RAG.CollectionName).Msg("Loaded config")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFilePath, "config", defaultConfigPath, "path to the yaml config file (optional)")
	rootCmd.AddCommand(ingestCmd, chatCmd, searchCmd)
}

func setupLogger(c config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || c.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if c.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
	}
}

// store is a vector store that owns a connection.
type store interface {
	rag.VectorStore
	Close() error
}

func openStore(ctx context.Context, cfg *config.Config) (store, error) {
	switch cfg.VectorStore.Backend {
	case config.BackendChromem:
		return chromemdb.Open(cfg)
	default:
		db.EnsureVectorExtension(ctx, cfg.Database.DSN())
		return db.Open(ctx, cfg)
	}
}

func newEmbedder(ctx context.Context, cfg *config.Config) *embedding.Embedder {
	sel, err := provider.Select(cfg.Providers, provider.Embedding)
	if err != nil {
		log.Fatal().Msg(providererr.Describe(err))
	}
	embedder, err := embedding.New(ctx, sel)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	log.Info().Str("embedder", embedder.Identity().String()).Msg("Embedding provider selected")
	return embedder
}

func main() {
	// defaults for commands that fail before the config is loaded
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
