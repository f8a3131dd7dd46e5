package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/parser"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/providererr"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/rag"
)

var resetCollection bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Load a PDF, embed its chunks and store them in the vector store",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&resetCollection, "reset", false, "delete the collection before ingesting")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	path := cfg.RAG.DocumentPath
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Fatal().Str("file", path).Msg("File not found")
	}

	embedder := newEmbedder(ctx, cfg)
	defer embedder.Close()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}
	defer st.Close()

	in := rag.NewIngestor(st, embedder, parser.PDFLoader{}, cfg.RAG)

	var bar *progressbar.ProgressBar
	in.Progress = func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("Embedding chunks"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set(done)
	}

	res, err := in.Ingest(ctx, path, resetCollection)
	if err != nil {
		log.Error().Err(err).Msg(providererr.Describe(err))
		return err
	}

	log.Info().
		Str("file", path).
		Int("pages", res.Pages).
		Int("chunks", res.Chunks).
		Str("collection", cfg.RAG.CollectionName).
		Msg("Ingestion complete")
	return nil
}
