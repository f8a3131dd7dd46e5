package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/helper"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/providererr"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/rag"
)

var (
	searchQuery string
	searchTopK  int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Print the chunks closest to a query",
	Args:  cobra.NoArgs,
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "query text")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as json")
	_ = searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	embedder := newEmbedder(ctx, cfg)
	defer embedder.Close()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}
	defer st.Close()

	results, err := rag.NewRetriever(st, embedder, cfg.RAG.TopK).Search(ctx, searchQuery, searchTopK)
	if err != nil {
		log.Error().Err(err).Msg(providererr.Describe(err))
		return err
	}

	if searchJSON {
		helper.PrettyPrint(results)
		return nil
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", searchQuery)
	for i, r := range results {
		fmt.Printf("%d. [%s] distance=%.4f\n%s\n\n", i+1, r.Chunk.Location(), r.Score, r.Chunk.Content)
	}
	return nil
}
