package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/chat"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/llmservice"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/provider"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/providererr"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/rag"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Answer questions about the ingested document interactively",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder := newEmbedder(ctx, cfg)
	defer embedder.Close()

	llm := newChatClient(ctx)
	defer llm.Close()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}
	defer st.Close()

	retriever := rag.NewRetriever(st, embedder, cfg.RAG.TopK)
	answerer := rag.NewAnswerer(retriever, llm, cfg.RAG.TopK)

	return chat.NewSession(answerer, os.Stdin, os.Stdout).Run(ctx)
}

func newChatClient(ctx context.Context) *llmservice.Client {
	sel, err := provider.Select(cfg.Providers, provider.Chat)
	if err != nil {
		log.Fatal().Msg(providererr.Describe(err))
	}
	llm, err := llmservice.New(ctx, sel)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing chat client")
	}
	log.Info().Str("llm", llm.Name()).Msg("Chat provider selected")
	return llm
}
