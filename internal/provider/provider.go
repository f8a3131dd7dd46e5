package provider

import (
	"errors"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/config"
)

// Kind tags the backend a Selection talks to.
type Kind string

const (
	OpenAI Kind = "openai"
	Google Kind = "google"
	Ollama Kind = "ollama"
)

// Service is the capability being selected for.
type Service int

const (
	Embedding Service = iota
	Chat
)

func (s Service) String() string {
	if s == Chat {
		return "chat"
	}
	return "embedding"
}

var ErrNoCredential = errors.New("no credential found: set OPENAI_API_KEY or GOOGLE_API_KEY")

var defaultModels = map[Kind][2]string{
	OpenAI: {"text-embedding-3-small", "gpt-5-nano"},
	Google: {"embedding-001", "gemini-2.5-flash-lite"},
	Ollama: {"nomic-embed-text", "llama3.2"},
}

type Selection struct {
	Kind    Kind
	Service Service
	Model   string
	APIKey  string
	BaseURL string
}

// Select picks the backend for svc. OpenAI wins over Google when both keys
// are present; a local Ollama server is only used when explicitly configured
// and no hosted key is set.
func Select(cfg config.ProvidersConfig, svc Service) (Selection, error) {
	switch {
	case cfg.OpenAI.Key != "":
		return newSelection(OpenAI, svc, cfg.OpenAI), nil
	case cfg.Google.Key != "":
		return newSelection(Google, svc, cfg.Google), nil
	case cfg.Ollama.BaseURL != "":
		return newSelection(Ollama, svc, cfg.Ollama), nil
	default:
		return Selection{}, ErrNoCredential
	}
}

func newSelection(kind Kind, svc Service, c config.LLMConfig) Selection {
	model := c.EmbeddingModel
	if svc == Chat {
		model = c.ChatModel
	}
	if model == "" {
		model = defaultModels[kind][svc]
	}
	return Selection{
		Kind:    kind,
		Service: svc,
		Model:   model,
		APIKey:  c.Key,
		BaseURL: c.BaseURL,
	}
}
