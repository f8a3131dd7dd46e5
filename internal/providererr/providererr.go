// Package providererr turns errors from embedding, chat and storage
// backends into messages for the operator. Provider SDKs do not share
// error types, so most classification is done on the error text; the rule
// table below is the only place that knows about provider message formats.
package providererr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/models"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/provider"
)

type Kind int

const (
	Unknown Kind = iota
	Config
	Mismatch
	NotFound
	Canceled
	Quota
	Auth
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Mismatch:
		return "mismatch"
	case NotFound:
		return "not_found"
	case Canceled:
		return "canceled"
	case Quota:
		return "quota"
	case Auth:
		return "auth"
	default:
		return "unknown"
	}
}

type rule struct {
	kind     Kind
	patterns []string
}

var rules = []rule{
	{Quota, []string{"429", "insufficient_quota", "quota", "resource_exhausted", "resourceexhausted", "rate limit"}},
	{Auth, []string{"401", "403", "invalid_api_key", "incorrect api key", "api key not valid", "unauthorized", "permission_denied", "invalid authentication"}},
}

var messages = map[Kind]string{
	Config:   "Configuration error: %v. Set OPENAI_API_KEY or GOOGLE_API_KEY (or configure an Ollama server).",
	Mismatch: "The collection was built with a different embedding model: %v. Re-ingest with --reset or switch back to the original provider.",
	NotFound: "Not found: %v. Run the ingest command first.",
	Canceled: "Operation canceled.",
	Quota:    "Quota or rate limit exceeded at the provider: %v. Check your plan and billing details, or wait and try again.",
	Auth:     "Authentication failed at the provider: %v. Check that the API key is valid and has access to the model.",
	Unknown:  "Unexpected error: %v",
}

// Classify maps err to a Kind. Sentinel errors win over text matching.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return Unknown
	case errors.Is(err, provider.ErrNoCredential):
		return Config
	case errors.Is(err, models.ErrIdentityMismatch):
		return Mismatch
	case errors.Is(err, models.ErrCollectionNotFound), errors.Is(err, os.ErrNotExist):
		return NotFound
	case errors.Is(err, context.Canceled):
		return Canceled
	}

	text := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(text, p) {
				return r.kind
			}
		}
	}
	return Unknown
}

// Describe returns the operator-facing message for err.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	msg := messages[Classify(err)]
	if !strings.Contains(msg, "%v") {
		return msg
	}
	return fmt.Sprintf(msg, err)
}
