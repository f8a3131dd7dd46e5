package helper

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/models"
)

// chunkNamespace scopes the name-based UUIDs of stored chunks.
var chunkNamespace = uuid.MustParse("6f1c7a52-8a41-4f0e-9d7c-2b9d6c1e0a11")

// GenerateUUID creates a random UUID for a new collection
func GenerateUUID() (uuid.UUID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id, nil
}

// ChunkUUID derives a stable ID from the chunk's position and text so that
// re-ingesting a document overwrites the same records.
func ChunkUUID(c models.Chunk) string {
	name := fmt.Sprintf("%s\x00%d\x00%d\x00%s", c.Source, c.PageNumber, c.ChunkID, c.Content)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// CreateFolder creates path and any missing parents
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// pretty print
func PrettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Msg("Error pretty printing")
	}
	fmt.Println(string(b))
}
