package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/models"
)

type countingEmbedder struct {
	calls int
	fail  bool
}

func (c *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	if c.fail {
		return nil, errors.New("Error code: 429 - insufficient_quota")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func testChunks(n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		chunks[i] = models.Chunk{
			Content:    string(rune('a'+i)) + " chunk",
			Source:     "document.pdf",
			PageNumber: 1,
			ChunkID:    i + 1,
		}
	}
	return chunks
}

func TestGenerateEmbeddingBatches(t *testing.T) {
	emb := &countingEmbedder{}
	var progress []int

	records, err := GenerateEmbedding(context.Background(), emb, testChunks(5), 2, func(done, total int) {
		if total != 5 {
			t.Errorf("expected total 5, got %d", total)
		}
		progress = append(progress, done)
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	if emb.calls != 3 {
		t.Errorf("expected 3 batches, got %d", emb.calls)
	}
	if want := []int{2, 4, 5}; len(progress) != len(want) || progress[0] != 2 || progress[1] != 4 || progress[2] != 5 {
		t.Errorf("unexpected progress %v", progress)
	}

	seen := map[string]bool{}
	for i, r := range records {
		if r.ID == "" {
			t.Error("record has empty ID")
		}
		if seen[r.ID] {
			t.Errorf("duplicate record ID %s", r.ID)
		}
		seen[r.ID] = true
		if r.Chunk.ChunkID != i+1 {
			t.Errorf("records out of order at %d", i)
		}
		if len(r.Embedding) != 2 {
			t.Errorf("unexpected vector %v", r.Embedding)
		}
	}
}

func TestGenerateEmbeddingDeterministicIDs(t *testing.T) {
	a, err := GenerateEmbedding(context.Background(), &countingEmbedder{}, testChunks(3), 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateEmbedding(context.Background(), &countingEmbedder{}, testChunks(3), 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("ID %d differs between runs: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
}

func TestGenerateEmbeddingError(t *testing.T) {
	_, err := GenerateEmbedding(context.Background(), &countingEmbedder{fail: true}, testChunks(3), 2, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGenerateEmbeddingEmpty(t *testing.T) {
	records, err := GenerateEmbedding(context.Background(), &countingEmbedder{}, nil, 2, nil)
	if err != nil || records != nil {
		t.Errorf("expected nil, nil; got %v, %v", records, err)
	}
}
