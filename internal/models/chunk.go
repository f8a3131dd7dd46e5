package models

import "fmt"

// Page is the extracted plain text of one PDF page.
type Page struct {
	Source     string
	PageNumber int
	Content    string
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	PageNumber int    `json:"page"`
	ChunkID    int    `json:"chunk_id"`
}

func (c Chunk) Location() string {
	return fmt.Sprintf("%s p.%d", c.Source, c.PageNumber)
}

// Record is a chunk together with its embedding, ready to be stored.
type Record struct {
	ID        string
	Chunk     Chunk
	Embedding []float32
}

// SearchResult is a chunk and its distance to the query; lower is closer.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"distance"`
}

type PromptResponse struct {
	Query   string `json:"query"`
	Source  string `json:"source"`
	Content string `json:"content"`
}
