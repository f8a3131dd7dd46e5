package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/config"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/models"
)

const (
	defaultChunkSize    = 1000 // characters
	defaultChunkOverlap = 150  // characters
)

// Loader extracts the pages of a document.
type Loader interface {
	Load(path string) ([]models.Page, error)
}

type PDFLoader struct{}

func (PDFLoader) Load(path string) ([]models.Page, error) {
	return LoadPDF(path)
}

// LoadPDF extracts plain text from every page of the PDF at path. Pages
// without text are skipped.
func LoadPDF(filePath string) ([]models.Page, error) {
	if ext := strings.ToLower(filepath.Ext(filePath)); ext != ".pdf" {
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("read pdf %s: %w", filePath, err)
	}

	source := filepath.Base(filePath)
	var pages []models.Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			log.Debug().Int("page", i).Msg("Skipping page without text")
			continue
		}
		pages = append(pages, models.Page{
			Source:     source,
			PageNumber: i,
			Content:    pageText,
		})
	}
	return pages, nil
}

// Splitter cuts page text into overlapping chunks, preferring paragraph,
// line and word boundaries before falling back to single characters.
type Splitter struct {
	splitter textsplitter.RecursiveCharacter
}

func NewSplitter(cfg config.RAGConfig) *Splitter {
	size, overlap := cfg.ChunkSize, cfg.ChunkOverlap
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = defaultChunkOverlap
		if overlap >= size {
			overlap = size / 2
		}
	}

	return &Splitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}
}

// Split returns the chunks of all pages in page order. ChunkID restarts at
// 1 on every page.
func (s *Splitter) Split(pages []models.Page) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, page := range pages {
		texts, err := s.splitter.SplitText(page.Content)
		if err != nil {
			return nil, fmt.Errorf("split page %d: %w", page.PageNumber, err)
		}
		id := 0
		for _, text := range texts {
			if strings.TrimSpace(text) == "" {
				continue
			}
			id++
			chunks = append(chunks, models.Chunk{
				Content:    text,
				Source:     page.Source,
				PageNumber: page.PageNumber,
				ChunkID:    id,
			})
		}
	}
	return chunks, nil
}
