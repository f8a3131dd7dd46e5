package rag

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/models"
)

const fakeDim = 64

var stopwords = map[string]bool{
	"what": true, "was": true, "is": true, "the": true, "of": true, "in": true,
	"a": true, "s": true, "x": true, "do": true, "you": true, "how": true,
}

func tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// hashEmbedder is a bag-of-words embedder: identical texts get identical
// vectors and shared words pull vectors together.
type hashEmbedder struct {
	id  models.Identity
	err error
}

func (h *hashEmbedder) vector(text string) []float32 {
	v := make([]float32, fakeDim)
	v[0] = 0.01
	for _, tok := range tokens(text) {
		f := fnv.New32a()
		f.Write([]byte(tok))
		v[f.Sum32()%fakeDim] += 1
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	for i := range v {
		v[i] /= float32(math.Sqrt(norm))
	}
	return v
}

func (h *hashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if h.err != nil {
		return nil, h.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if h.err != nil {
		return nil, h.err
	}
	return h.vector(text), nil
}

func (h *hashEmbedder) Identity() models.Identity {
	return h.id
}

// contextModel plays a model that follows the prompt rules: it answers with
// the context sentence sharing at least two content words with the question,
// and refuses otherwise.
type contextModel struct {
	prompts []string
	err     error
}

func section(prompt, start, end string) string {
	_, after, _ := strings.Cut(prompt, start)
	before, _, _ := strings.Cut(after, end)
	return strings.TrimSpace(before)
}

func (m *contextModel) Generate(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}

	ctxText := section(prompt, "CONTEXT:", "RULES:")
	question := section(prompt, "USER QUESTION:", `ANSWER THE "USER QUESTION"`)

	want := map[string]bool{}
	for _, tok := range tokens(question) {
		if !stopwords[tok] {
			want[tok] = true
		}
	}

	for _, sentence := range strings.Split(ctxText, "\n") {
		shared := 0
		for _, tok := range tokens(sentence) {
			if want[tok] {
				shared++
				delete(want, tok)
			}
		}
		if shared >= 2 {
			return strings.TrimSpace(sentence), nil
		}
	}
	return models.RefusalPhrase, nil
}
