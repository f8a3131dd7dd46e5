package llmservice

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func TestCandidateText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("10 million "), genai.Text("in 2023.")}},
		}},
	}

	got, err := candidateText(resp)
	if err != nil {
		t.Fatal(err)
	}
	if got != "10 million in 2023." {
		t.Errorf("unexpected text %q", got)
	}
}

func TestCandidateTextEmpty(t *testing.T) {
	if _, err := candidateText(&genai.GenerateContentResponse{}); err == nil {
		t.Error("expected error for no candidates")
	}
	if _, err := candidateText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}); err == nil {
		t.Error("expected error for nil content")
	}
}
