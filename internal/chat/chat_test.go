package chat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/models"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/rag"
)

type fakeAnswerer struct {
	questions   []string
	retrieveErr error
	generateErr error
}

func (f *fakeAnswerer) Retrieve(_ context.Context, question string) ([]models.SearchResult, error) {
	f.questions = append(f.questions, question)
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	return []models.SearchResult{{Chunk: models.Chunk{Content: "ctx", Source: "document.pdf", PageNumber: 1}}}, nil
}

func (f *fakeAnswerer) Generate(_ context.Context, question string, results []models.SearchResult) (*models.PromptResponse, error) {
	if f.generateErr != nil {
		return nil, &rag.GenerationError{Err: f.generateErr}
	}
	return &models.PromptResponse{Query: question, Source: rag.FormatSources(results), Content: "answer to " + question}, nil
}

func TestIsExit(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"exit", true},
		{"  QUIT ", true},
		{"Sair", true},
		{"exit now", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsExit(tt.line); got != tt.want {
			t.Errorf("IsExit(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestRunTransitions(t *testing.T) {
	f := &fakeAnswerer{}
	var out bytes.Buffer
	s := NewSession(f, strings.NewReader("\n   \nWhat was the revenue?\nexit\nnever asked\n"), &out)

	var states []State
	s.OnState = func(st State) { states = append(states, st) }

	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(f.questions, []string{"What was the revenue?"}) {
		t.Errorf("unexpected questions %v", f.questions)
	}
	want := []State{AwaitingInput, AwaitingInput, AwaitingInput, Retrieving, Generating, Printing, AwaitingInput, Done}
	if !reflect.DeepEqual(states, want) {
		t.Errorf("states = %v, want %v", states, want)
	}
	if !strings.HasPrefix(out.String(), Banner) {
		t.Errorf("output should start with the banner: %q", out.String())
	}
	if !strings.Contains(out.String(), "\nANSWER: answer to What was the revenue?\n") {
		t.Errorf("answer missing from output: %q", out.String())
	}
	if s.State() != Done {
		t.Errorf("expected Done, got %v", s.State())
	}
}

func TestRunEOF(t *testing.T) {
	f := &fakeAnswerer{}
	var out bytes.Buffer
	s := NewSession(f, strings.NewReader("first question"), &out)

	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.questions) != 1 {
		t.Errorf("expected 1 question before EOF, got %d", len(f.questions))
	}
	if s.State() != Done {
		t.Errorf("expected Done, got %v", s.State())
	}
}

func TestRunErrorsContinue(t *testing.T) {
	f := &fakeAnswerer{retrieveErr: errors.New("error code 429: insufficient_quota")}
	var out bytes.Buffer
	s := NewSession(f, strings.NewReader("one\ntwo\nquit\n"), &out)

	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.questions) != 2 {
		t.Errorf("loop should continue after errors, got questions %v", f.questions)
	}
	if got := strings.Count(out.String(), "Quota or rate limit exceeded"); got != 2 {
		t.Errorf("expected 2 quota messages, got %d in %q", got, out.String())
	}
	if strings.Contains(out.String(), generationHint) {
		t.Error("retrieval errors should not carry the generation hint")
	}
}

func TestRunGenerationHint(t *testing.T) {
	f := &fakeAnswerer{generateErr: errors.New("model not found")}
	var out bytes.Buffer
	s := NewSession(f, strings.NewReader("one\nexit\n"), &out)

	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Unexpected error: generate answer: model not found") {
		t.Errorf("missing error message in %q", out.String())
	}
	if !strings.Contains(out.String(), generationHint) {
		t.Errorf("missing generation hint in %q", out.String())
	}
}

func TestRunCanceled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewSession(&fakeAnswerer{}, pr, io.Discard)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if s.State() != Done {
		t.Errorf("expected Done, got %v", s.State())
	}
}

func TestRunLongLine(t *testing.T) {
	long := strings.Repeat("a", 100*1024)
	f := &fakeAnswerer{}
	var out bytes.Buffer
	s := NewSession(f, strings.NewReader(long+"\nexit\n"), &out)

	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.questions) != 1 || len(f.questions[0]) != len(long) {
		t.Errorf("expected the 100 KiB question to be answered, got %d questions", len(f.questions))
	}
}

func TestRunLineTooLong(t *testing.T) {
	f := &fakeAnswerer{}
	var out bytes.Buffer
	s := NewSession(f, strings.NewReader(strings.Repeat("a", maxLineSize+1)+"\nexit\n"), &out)

	err := s.Run(context.Background())
	if err == nil {
		t.Fatal("expected an input error for an oversized line")
	}
	if !strings.Contains(out.String(), "Could not read input") {
		t.Errorf("input error not reported: %q", out.String())
	}
	if len(f.questions) != 0 {
		t.Errorf("no question should be asked, got %d", len(f.questions))
	}
	if s.State() != Done {
		t.Errorf("expected Done, got %v", s.State())
	}
}
