// Package chat runs the interactive question loop on top of rag.Answerer.
package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/models"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/providererr"
	"github.com/danilosong/langchain-pgvector-rag-fullcycle/internal/rag"
)

const (
	Banner = "Starting chat... (type 'exit' to quit)"
	Prompt = "\nAsk your question: "

	generationHint = "Hint: the chat model failed; check the configured chat model and the provider status."
)

type State int

const (
	AwaitingInput State = iota
	Retrieving
	Generating
	Printing
	Done
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "awaiting_input"
	case Retrieving:
		return "retrieving"
	case Generating:
		return "generating"
	case Printing:
		return "printing"
	default:
		return "done"
	}
}

var exitWords = map[string]bool{"exit": true, "quit": true, "sair": true}

// IsExit reports whether line asks to leave the loop.
func IsExit(line string) bool {
	return exitWords[strings.ToLower(strings.TrimSpace(line))]
}

// Answerer is satisfied by *rag.Answerer.
type Answerer interface {
	Retrieve(ctx context.Context, question string) ([]models.SearchResult, error)
	Generate(ctx context.Context, question string, results []models.SearchResult) (*models.PromptResponse, error)
}

type Session struct {
	answerer Answerer
	in       io.Reader
	out      io.Writer

	state State
	// OnState, when set, observes every transition.
	OnState func(State)
}

func NewSession(answerer Answerer, in io.Reader, out io.Writer) *Session {
	return &Session{answerer: answerer, in: in, out: out, state: AwaitingInput}
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) setState(st State) {
	s.state = st
	if s.OnState != nil {
		s.OnState(st)
	}
}

// maxLineSize bounds a single question read from input.
const maxLineSize = 1 << 20

// input pumps lines from a reader. err is set before lines is closed.
type input struct {
	lines chan string
	err   error
}

// readLines pumps lines from r until EOF or ctx is done. The channel is
// closed when input ends.
func readLines(ctx context.Context, r io.Reader) *input {
	in := &input{lines: make(chan string)}
	go func() {
		defer close(in.lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case in.lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		in.err = scanner.Err()
	}()
	return in
}

// Run reads questions until an exit word, end of input or cancellation of
// ctx. Errors of a single turn are reported and the loop continues. An
// unreadable input, such as a line over maxLineSize, ends the loop with an
// error.
func (s *Session) Run(ctx context.Context) error {
	pumpCtx, stop := context.WithCancel(ctx)
	defer stop()
	in := readLines(pumpCtx, s.in)
	fmt.Fprintln(s.out, Banner)

	for {
		s.setState(AwaitingInput)
		fmt.Fprint(s.out, Prompt)

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			s.setState(Done)
			return nil
		case line, ok = <-in.lines:
		}
		if !ok {
			fmt.Fprintln(s.out)
			s.setState(Done)
			if in.err != nil {
				fmt.Fprintf(s.out, "Could not read input: %v\n", in.err)
				return fmt.Errorf("read input: %w", in.err)
			}
			return nil
		}

		question := strings.TrimSpace(line)
		if question == "" {
			continue
		}
		if IsExit(question) {
			s.setState(Done)
			return nil
		}

		s.turn(ctx, question)
		if ctx.Err() != nil {
			s.setState(Done)
			return nil
		}
	}
}

func (s *Session) turn(ctx context.Context, question string) {
	s.setState(Retrieving)
	results, err := s.answerer.Retrieve(ctx, question)
	if err != nil {
		s.report(err)
		return
	}

	s.setState(Generating)
	resp, err := s.answerer.Generate(ctx, question, results)
	if err != nil {
		s.report(err)
		return
	}

	s.setState(Printing)
	fmt.Fprintf(s.out, "\nANSWER: %s\n", resp.Content)
	log.Debug().Str("sources", resp.Source).Msg("Answer context")
}

func (s *Session) report(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	log.Debug().Err(err).Str("kind", providererr.Classify(err).String()).Msg("Turn failed")
	fmt.Fprintln(s.out, providererr.Describe(err))

	var genErr *rag.GenerationError
	if errors.As(err, &genErr) {
		fmt.Fprintln(s.out, generationHint)
	}
}
