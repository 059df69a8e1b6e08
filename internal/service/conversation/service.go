package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/w-h-a/doctalk/embedder"
	"github.com/w-h-a/doctalk/generator"
	"github.com/w-h-a/doctalk/memory"
	"github.com/w-h-a/doctalk/storer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultTopK = 5
	// candidates fetched per kept chunk when reranking
	fetchFactor = 4
)

var ErrEmptyQuestion = errors.New("question is empty")

var tracer = otel.Tracer("github.com/w-h-a/doctalk/internal/service/conversation")

type Service struct {
	embedder  embedder.Embedder
	generator generator.Generator
	storer    storer.Storer
	history   *memory.Buffer
	topK      int
	condense  bool
	relevance float64
	mtx       sync.Mutex
}

// Answer answers question from the indexed document and the conversation
// so far. History only grows when an answer is produced.
func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if len(question) == 0 {
		return "", ErrEmptyQuestion
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	ctx, span := tracer.Start(ctx, "answer")
	defer span.End()

	turns := s.history.Turns()

	standalone, err := s.standalone(ctx, turns, question)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	vec, err := s.embedder.Embed(ctx, standalone)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("embed question: %w", err)
	}

	records, err := s.retrieve(ctx, vec)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	span.SetAttributes(
		attribute.Int("doctalk.history", len(turns)),
		attribute.Int("doctalk.retrieved", len(records)),
	)

	answer, err := s.generator.Generate(ctx, messages(records, turns, question))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("generate answer: %w", err)
	}

	answer = strings.TrimSpace(answer)

	s.history.Append(question, answer)

	slog.DebugContext(ctx, "answered question", "question", question, "standalone", standalone, "retrieved", len(records))

	return answer, nil
}

// History returns every answered turn, oldest first.
func (s *Service) History() []memory.Turn {
	return s.history.All()
}

func (s *Service) retrieve(ctx context.Context, vec []float32) ([]storer.Record, error) {
	if s.relevance >= 1 {
		records, err := s.storer.Search(ctx, vec, s.topK)
		if err != nil {
			return nil, fmt.Errorf("search index: %w", err)
		}
		return records, nil
	}

	candidates, err := s.storer.Search(ctx, vec, s.topK*fetchFactor)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	return storer.Diversify(candidates, s.topK, s.relevance), nil
}

func (s *Service) standalone(ctx context.Context, turns []memory.Turn, question string) (string, error) {
	if !s.condense || len(turns) == 0 {
		return question, nil
	}

	rewritten, err := s.generator.Generate(ctx, []generator.Message{
		{Role: generator.RoleUser, Content: condensePrompt(turns, question)},
	})
	if err != nil {
		return "", fmt.Errorf("condense question: %w", err)
	}

	rewritten = strings.TrimSpace(rewritten)
	if len(rewritten) == 0 {
		return question, nil
	}

	return rewritten, nil
}

func messages(records []storer.Record, turns []memory.Turn, question string) []generator.Message {
	msgs := make([]generator.Message, 0, 2+2*len(turns))

	msgs = append(msgs, generator.Message{Role: generator.RoleSystem, Content: systemPrompt(records)})

	for _, turn := range turns {
		msgs = append(msgs,
			generator.Message{Role: generator.RoleUser, Content: turn.Question},
			generator.Message{Role: generator.RoleAssistant, Content: turn.Answer},
		)
	}

	msgs = append(msgs, generator.Message{Role: generator.RoleUser, Content: userPrompt(question)})

	return msgs
}

func New(
	embedder embedder.Embedder,
	generator generator.Generator,
	storer storer.Storer,
	history *memory.Buffer,
	topK int,
	condense bool,
	relevance float64,
) *Service {
	if topK <= 0 {
		topK = defaultTopK
	}

	if history == nil {
		history = memory.NewBuffer()
	}

	return &Service{
		embedder:  embedder,
		generator: generator,
		storer:    storer,
		history:   history,
		topK:      topK,
		condense:  condense,
		relevance: relevance,
		mtx:       sync.Mutex{},
	}
}
