package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

type Service struct {
	answerer Answerer
}

// Run answers the questions in r, one per line, strictly in order and
// writes each question and answer block to w once the answer is known.
// Blank lines are skipped. It stops at the first failure and returns how many questions
// were answered.
func (s *Service) Run(ctx context.Context, r io.Reader, w io.Writer) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	answered := 0

	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		if len(question) == 0 {
			continue
		}

		if err := ctx.Err(); err != nil {
			return answered, err
		}

		i := answered + 1

		answer, err := s.answerer.Answer(ctx, question)
		if err != nil {
			slog.ErrorContext(ctx, "failed to answer question", "index", i, "question", question, "error", err)
			return answered, fmt.Errorf("question %d: %w", i, err)
		}

		// a failed question leaves no partial block behind
		if _, err := fmt.Fprintf(w, "Answering question %d: %s\n\nAnswer to question %d:\n\n%s\n\n", i, question, i, answer); err != nil {
			return answered, err
		}

		answered = i
	}

	if err := scanner.Err(); err != nil {
		return answered, fmt.Errorf("read questions: %w", err)
	}

	return answered, nil
}

func New(answerer Answerer) *Service {
	return &Service{
		answerer: answerer,
	}
}
