package embedder

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyInput = errors.New("embedding input is empty")

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

func CheckInputs(texts []string) error {
	if len(texts) == 0 {
		return ErrEmptyInput
	}
	for i, text := range texts {
		if len(strings.TrimSpace(text)) == 0 {
			return fmt.Errorf("%w: input %d", ErrEmptyInput, i)
		}
	}
	return nil
}
