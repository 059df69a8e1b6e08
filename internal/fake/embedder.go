// Package fake holds deterministic provider stand-ins for tests.
package fake

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/w-h-a/doctalk/embedder"
)

const Dimensions = 256

// Embedder hashes lower-cased words into a bag-of-words vector, so texts
// sharing words are similar.
type Embedder struct {
	Err error

	mtx   sync.Mutex
	calls [][]string
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mtx.Lock()
	e.calls = append(e.calls, append([]string(nil), texts...))
	e.mtx.Unlock()

	if e.Err != nil {
		return nil, e.Err
	}

	if err := embedder.CheckInputs(texts); err != nil {
		return nil, err
	}

	vecs := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vecs = append(vecs, Vector(text))
	}

	return vecs, nil
}

// Calls returns the batches seen so far.
func (e *Embedder) Calls() [][]string {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	return append([][]string(nil), e.calls...)
}

func Vector(text string) []float32 {
	vec := make([]float32, Dimensions)
	for _, word := range Words(text) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%Dimensions]++
	}
	return vec
}

func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
