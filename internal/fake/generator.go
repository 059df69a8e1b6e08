package fake

import (
	"context"
	"sync"

	"github.com/w-h-a/doctalk/generator"
)

// Generator answers with Fn and records every conversation it was given.
type Generator struct {
	Fn func(messages []generator.Message) (string, error)

	mtx   sync.Mutex
	calls [][]generator.Message
}

func (g *Generator) Generate(ctx context.Context, messages []generator.Message) (string, error) {
	g.mtx.Lock()
	g.calls = append(g.calls, append([]generator.Message(nil), messages...))
	g.mtx.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	return g.Fn(messages)
}

func (g *Generator) Calls() [][]generator.Message {
	g.mtx.Lock()
	defer g.mtx.Unlock()

	return append([][]generator.Message(nil), g.calls...)
}
