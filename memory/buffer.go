// Package memory keeps the question and answer history of one session.
package memory

import "sync"

type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Option func(*Buffer)

// WithWindow limits Turns to the most recent n turns. Zero keeps them all.
func WithWindow(n int) Option {
	return func(b *Buffer) {
		if n < 0 {
			n = 0
		}
		b.window = n
	}
}

type Buffer struct {
	turns  []Turn
	window int
	mtx    sync.RWMutex
}

func (b *Buffer) Append(question, answer string) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	b.turns = append(b.turns, Turn{Question: question, Answer: answer})
}

// Turns returns a copy, oldest first.
func (b *Buffer) Turns() []Turn {
	b.mtx.RLock()
	defer b.mtx.RUnlock()

	turns := b.turns
	if b.window > 0 && len(turns) > b.window {
		turns = turns[len(turns)-b.window:]
	}

	cpy := make([]Turn, len(turns))
	copy(cpy, turns)

	return cpy
}

// All ignores the window.
func (b *Buffer) All() []Turn {
	b.mtx.RLock()
	defer b.mtx.RUnlock()

	cpy := make([]Turn, len(b.turns))
	copy(cpy, b.turns)

	return cpy
}

func (b *Buffer) Len() int {
	b.mtx.RLock()
	defer b.mtx.RUnlock()

	return len(b.turns)
}

func (b *Buffer) Reset() {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	b.turns = nil
}

func NewBuffer(opts ...Option) *Buffer {
	b := &Buffer{
		turns: []Turn{},
		mtx:   sync.RWMutex{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}
