package splitter

import "iter"

type Splitter interface {
	// Split returns the chunks of text in order. The sequence is lazy and
	// can be ranged over more than once.
	Split(text string) iter.Seq[Chunk]
}

// Chunk is the rune range [Start, End) of the split text.
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

func (c Chunk) Len() int {
	return c.End - c.Start
}
