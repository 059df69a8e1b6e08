package splitter

import "context"

const (
	DefaultChunkSize    = 1024
	DefaultChunkOverlap = 80
)

// DefaultSeparators go from coarsest to finest: paragraph, line, sentence,
// word. Text that none of them can break is cut by length.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

type Option func(*Options)

type Options struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
	Context      context.Context
}

func WithChunkSize(size int) Option {
	return func(o *Options) {
		o.ChunkSize = size
	}
}

func WithChunkOverlap(overlap int) Option {
	return func(o *Options) {
		o.ChunkOverlap = overlap
	}
}

func WithSeparators(separators ...string) Option {
	return func(o *Options) {
		o.Separators = separators
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separators:   DefaultSeparators,
		Context:      context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.ChunkSize <= 0 {
		options.ChunkSize = DefaultChunkSize
	}
	if options.ChunkOverlap < 0 {
		options.ChunkOverlap = 0
	}
	if options.ChunkOverlap >= options.ChunkSize {
		options.ChunkOverlap = options.ChunkSize / 2
	}

	return options
}
