package doctalk

import (
	"github.com/w-h-a/doctalk/splitter"
)

type Option func(*Options)

type Options struct {
	Splitter      splitter.Splitter
	TopK          int
	HistoryWindow int
	Condense      bool
	Relevance     float64
	Concurrency   int
	BatchSize     int
}

func WithSplitter(s splitter.Splitter) Option {
	return func(o *Options) {
		o.Splitter = s
	}
}

// WithTopK sets how many chunks are retrieved per question.
func WithTopK(k int) Option {
	return func(o *Options) {
		o.TopK = k
	}
}

// WithHistoryWindow limits how many past turns are sent with each
// question. Zero sends them all.
func WithHistoryWindow(n int) Option {
	return func(o *Options) {
		o.HistoryWindow = n
	}
}

// WithCondense toggles rewriting follow-up questions into standalone ones
// before retrieval.
func WithCondense(condense bool) Option {
	return func(o *Options) {
		o.Condense = condense
	}
}

// WithRelevance below 1 reranks retrieved chunks by maximal marginal
// relevance, trading similarity to the question for variety.
func WithRelevance(relevance float64) Option {
	return func(o *Options) {
		o.Relevance = relevance
	}
}

// WithConcurrency bounds how many embedding batches run at once during
// ingest.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		o.Concurrency = n
	}
}

func WithBatchSize(n int) Option {
	return func(o *Options) {
		o.BatchSize = n
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		TopK:      5,
		Condense:  true,
		Relevance: 1,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
