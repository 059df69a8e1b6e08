package embedder

import (
	"context"

	"github.com/w-h-a/doctalk/util/retry"
)

type Option func(*Options)

type Options struct {
	ApiKey     string
	Model      string
	BaseURL    string
	Dimensions int
	BatchSize  int
	Retry      retry.Policy
	Context    context.Context
}

func WithApiKey(apiKey string) Option {
	return func(o *Options) {
		o.ApiKey = apiKey
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithBaseURL(url string) Option {
	return func(o *Options) {
		o.BaseURL = url
	}
}

// WithDimensions fixes the vector length. Zero leaves it to the model.
func WithDimensions(dimensions int) Option {
	return func(o *Options) {
		o.Dimensions = dimensions
	}
}

func WithBatchSize(size int) Option {
	return func(o *Options) {
		o.BatchSize = size
	}
}

func WithRetry(policy retry.Policy) Option {
	return func(o *Options) {
		o.Retry = policy
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		BatchSize: 100,
		Retry:     retry.DefaultPolicy(),
		Context:   context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.BatchSize <= 0 {
		options.BatchSize = 100
	}
	return options
}
