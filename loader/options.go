package loader

import "context"

type Option func(*Options)

type Options struct {
	// Raw skips normalization.
	Raw     bool
	Context context.Context
}

func WithRaw(raw bool) Option {
	return func(o *Options) {
		o.Raw = raw
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
