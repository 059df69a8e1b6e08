package generator

import (
	"context"

	"github.com/w-h-a/doctalk/util/retry"
)

type Option func(*Options)

type Options struct {
	ApiKey       string
	Model        string
	BaseURL      string
	PromptPrefix string
	Temperature  float64
	MaxTokens    int
	Retry        retry.Policy
	Context      context.Context
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

func WithPromptPrefix(prefix string) Option {
	return func(o *Options) {
		o.PromptPrefix = prefix
	}
}

func WithTemperature(temperature float64) Option {
	return func(o *Options) {
		o.Temperature = temperature
	}
}

func WithMaxTokens(maxTokens int) Option {
	return func(o *Options) {
		o.MaxTokens = maxTokens
	}
}

func WithRetry(policy retry.Policy) Option {
	return func(o *Options) {
		o.Retry = policy
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		MaxTokens: 1024,
		Retry:     retry.DefaultPolicy(),
		Context:   context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// WithPrefix applies PromptPrefix to the last user message.
func (o Options) WithPrefix(messages []Message) []Message {
	if len(o.PromptPrefix) == 0 {
		return messages
	}

	cpy := make([]Message, len(messages))
	copy(cpy, messages)

	for i := len(cpy) - 1; i >= 0; i-- {
		if cpy[i].Role == RoleUser {
			cpy[i].Content = o.PromptPrefix + "\n" + cpy[i].Content
			break
		}
	}

	return cpy
}
