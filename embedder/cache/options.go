package cache

import (
	"context"
	"time"

	"github.com/w-h-a/doctalk/embedder"
)

type clientKey struct{}

type ttlKey struct{}

func WithClient(c Client) embedder.Option {
	return func(o *embedder.Options) {
		o.Context = context.WithValue(o.Context, clientKey{}, c)
	}
}

func ClientFrom(ctx context.Context) (Client, bool) {
	c, ok := ctx.Value(clientKey{}).(Client)
	return c, ok
}

// WithTTL sets how long cached vectors live. Zero keeps them forever.
func WithTTL(ttl time.Duration) embedder.Option {
	return func(o *embedder.Options) {
		o.Context = context.WithValue(o.Context, ttlKey{}, ttl)
	}
}

func TTLFrom(ctx context.Context) (time.Duration, bool) {
	ttl, ok := ctx.Value(ttlKey{}).(time.Duration)
	return ttl, ok
}
