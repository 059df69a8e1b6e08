package http

import (
	"context"
	"net/http"
	"time"

	"github.com/w-h-a/doctalk/server"
)

type middlewareKey struct{}

type answerTimeoutKey struct{}

// WithMiddleware wraps every route, outermost first.
func WithMiddleware(ms ...func(h http.Handler) http.Handler) server.Option {
	return func(o *server.Options) {
		o.Context = context.WithValue(o.Context, middlewareKey{}, ms)
	}
}

func MiddlewareFrom(ctx context.Context) ([]func(h http.Handler) http.Handler, bool) {
	ms, ok := ctx.Value(middlewareKey{}).([]func(h http.Handler) http.Handler)
	return ms, ok
}

// WithAnswerTimeout bounds how long one question may take, provider calls
// and retries included. Zero leaves it to the client.
func WithAnswerTimeout(d time.Duration) server.Option {
	return func(o *server.Options) {
		o.Context = context.WithValue(o.Context, answerTimeoutKey{}, d)
	}
}

func AnswerTimeoutFrom(ctx context.Context) (time.Duration, bool) {
	d, ok := ctx.Value(answerTimeoutKey{}).(time.Duration)
	return d, ok
}
