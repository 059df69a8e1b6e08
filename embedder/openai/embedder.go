package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"github.com/w-h-a/doctalk/embedder"
	"github.com/w-h-a/doctalk/errs"
	"github.com/w-h-a/doctalk/util/retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultModel      = "text-embedding-3-small"
	defaultDimensions = 1536
)

type openAIEmbedder struct {
	options embedder.Options
	client  *openai.Client
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return vecs[0], nil
}

func (e *openAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := embedder.CheckInputs(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += e.options.BatchSize {
		batch := texts[start:min(start+e.options.BatchSize, len(texts))]

		vecs, err := retry.Do(ctx, e.options.Retry, func(ctx context.Context) ([][]float32, error) {
			return e.create(ctx, batch)
		})
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}

		out = append(out, vecs...)
	}

	return out, nil
}

func (e *openAIEmbedder) create(ctx context.Context, batch []string) ([][]float32, error) {
	rsp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      batch,
		Model:      openai.EmbeddingModel(e.options.Model),
		Dimensions: e.options.Dimensions,
	})
	if err != nil {
		return nil, classify(err)
	}

	if len(rsp.Data) != len(batch) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", errs.ErrProviderRejected, len(rsp.Data), len(batch))
	}

	vecs := make([][]float32, len(batch))
	for _, d := range rsp.Data {
		if d.Index < 0 || d.Index >= len(batch) || vecs[d.Index] != nil {
			return nil, fmt.Errorf("%w: bad embedding index %d", errs.ErrProviderRejected, d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: no response from OpenAI", errs.ErrProviderRejected)
		}
		if e.options.Dimensions > 0 && len(d.Embedding) != e.options.Dimensions {
			return nil, fmt.Errorf("%w: embedding has %d dimensions, want %d", errs.ErrProviderRejected, len(d.Embedding), e.options.Dimensions)
		}
		vecs[d.Index] = d.Embedding
	}

	return vecs, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return errs.FromStatus(apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return errs.FromStatus(reqErr.HTTPStatusCode, err)
	}

	return errs.Provider(err)
}

func NewEmbedder(opts ...embedder.Option) embedder.Embedder {
	options := embedder.NewOptions(opts...)

	if len(options.Model) == 0 {
		options.Model = defaultModel
	}

	if options.Dimensions == 0 && options.Model == defaultModel {
		options.Dimensions = defaultDimensions
	}

	e := &openAIEmbedder{
		options: options,
	}

	cfg := openai.DefaultConfig(options.ApiKey)
	if len(options.BaseURL) > 0 {
		cfg.BaseURL = options.BaseURL
	}
	cfg.HTTPClient = &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	e.client = openai.NewClientWithConfig(cfg)

	return e
}
