package google

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/w-h-a/doctalk/embedder"
	"github.com/w-h-a/doctalk/errs"
	"github.com/w-h-a/doctalk/util/retry"
	genaiopt "google.golang.org/api/option"
)

const defaultModel = "text-embedding-004"

type googleEmbedder struct {
	options embedder.Options
	client  *genai.Client
}

func (e *googleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return vecs[0], nil
}

func (e *googleEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := embedder.CheckInputs(texts); err != nil {
		return nil, err
	}

	model := e.client.EmbeddingModel(e.options.Model)

	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += e.options.BatchSize {
		batch := texts[start:min(start+e.options.BatchSize, len(texts))]

		vecs, err := retry.Do(ctx, e.options.Retry, func(ctx context.Context) ([][]float32, error) {
			b := model.NewBatch()
			for _, text := range batch {
				b.AddContent(genai.Text(text))
			}

			rsp, err := model.BatchEmbedContents(ctx, b)
			if err != nil {
				return nil, errs.FromGRPC(err)
			}

			return e.vectors(rsp, len(batch))
		})
		if err != nil {
			return nil, fmt.Errorf("google embeddings: %w", err)
		}

		out = append(out, vecs...)
	}

	return out, nil
}

func (e *googleEmbedder) vectors(rsp *genai.BatchEmbedContentsResponse, want int) ([][]float32, error) {
	if rsp == nil || len(rsp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no response from Google", errs.ErrProviderRejected)
	}

	if len(rsp.Embeddings) != want {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", errs.ErrProviderRejected, len(rsp.Embeddings), want)
	}

	vecs := make([][]float32, 0, want)
	for _, emb := range rsp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("%w: no response from Google", errs.ErrProviderRejected)
		}
		if e.options.Dimensions > 0 && len(emb.Values) != e.options.Dimensions {
			return nil, fmt.Errorf("%w: embedding has %d dimensions, want %d", errs.ErrProviderRejected, len(emb.Values), e.options.Dimensions)
		}
		vecs = append(vecs, emb.Values)
	}

	return vecs, nil
}

func NewEmbedder(opts ...embedder.Option) (embedder.Embedder, error) {
	options := embedder.NewOptions(opts...)

	if len(options.Model) == 0 {
		options.Model = defaultModel
	}

	e := &googleEmbedder{
		options: options,
	}

	clientOpts := []genaiopt.ClientOption{
		genaiopt.WithAPIKey(options.ApiKey),
	}
	if len(options.BaseURL) > 0 {
		clientOpts = append(clientOpts, genaiopt.WithEndpoint(options.BaseURL))
	}

	client, err := genai.NewClient(context.Background(), clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("google embedder client: %w", err)
	}

	e.client = client

	return e, nil
}
