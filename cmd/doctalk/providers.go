package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/w-h-a/doctalk/embedder"
	"github.com/w-h-a/doctalk/embedder/cache"
	googleembedder "github.com/w-h-a/doctalk/embedder/google"
	openaiembedder "github.com/w-h-a/doctalk/embedder/openai"
	"github.com/w-h-a/doctalk/generator"
	anthropicgenerator "github.com/w-h-a/doctalk/generator/anthropic"
	googlegenerator "github.com/w-h-a/doctalk/generator/google"
	openaigenerator "github.com/w-h-a/doctalk/generator/openai"
	"github.com/w-h-a/doctalk/loader"
	"github.com/w-h-a/doctalk/loader/pdf"
	"github.com/w-h-a/doctalk/loader/text"
	"github.com/w-h-a/doctalk/storer"
	memorystorer "github.com/w-h-a/doctalk/storer/memory"
	"github.com/w-h-a/doctalk/storer/milvus"
	"github.com/w-h-a/doctalk/storer/neo4j"
	"github.com/w-h-a/doctalk/storer/postgres"
	"github.com/w-h-a/doctalk/storer/qdrant"
)

func newLoader(path string) loader.Loader {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return pdf.NewLoader()
	}
	return text.NewLoader()
}

// newEmbedder returns the configured embedder, wrapped in the redis cache
// when one is configured, and a func releasing the cache connection.
func newEmbedder(ctx context.Context) (embedder.Embedder, func(), error) {
	opts := []embedder.Option{
		embedder.WithModel(cfg.EmbedderModel),
		embedder.WithDimensions(cfg.Dimensions),
	}

	var e embedder.Embedder

	switch cfg.Embedder {
	case "google":
		g, err := googleembedder.NewEmbedder(append(opts, embedder.WithApiKey(cfg.GoogleApiKey))...)
		if err != nil {
			return nil, nil, err
		}
		e = g
	default:
		e = openaiembedder.NewEmbedder(append(opts,
			embedder.WithApiKey(cfg.OpenaiApiKey),
			embedder.WithBaseURL(cfg.BaseURL),
		)...)
	}

	if len(cfg.CacheLocation) == 0 {
		return e, func() {}, nil
	}

	client, err := cache.Connect(ctx, cfg.CacheLocation, cfg.CachePassword, 0)
	if err != nil {
		return nil, nil, err
	}

	// Key on the provider too since an empty model means its default
	cached, err := cache.NewEmbedder(
		e,
		embedder.WithModel(cfg.Embedder+"/"+cfg.EmbedderModel),
		embedder.WithDimensions(cfg.Dimensions),
		cache.WithClient(client),
		cache.WithTTL(cfg.CacheTTL),
	)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	return cached, func() { client.Close() }, nil
}

func newGenerator() (generator.Generator, error) {
	opts := []generator.Option{
		generator.WithModel(cfg.Model),
		generator.WithTemperature(cfg.Temperature),
		generator.WithMaxTokens(cfg.MaxTokens),
	}

	switch cfg.Generator {
	case "anthropic":
		return anthropicgenerator.NewGenerator(append(opts, generator.WithApiKey(cfg.AnthropicApiKey))...), nil
	case "google":
		return googlegenerator.NewGenerator(append(opts, generator.WithApiKey(cfg.GoogleApiKey))...)
	default:
		return openaigenerator.NewGenerator(append(opts,
			generator.WithApiKey(cfg.OpenaiApiKey),
			generator.WithBaseURL(cfg.BaseURL),
		)...), nil
	}
}

func newStorer(ctx context.Context, e embedder.Embedder) (storer.Storer, error) {
	opts := []storer.Option{
		storer.WithLocation(cfg.StoreLocation),
		storer.WithApiKey(cfg.StoreApiKey),
		storer.WithCollection(cfg.StoreCollection),
	}

	switch cfg.Store {
	case "postgres":
		return postgres.NewStorer(opts...)
	case "qdrant", "milvus", "neo4j":
		size, err := vectorSize(ctx, e)
		if err != nil {
			return nil, err
		}
		opts = append(opts, storer.WithVectorSize(size))
		switch cfg.Store {
		case "qdrant":
			return qdrant.NewStorer(opts...)
		case "milvus":
			return milvus.NewStorer(opts...)
		default:
			return neo4j.NewStorer(opts...)
		}
	default:
		return memorystorer.NewStorer(opts...), nil
	}
}

// vectorSize is the configured dimension count or, when that is zero, the
// length of a probe embedding.
func vectorSize(ctx context.Context, e embedder.Embedder) (int, error) {
	if cfg.Dimensions > 0 {
		return cfg.Dimensions, nil
	}

	vec, err := e.Embed(ctx, "doctalk")
	if err != nil {
		return 0, fmt.Errorf("probe embedding size: %w", err)
	}

	return len(vec), nil
}
