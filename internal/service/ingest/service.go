package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/w-h-a/doctalk/embedder"
	"github.com/w-h-a/doctalk/errs"
	"github.com/w-h-a/doctalk/loader"
	"github.com/w-h-a/doctalk/splitter"
	"github.com/w-h-a/doctalk/storer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize   = 64
	defaultConcurrency = 4
)

var tracer = otel.Tracer("github.com/w-h-a/doctalk/internal/service/ingest")

type Service struct {
	splitter    splitter.Splitter
	embedder    embedder.Embedder
	storer      storer.Storer
	batchSize   int
	concurrency int
}

// Ingest splits doc, embeds every chunk and upserts the records into the
// index. It returns the number of chunks indexed.
func (s *Service) Ingest(ctx context.Context, doc loader.Document) (int, error) {
	ctx, span := tracer.Start(ctx, "ingest")
	defer span.End()

	var chunks []splitter.Chunk
	for chunk := range s.splitter.Split(doc.Content) {
		if len(strings.TrimSpace(chunk.Text)) == 0 {
			continue
		}
		chunks = append(chunks, chunk)
	}

	span.SetAttributes(
		attribute.String("doctalk.source", doc.Source),
		attribute.Int("doctalk.chunks", len(chunks)),
	)

	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: %s", errs.ErrEmptyDocument, doc.Source)
	}

	vecs := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))

		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, chunk := range chunks[start:end] {
				texts = append(texts, chunk.Text)
			}

			batch, err := s.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
			}

			if len(batch) != len(texts) {
				return fmt.Errorf("%w: got %d vectors for %d chunks", errs.ErrProviderRejected, len(batch), len(texts))
			}

			copy(vecs[start:end], batch)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		slog.ErrorContext(ctx, "failed to embed document", "source", doc.Source, "error", err)
		return 0, err
	}

	records := make([]storer.Record, 0, len(chunks))
	for i, chunk := range chunks {
		records = append(records, storer.Record{
			Id:        uuid.New().String(),
			Index:     chunk.Index,
			Source:    doc.Source,
			Content:   chunk.Text,
			Embedding: vecs[i],
		})
	}

	if err := s.storer.Upsert(ctx, records...); err != nil {
		span.RecordError(err)
		slog.ErrorContext(ctx, "failed to index document", "source", doc.Source, "error", err)
		return 0, fmt.Errorf("upsert chunks: %w", err)
	}

	slog.InfoContext(ctx, "indexed document", "source", doc.Source, "chunks", len(records))

	return len(records), nil
}

func New(
	splitter splitter.Splitter,
	embedder embedder.Embedder,
	storer storer.Storer,
	batchSize int,
	concurrency int,
) *Service {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &Service{
		splitter:    splitter,
		embedder:    embedder,
		storer:      storer,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}
