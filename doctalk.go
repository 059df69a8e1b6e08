// Package doctalk answers questions about a single document. A DocTalk
// indexes the document once, then answers questions in order, each with the
// conversation so far in view.
package doctalk

import (
	"context"
	"io"

	"github.com/w-h-a/doctalk/embedder"
	"github.com/w-h-a/doctalk/generator"
	"github.com/w-h-a/doctalk/internal/service/batch"
	"github.com/w-h-a/doctalk/internal/service/conversation"
	"github.com/w-h-a/doctalk/internal/service/ingest"
	"github.com/w-h-a/doctalk/loader"
	"github.com/w-h-a/doctalk/memory"
	"github.com/w-h-a/doctalk/splitter/recursive"
	"github.com/w-h-a/doctalk/storer"
)

const RefusalText = conversation.RefusalText

var ErrEmptyQuestion = conversation.ErrEmptyQuestion

type DocTalk struct {
	ingest       *ingest.Service
	conversation *conversation.Service
	batch        *batch.Service
	storer       storer.Storer
}

// Ingest indexes doc and returns the number of chunks.
func (d *DocTalk) Ingest(ctx context.Context, doc loader.Document) (int, error) {
	return d.ingest.Ingest(ctx, doc)
}

func (d *DocTalk) Answer(ctx context.Context, question string) (string, error) {
	return d.conversation.Answer(ctx, question)
}

func (d *DocTalk) History() []memory.Turn {
	return d.conversation.History()
}

// Run answers every question in questions, one per line, writing the
// answers to out. It returns the number of answered questions.
func (d *DocTalk) Run(ctx context.Context, questions io.Reader, out io.Writer) (int, error) {
	return d.batch.Run(ctx, questions, out)
}

// Close releases the index.
func (d *DocTalk) Close() error {
	return d.storer.Close()
}

func New(
	embedder embedder.Embedder,
	generator generator.Generator,
	storer storer.Storer,
	opts ...Option,
) *DocTalk {
	options := NewOptions(opts...)

	if options.Splitter == nil {
		options.Splitter = recursive.NewSplitter()
	}

	ingest := ingest.New(
		options.Splitter,
		embedder,
		storer,
		options.BatchSize,
		options.Concurrency,
	)

	conversation := conversation.New(
		embedder,
		generator,
		storer,
		memory.NewBuffer(memory.WithWindow(options.HistoryWindow)),
		options.TopK,
		options.Condense,
		options.Relevance,
	)

	batch := batch.New(
		conversation,
	)

	d := &DocTalk{
		ingest:       ingest,
		conversation: conversation,
		batch:        batch,
		storer:       storer,
	}

	return d
}
