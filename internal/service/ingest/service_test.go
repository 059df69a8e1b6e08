package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/doctalk/errs"
	"github.com/w-h-a/doctalk/internal/fake"
	"github.com/w-h-a/doctalk/loader"
	"github.com/w-h-a/doctalk/splitter"
	"github.com/w-h-a/doctalk/splitter/recursive"
	"github.com/w-h-a/doctalk/storer/memory"
)

const doc = "Paris is the capital of France.\nBerlin is the capital of Germany.\nMadrid is the capital of Spain.\nRome is the capital of Italy."

func TestIngest_IndexesEveryChunk(t *testing.T) {
	sp := recursive.NewSplitter(splitter.WithChunkSize(40), splitter.WithChunkOverlap(0))
	emb := &fake.Embedder{}
	st := memory.NewStorer()

	want := 0
	for range sp.Split(doc) {
		want++
	}
	require.Greater(t, want, 2)

	n, err := New(sp, emb, st, 1, 2).Ingest(context.Background(), loader.Document{Source: "doc.txt", Content: doc})
	require.NoError(t, err)
	assert.Equal(t, want, n)

	assert.Len(t, emb.Calls(), want, "one embedding call per batch of one")

	got, err := st.Search(context.Background(), fake.Vector("Berlin Germany"), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Content, "Berlin")
	assert.Equal(t, "doc.txt", got[0].Source)

	all, err := st.Search(context.Background(), fake.Vector("capital"), 100)
	require.NoError(t, err)
	assert.Len(t, all, want)
}

func TestIngest_PreservesChunkOrderAcrossBatches(t *testing.T) {
	sp := recursive.NewSplitter(splitter.WithChunkSize(40), splitter.WithChunkOverlap(0))
	st := memory.NewStorer()

	_, err := New(sp, &fake.Embedder{}, st, 2, 4).Ingest(context.Background(), loader.Document{Content: doc})
	require.NoError(t, err)

	var chunks []splitter.Chunk
	for chunk := range sp.Split(doc) {
		chunks = append(chunks, chunk)
	}

	for _, chunk := range chunks {
		got, err := st.Search(context.Background(), fake.Vector(chunk.Text), 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, chunk.Text, got[0].Content)
		assert.Equal(t, chunk.Index, got[0].Index)
	}
}

func TestIngest_EmptyDocument(t *testing.T) {
	svc := New(recursive.NewSplitter(), &fake.Embedder{}, memory.NewStorer(), 0, 0)

	for _, content := range []string{"", "   \n\n  "} {
		n, err := svc.Ingest(context.Background(), loader.Document{Source: "empty.txt", Content: content})
		assert.ErrorIs(t, err, errs.ErrEmptyDocument)
		assert.Equal(t, 0, n)
	}
}

func TestIngest_EmbedderFailureIndexesNothing(t *testing.T) {
	st := memory.NewStorer()
	emb := &fake.Embedder{Err: errs.ErrProviderUnavailable}

	_, err := New(recursive.NewSplitter(), emb, st, 0, 0).Ingest(context.Background(), loader.Document{Content: doc})
	require.ErrorIs(t, err, errs.ErrProviderUnavailable)

	got, err := st.Search(context.Background(), fake.Vector("Paris"), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIngest_StorerFailure(t *testing.T) {
	boom := errors.New("disk full")

	_, err := New(recursive.NewSplitter(), &fake.Embedder{}, &fake.Storer{Err: boom}, 0, 0).Ingest(context.Background(), loader.Document{Content: doc})

	assert.ErrorIs(t, err, boom)
}
