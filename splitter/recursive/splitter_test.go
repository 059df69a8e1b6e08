package recursive

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/doctalk/splitter"
)

func collect(s splitter.Splitter, text string) []splitter.Chunk {
	return slices.Collect(s.Split(text))
}

// reconstruct drops the overlapping prefix of every chunk after the first.
func reconstruct(chunks []splitter.Chunk) string {
	var sb strings.Builder
	prevEnd := 0
	for _, c := range chunks {
		skip := prevEnd - c.Start
		sb.WriteString(string([]rune(c.Text)[skip:]))
		prevEnd = c.End
	}
	return sb.String()
}

func requireChunkInvariants(t *testing.T, text string, chunks []splitter.Chunk, size, overlap int) {
	t.Helper()

	runes := []rune(text)
	require.NotEmpty(t, chunks)
	require.Equal(t, 0, chunks[0].Start)
	require.Equal(t, len(runes), chunks[len(chunks)-1].End)

	for i, c := range chunks {
		require.Equal(t, i, c.Index)
		require.LessOrEqual(t, utf8.RuneCountInString(c.Text), size, "chunk %d too long", i)
		require.Equal(t, string(runes[c.Start:c.End]), c.Text, "chunk %d is not a substring at its offsets", i)

		if i == 0 {
			continue
		}
		prev := chunks[i-1]
		require.LessOrEqual(t, c.Start, prev.End, "gap before chunk %d", i)
		require.Greater(t, c.End, prev.End, "chunk %d adds nothing", i)
		require.LessOrEqual(t, prev.End-c.Start, overlap, "overlap before chunk %d", i)
	}

	require.Equal(t, text, reconstruct(chunks))
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	s := NewSplitter()
	text := "Paris is the capital of France.\nIt has a population of over 2 million."

	chunks := collect(s, text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, utf8.RuneCountInString(text), chunks[0].End)
}

func TestSplit_EmptyText(t *testing.T) {
	assert.Empty(t, collect(NewSplitter(), ""))
}

func TestSplit_PrefersParagraphs(t *testing.T) {
	para1 := strings.Repeat("a", 600)
	para2 := strings.Repeat("b", 600)
	text := para1 + "\n\n" + para2

	chunks := collect(NewSplitter(), text)

	require.Len(t, chunks, 2)
	assert.Equal(t, para1+"\n\n", chunks[0].Text)
	assert.Equal(t, para2, chunks[1].Text)
	requireChunkInvariants(t, text, chunks, 1024, 80)
}

func TestSplit_PrefersSentencesOverWords(t *testing.T) {
	var sb strings.Builder
	for i := range 120 {
		sb.WriteString(fmt.Sprintf("Sentence number %03d is right here. ", i))
	}
	text := strings.TrimSpace(sb.String())

	chunks := collect(NewSplitter(), text)

	require.Greater(t, len(chunks), 1)
	requireChunkInvariants(t, text, chunks, 1024, 80)

	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c.Text, ". "), "chunk %d should end on a sentence: %q", c.Index, c.Text[len(c.Text)-10:])
	}
	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i-1].End-chunks[i].Start, 0, "sentences should overlap")
	}
}

func TestSplit_HardCutsUnbreakableText(t *testing.T) {
	text := strings.Repeat("x", 3000)

	chunks := collect(NewSplitter(), text)

	require.Greater(t, len(chunks), 2)
	requireChunkInvariants(t, text, chunks, 1024, 80)
}

func TestSplit_CountsRunesNotBytes(t *testing.T) {
	text := strings.Repeat("é", 1000)

	chunks := collect(NewSplitter(), text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
}

func TestSplit_MixedDocumentInvariants(t *testing.T) {
	var sb strings.Builder
	for p := range 12 {
		for l := range 5 {
			sb.WriteString(fmt.Sprintf("Paragraph %d line %d talks about a topic. It has two sentences and some words.", p, l))
			sb.WriteString("\n")
		}
		sb.WriteString(strings.Repeat("z", 50*p))
		sb.WriteString("\n\n")
	}
	text := sb.String()

	for _, cfg := range []struct{ size, overlap int }{{1024, 80}, {200, 40}, {64, 0}, {100, 99}} {
		s := NewSplitter(splitter.WithChunkSize(cfg.size), splitter.WithChunkOverlap(cfg.overlap))
		opts := splitter.NewOptions(splitter.WithChunkSize(cfg.size), splitter.WithChunkOverlap(cfg.overlap))

		requireChunkInvariants(t, text, collect(s, text), opts.ChunkSize, opts.ChunkOverlap)
	}
}

func TestSplit_IsRestartable(t *testing.T) {
	text := strings.Repeat("word ", 1000)
	seq := NewSplitter().Split(text)

	first := slices.Collect(seq)
	second := slices.Collect(seq)

	assert.Equal(t, first, second)
}

func TestSplit_StopsEarly(t *testing.T) {
	text := strings.Repeat("word ", 1000)

	n := 0
	for range NewSplitter().Split(text) {
		n++
		if n == 2 {
			break
		}
	}

	assert.Equal(t, 2, n)
}

func TestNewOptions_Clamps(t *testing.T) {
	opts := splitter.NewOptions(splitter.WithChunkSize(0), splitter.WithChunkOverlap(5000))
	assert.Equal(t, splitter.DefaultChunkSize, opts.ChunkSize)
	assert.Equal(t, splitter.DefaultChunkSize/2, opts.ChunkOverlap)

	opts = splitter.NewOptions(splitter.WithChunkOverlap(-3))
	assert.Equal(t, 0, opts.ChunkOverlap)
}
