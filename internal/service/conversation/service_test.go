package conversation

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/doctalk/errs"
	"github.com/w-h-a/doctalk/generator"
	"github.com/w-h-a/doctalk/internal/fake"
	"github.com/w-h-a/doctalk/memory"
	"github.com/w-h-a/doctalk/storer"
	storermemory "github.com/w-h-a/doctalk/storer/memory"
)

var sentences = []string{
	"Paris is the capital of France.",
	"Berlin is the capital of Germany.",
	"Madrid is the capital of Spain.",
	"Rome is the capital of Italy.",
}

func between(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	s = s[i+len(start):]
	j := strings.Index(s, end)
	if j < 0 {
		return s
	}
	return s[:j]
}

// grounded answers with the first context sentence naming the question's
// proper nouns, and refuses when the context lacks one of them.
func grounded(messages []generator.Message) (string, error) {
	last := messages[len(messages)-1].Content

	if strings.Contains(last, condenseMarker) {
		return between(last, "Follow Up Input: ", "\n"), nil
	}

	retrieved := between(messages[0].Content, "Context: ```", "```")
	question := between(last, "question: ```", "```")

	var nouns []string
	for i, word := range strings.Fields(question) {
		word = strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) })
		if i > 0 && len(word) > 0 && unicode.IsUpper([]rune(word)[0]) {
			nouns = append(nouns, word)
		}
	}

	if len(nouns) == 0 {
		return RefusalText, nil
	}

	for _, noun := range nouns {
		if !strings.Contains(retrieved, noun) {
			return RefusalText, nil
		}
	}

	for _, sentence := range strings.Split(retrieved, "\n\n") {
		if strings.Contains(sentence, nouns[0]) {
			return sentence, nil
		}
	}

	return RefusalText, nil
}

func seeded(t *testing.T) storer.Storer {
	t.Helper()

	st := storermemory.NewStorer()
	for i, sentence := range sentences {
		require.NoError(t, st.Upsert(context.Background(), storer.Record{
			Id:        fmt.Sprintf("chunk-%d", i),
			Index:     i,
			Content:   sentence,
			Embedding: fake.Vector(sentence),
		}))
	}

	return st
}

func TestAnswer_GroundedInDocument(t *testing.T) {
	gen := &fake.Generator{Fn: grounded}
	svc := New(&fake.Embedder{}, gen, seeded(t), nil, 5, true, 1)

	answer, err := svc.Answer(context.Background(), "What is the capital of France?")

	require.NoError(t, err)
	assert.Contains(t, answer, "Paris")
}

func TestAnswer_RefusesUnrelatedQuestion(t *testing.T) {
	svc := New(&fake.Embedder{}, &fake.Generator{Fn: grounded}, seeded(t), nil, 5, true, 1)

	answer, err := svc.Answer(context.Background(), "What is the capital of Japan?")

	require.NoError(t, err)
	assert.Equal(t, RefusalText, answer)
}

func TestAnswer_HistoryGrowsByOnePerAnswer(t *testing.T) {
	gen := &fake.Generator{Fn: grounded}
	svc := New(&fake.Embedder{}, gen, seeded(t), nil, 5, false, 1)

	questions := []string{
		"What is the capital of France?",
		"What is the capital of Germany?",
		"What is the capital of Japan?",
	}

	for i, q := range questions {
		_, err := svc.Answer(context.Background(), q)
		require.NoError(t, err)
		assert.Len(t, svc.History(), i+1)
	}

	calls := gen.Calls()
	require.Len(t, calls, 3)
	for i, call := range calls {
		assert.Len(t, call, 2+2*i, "call %d carries all prior turns", i)
		assert.Equal(t, generator.RoleSystem, call[0].Role)
	}

	last := calls[2]
	assert.Equal(t, questions[0], last[1].Content)
	assert.Equal(t, generator.RoleAssistant, last[2].Role)
	assert.Equal(t, questions[1], last[3].Content)
	assert.Contains(t, last[5].Content, questions[2])

	history := svc.History()
	assert.Equal(t, questions[2], history[2].Question)
	assert.Equal(t, RefusalText, history[2].Answer)
}

func TestAnswer_RetrievesTopK(t *testing.T) {
	gen := &fake.Generator{Fn: grounded}
	svc := New(&fake.Embedder{}, gen, seeded(t), nil, 2, false, 1)

	_, err := svc.Answer(context.Background(), "What is the capital of Spain?")
	require.NoError(t, err)

	system := gen.Calls()[0][0].Content
	assert.Contains(t, system, "Madrid is the capital of Spain.")
	assert.Len(t, strings.Split(between(system, "Context: ```", "```"), "\n\n"), 2)
	assert.Contains(t, system, RefusalText)
}

func TestAnswer_CondensesFollowUps(t *testing.T) {
	emb := &fake.Embedder{}
	gen := &fake.Generator{Fn: func(messages []generator.Message) (string, error) {
		if strings.Contains(messages[0].Content, condenseMarker) {
			return "What is the capital of Italy?", nil
		}
		return grounded(messages)
	}}
	svc := New(emb, gen, seeded(t), nil, 1, true, 1)

	_, err := svc.Answer(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	require.Len(t, gen.Calls(), 1, "no condense without history")

	_, err = svc.Answer(context.Background(), "And the Italian one?")
	require.NoError(t, err)

	calls := gen.Calls()
	require.Len(t, calls, 3)

	condense := calls[1]
	require.Len(t, condense, 1)
	assert.Contains(t, condense[0].Content, "What is the capital of France?")
	assert.Contains(t, condense[0].Content, "Follow Up Input: And the Italian one?")

	embedded := emb.Calls()
	assert.Equal(t, []string{"What is the capital of Italy?"}, embedded[len(embedded)-1])

	final := calls[2]
	assert.Contains(t, final[0].Content, "Rome is the capital of Italy.")
	assert.Contains(t, final[len(final)-1].Content, "And the Italian one?")
	assert.Equal(t, "And the Italian one?", svc.History()[1].Question)
}

func TestAnswer_NoCondenseUsesQuestionAsIs(t *testing.T) {
	emb := &fake.Embedder{}
	gen := &fake.Generator{Fn: grounded}
	svc := New(emb, gen, seeded(t), nil, 5, false, 1)

	_, err := svc.Answer(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	_, err = svc.Answer(context.Background(), "What about Germany?")
	require.NoError(t, err)

	assert.Len(t, gen.Calls(), 2)
	embedded := emb.Calls()
	assert.Equal(t, []string{"What about Germany?"}, embedded[len(embedded)-1])
}

func TestAnswer_HistoryWindow(t *testing.T) {
	gen := &fake.Generator{Fn: grounded}
	svc := New(&fake.Embedder{}, gen, seeded(t), memory.NewBuffer(memory.WithWindow(1)), 5, false, 1)

	for _, q := range []string{"Capital of France?", "Capital of Spain?", "Capital of Italy?"} {
		_, err := svc.Answer(context.Background(), q)
		require.NoError(t, err)
	}

	last := gen.Calls()[2]
	require.Len(t, last, 4)
	assert.Equal(t, "Capital of Spain?", last[1].Content)
	assert.Len(t, svc.History(), 3)
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	emb := &fake.Embedder{}
	gen := &fake.Generator{Fn: grounded}
	svc := New(emb, gen, seeded(t), nil, 5, true, 1)

	_, err := svc.Answer(context.Background(), "  \t ")

	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Empty(t, emb.Calls())
	assert.Empty(t, gen.Calls())
	assert.Empty(t, svc.History())
}

func TestAnswer_ProviderFailureLeavesHistoryUnchanged(t *testing.T) {
	gen := &fake.Generator{Fn: grounded}
	svc := New(&fake.Embedder{}, gen, seeded(t), nil, 5, true, 1)

	_, err := svc.Answer(context.Background(), "What is the capital of France?")
	require.NoError(t, err)

	gen.Fn = func([]generator.Message) (string, error) {
		return "", fmt.Errorf("%w: 503", errs.ErrProviderUnavailable)
	}

	_, err = svc.Answer(context.Background(), "What is the capital of Spain?")
	assert.ErrorIs(t, err, errs.ErrProviderUnavailable)
	assert.Len(t, svc.History(), 1)

	failing := New(&fake.Embedder{Err: errs.ErrProviderRejected}, &fake.Generator{Fn: grounded}, seeded(t), nil, 5, true, 1)
	_, err = failing.Answer(context.Background(), "What is the capital of Spain?")
	assert.ErrorIs(t, err, errs.ErrProviderRejected)
	assert.Empty(t, failing.History())
}

func TestAnswer_SearchFailure(t *testing.T) {
	svc := New(&fake.Embedder{}, &fake.Generator{Fn: grounded}, &fake.Storer{Err: assert.AnError}, nil, 5, true, 1)

	_, err := svc.Answer(context.Background(), "What is the capital of Spain?")

	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, svc.History())
}

func TestAnswer_RerankingDropsDuplicateChunks(t *testing.T) {
	st := storermemory.NewStorer()
	for i, sentence := range []string{
		"Paris is the capital of France.",
		"Paris is the capital of France.",
		"Madrid is the capital of Spain.",
	} {
		require.NoError(t, st.Upsert(context.Background(), storer.Record{
			Id:        fmt.Sprintf("chunk-%d", i),
			Index:     i,
			Content:   sentence,
			Embedding: fake.Vector(sentence),
		}))
	}

	plain := &fake.Generator{Fn: grounded}
	_, err := New(&fake.Embedder{}, plain, st, nil, 2, false, 1).Answer(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(plain.Calls()[0][0].Content, "Paris is the capital of France."))

	reranked := &fake.Generator{Fn: grounded}
	_, err = New(&fake.Embedder{}, reranked, st, nil, 2, false, 0.3).Answer(context.Background(), "What is the capital of France?")
	require.NoError(t, err)

	system := reranked.Calls()[0][0].Content
	assert.Equal(t, 1, strings.Count(system, "Paris is the capital of France."))
	assert.Contains(t, system, "Madrid is the capital of Spain.")
}
