package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoAnswerer struct {
	questions []string
	failOn    int
}

func (a *echoAnswerer) Answer(ctx context.Context, question string) (string, error) {
	a.questions = append(a.questions, question)
	if a.failOn == len(a.questions) {
		return "", errors.New("provider down")
	}
	return fmt.Sprintf("answer %d", len(a.questions)), nil
}

func TestRun_WritesBlocksInOrder(t *testing.T) {
	a := &echoAnswerer{}
	var out bytes.Buffer

	n, err := New(a).Run(context.Background(), strings.NewReader("Q one?\nQ two?\nQ three?\n"), &out)

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"Q one?", "Q two?", "Q three?"}, a.questions)

	want := "Answering question 1: Q one?\n\nAnswer to question 1:\n\nanswer 1\n\n" +
		"Answering question 2: Q two?\n\nAnswer to question 2:\n\nanswer 2\n\n" +
		"Answering question 3: Q three?\n\nAnswer to question 3:\n\nanswer 3\n\n"
	assert.Equal(t, want, out.String())
}

func TestRun_TrimsAndSkipsBlankLines(t *testing.T) {
	a := &echoAnswerer{}
	var out bytes.Buffer

	n, err := New(a).Run(context.Background(), strings.NewReader("  first?\r\n\n   \nsecond?"), &out)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"first?", "second?"}, a.questions)
	assert.Contains(t, out.String(), "Answering question 2: second?\n")
	assert.NotContains(t, out.String(), "question 3")
}

func TestRun_EmptyInput(t *testing.T) {
	var out bytes.Buffer

	n, err := New(&echoAnswerer{}).Run(context.Background(), strings.NewReader(""), &out)

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, out.String())
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	a := &echoAnswerer{failOn: 2}
	var out bytes.Buffer

	n, err := New(a).Run(context.Background(), strings.NewReader("a?\nb?\nc?\n"), &out)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "question 2")
	assert.Equal(t, 1, n)
	assert.Len(t, a.questions, 2)
	assert.Contains(t, out.String(), "Answer to question 1:\n\nanswer 1\n\n")
	assert.NotContains(t, out.String(), "Answer to question 2")
	assert.NotContains(t, out.String(), "Answering question 2")
	assert.True(t, strings.HasSuffix(out.String(), "answer 1\n\n"))
	assert.NotContains(t, out.String(), "c?")
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &echoAnswerer{}
	n, err := New(a).Run(ctx, strings.NewReader("a?\n"), &bytes.Buffer{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, n)
	assert.Empty(t, a.questions)
}
