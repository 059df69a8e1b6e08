package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	system, rest := Split([]Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleSystem, Content: "b"},
		{Role: RoleUser, Content: "q2"},
	})

	assert.Equal(t, "a\nb", system)
	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleUser, Content: "q2"},
	}, rest)
}

func TestOptions_WithPrefix(t *testing.T) {
	in := []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "second"},
	}

	out := NewOptions(WithPromptPrefix("Answer:")).WithPrefix(in)

	assert.Equal(t, "first", out[0].Content)
	assert.Equal(t, "Answer:\nsecond", out[2].Content)
	assert.Equal(t, "second", in[2].Content, "input must not be modified")

	assert.Equal(t, in, NewOptions().WithPrefix(in))
}

func TestNewOptions_Defaults(t *testing.T) {
	opts := NewOptions()

	assert.Equal(t, 0.0, opts.Temperature)
	assert.Equal(t, 1024, opts.MaxTokens)
	assert.Equal(t, 3, opts.Retry.Attempts)
}
