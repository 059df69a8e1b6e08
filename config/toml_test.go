package config

import (
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCLI struct {
	ChunkSize   int    `name:"chunk-size" default:"1024"`
	ContentFile string `name:"content_text_file"`
	Generator   string `default:"openai" env:"DOCTALK_TEST_GENERATOR"`
	Condense    bool   `default:"true" negatable:""`

	Serve struct {
		Address string `default:":8080"`
	} `cmd:""`
}

func parse(t *testing.T, config string, args ...string) *testCLI {
	t.Helper()

	var cli testCLI

	resolver, err := TOML(strings.NewReader(config))
	require.NoError(t, err)

	parser, err := kong.New(&cli, kong.Resolvers(resolver), kong.Exit(func(int) { t.Fatal("exit") }))
	require.NoError(t, err)

	_, err = parser.Parse(append([]string{"serve"}, args...))
	require.NoError(t, err)

	return &cli
}

func TestTOML_KebabAndSnakeKeys(t *testing.T) {
	cli := parse(t, `
chunk_size = 512
content-text-file = "doc.txt"
generator = "anthropic"
condense = false
`)

	assert.Equal(t, 512, cli.ChunkSize)
	assert.Equal(t, "doc.txt", cli.ContentFile)
	assert.Equal(t, "anthropic", cli.Generator)
	assert.False(t, cli.Condense)
}

func TestTOML_FlagsOverrideConfig(t *testing.T) {
	cli := parse(t, `generator = "anthropic"`, "--generator", "google")

	assert.Equal(t, "google", cli.Generator)
}

func TestTOML_EnvironmentOverridesConfig(t *testing.T) {
	t.Setenv("DOCTALK_TEST_GENERATOR", "google")

	cli := parse(t, `generator = "anthropic"`)

	assert.Equal(t, "google", cli.Generator)
}

func TestTOML_CommandTable(t *testing.T) {
	cli := parse(t, `
[serve]
address = ":9090"
`)

	assert.Equal(t, ":9090", cli.Serve.Address)
	assert.Equal(t, 1024, cli.ChunkSize)
}

func TestTOML_InvalidDocument(t *testing.T) {
	_, err := TOML(strings.NewReader("chunk_size = "))

	assert.Error(t, err)
}
