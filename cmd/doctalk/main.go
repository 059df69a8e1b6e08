package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/w-h-a/doctalk"
	"github.com/w-h-a/doctalk/config"
	"github.com/w-h-a/doctalk/errs"
	"github.com/w-h-a/doctalk/server"
	httpserver "github.com/w-h-a/doctalk/server/http"
	"github.com/w-h-a/doctalk/splitter"
	"github.com/w-h-a/doctalk/splitter/recursive"
)

var (
	cfg struct {
		Config   kong.ConfigFlag `help:"TOML file with flag values"`
		LogLevel string          `help:"Minimum log level" enum:"debug,info,warn,error" default:"info" env:"DOCTALK_LOG_LEVEL"`

		// Document config
		ContentTextFile string `name:"content_text_file" help:"Document to answer questions about (plain text or PDF)" required:"" type:"path" env:"DOCTALK_CONTENT_TEXT_FILE"`
		ChunkSize       int    `help:"Maximum chunk length in characters" default:"1024" env:"DOCTALK_CHUNK_SIZE"`
		ChunkOverlap    int    `help:"Characters shared by consecutive chunks" default:"80" env:"DOCTALK_CHUNK_OVERLAP"`

		// Embedder config
		Embedder        string `help:"Embedding provider" enum:"openai,google" default:"openai" env:"DOCTALK_EMBEDDER"`
		EmbedderModel   string `help:"Model identifier for the embedder" default:"" env:"DOCTALK_EMBEDDER_MODEL"`
		Dimensions      int    `help:"Embedding dimensions, zero for the model default" default:"0" env:"DOCTALK_DIMENSIONS"`
		OpenaiApiKey    string `help:"API key for OpenAI" default:"" env:"OPENAI_API_KEY"`
		GoogleApiKey    string `help:"API key for Google AI" default:"" env:"GOOGLE_API_KEY"`
		AnthropicApiKey string `help:"API key for Anthropic" default:"" env:"ANTHROPIC_API_KEY"`
		BaseURL         string `help:"Base URL of an OpenAI compatible API" default:"" env:"OPENAI_BASE_URL"`

		// Cache config
		CacheLocation string        `help:"Address of a redis server caching embeddings" default:"" env:"DOCTALK_CACHE_LOCATION"`
		CachePassword string        `help:"Password for the redis server" default:"" env:"DOCTALK_CACHE_PASSWORD"`
		CacheTTL      time.Duration `name:"cache-ttl" help:"How long cached embeddings live" default:"24h" env:"DOCTALK_CACHE_TTL"`

		// Generator config
		Generator   string  `help:"Chat model provider" enum:"openai,anthropic,google" default:"openai" env:"DOCTALK_GENERATOR"`
		Model       string  `help:"Model identifier for the generator" default:"" env:"DOCTALK_MODEL,OPENAI_DEPLOYMENT_NAME"`
		Temperature float64 `help:"Sampling temperature" default:"0" env:"DOCTALK_TEMPERATURE"`
		MaxTokens   int     `help:"Maximum tokens per answer" default:"1024" env:"DOCTALK_MAX_TOKENS"`

		// Store config
		Store           string `help:"Vector index backend" enum:"memory,postgres,qdrant,milvus,neo4j" default:"memory" env:"DOCTALK_STORE"`
		StoreLocation   string `help:"Address or DSN of the vector index" default:"" env:"DOCTALK_STORE_LOCATION"`
		StoreApiKey     string `help:"API key for the vector index" default:"" env:"DOCTALK_STORE_API_KEY"`
		StoreCollection string `help:"Collection name, random per run when empty; cleared at start and exit" default:"" env:"DOCTALK_STORE_COLLECTION"`

		// Conversation config
		TopK          int     `help:"Number of chunks retrieved per question" default:"5" env:"DOCTALK_TOP_K"`
		HistoryWindow int     `help:"Number of past turns sent with each question, zero for all" default:"0" env:"DOCTALK_HISTORY_WINDOW"`
		Condense      bool    `help:"Rewrite follow-up questions before retrieval" default:"true" negatable:"" env:"DOCTALK_CONDENSE"`
		Relevance     float64 `help:"Below 1, rerank retrieved chunks for variety (maximal marginal relevance)" default:"1" env:"DOCTALK_RELEVANCE"`

		Ask struct {
			QuestionTextFile string `name:"question_text_file" help:"Questions, one per line" required:"" type:"path" env:"DOCTALK_QUESTION_TEXT_FILE"`
		} `cmd:"" default:"withargs" help:"Answer every question in a file"`

		Serve struct {
			Address       string        `help:"Address to listen on" default:":8080" env:"DOCTALK_ADDRESS"`
			AnswerTimeout time.Duration `help:"Upper bound on answering one question, zero for none" default:"2m" env:"DOCTALK_ANSWER_TIMEOUT"`
		} `cmd:"" help:"Answer questions over HTTP"`
	}
)

func main() {
	// Load .env before parsing so env tags see it
	_ = godotenv.Load()

	kctx := kong.Parse(
		&cfg,
		kong.Name("doctalk"),
		kong.Description("Answer questions about a document."),
		kong.Configuration(config.TOML, ".doctalk.toml", "~/.config/doctalk/config.toml"),
		kong.UsageOnError(),
	)

	slog.SetDefault(newLogger(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, kctx.Command())
	stop()

	kctx.FatalIfErrorf(err)
}

func run(ctx context.Context, command string) error {
	// Fail on missing inputs before any provider is called
	var questions *os.File
	if command != "serve" {
		f, err := os.Open(cfg.Ask.QuestionTextFile)
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %w", errs.ErrInputNotFound, err)
		}
		if err != nil {
			return err
		}
		defer f.Close()
		questions = f
	}

	doc, err := newLoader(cfg.ContentTextFile).Load(ctx, cfg.ContentTextFile)
	if err != nil {
		return err
	}

	// Create embedder
	embedder, closeCache, err := newEmbedder(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	// Create generator
	generator, err := newGenerator()
	if err != nil {
		return err
	}

	// Create vector index
	storer, err := newStorer(ctx, embedder)
	if err != nil {
		return err
	}

	// Create doctalk
	d := doctalk.New(
		embedder,
		generator,
		storer,
		doctalk.WithSplitter(recursive.NewSplitter(
			splitter.WithChunkSize(cfg.ChunkSize),
			splitter.WithChunkOverlap(cfg.ChunkOverlap),
		)),
		doctalk.WithTopK(cfg.TopK),
		doctalk.WithHistoryWindow(cfg.HistoryWindow),
		doctalk.WithCondense(cfg.Condense),
		doctalk.WithRelevance(cfg.Relevance),
	)
	defer func() {
		if err := d.Close(); err != nil {
			slog.ErrorContext(ctx, "failed to close vector index", "error", err)
		}
	}()

	n, err := d.Ingest(ctx, doc)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "indexed document", "source", doc.Source, "chunks", n)

	if command == "serve" {
		srv := httpserver.NewServer(
			d,
			server.WithAddress(cfg.Serve.Address),
			httpserver.WithAnswerTimeout(cfg.Serve.AnswerTimeout),
			httpserver.WithMiddleware(logRequests),
		)
		return srv.Run(ctx)
	}

	answered, err := d.Run(ctx, questions, os.Stdout)
	slog.InfoContext(ctx, "answered questions", "count", answered)

	return err
}

func logRequests(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.ServeHTTP(w, r)
		slog.DebugContext(r.Context(), "handled request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
