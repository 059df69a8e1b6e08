package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/w-h-a/doctalk/errs"
	"github.com/w-h-a/doctalk/generator"
	"github.com/w-h-a/doctalk/util/retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultModel = "claude-3-5-haiku-latest"

type anthropicGenerator struct {
	options generator.Options
	client  *anthropic.Client
}

func (g *anthropicGenerator) Generate(ctx context.Context, messages []generator.Message) (string, error) {
	system, rest := generator.Split(g.options.WithPrefix(messages))

	req := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.options.Model),
		MaxTokens:   int64(g.options.MaxTokens),
		Temperature: anthropic.Float(g.options.Temperature),
		Messages:    make([]anthropic.MessageParam, 0, len(rest)),
	}

	if len(system) > 0 {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}

	for _, msg := range rest {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == generator.RoleAssistant {
			req.Messages = append(req.Messages, anthropic.NewAssistantMessage(block))
		} else {
			req.Messages = append(req.Messages, anthropic.NewUserMessage(block))
		}
	}

	answer, err := retry.Do(ctx, g.options.Retry, func(ctx context.Context) (string, error) {
		rsp, err := g.client.Messages.New(ctx, req)
		if err != nil {
			return "", classify(err)
		}

		var b strings.Builder
		for _, content := range rsp.Content {
			if text, ok := content.AsAny().(anthropic.TextBlock); ok {
				b.WriteString(text.Text)
			}
		}

		result := b.String()
		if len(result) == 0 {
			return "", fmt.Errorf("%w: no response from Anthropic", errs.ErrProviderRejected)
		}

		return result, nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	return answer, nil
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return errs.FromStatus(apiErr.StatusCode, err)
	}

	return errs.Provider(err)
}

func NewGenerator(opts ...generator.Option) generator.Generator {
	options := generator.NewOptions(opts...)

	if len(options.Model) == 0 {
		options.Model = defaultModel
	}

	g := &anthropicGenerator{
		options: options,
	}

	clientOpts := []anthropicopt.RequestOption{
		anthropicopt.WithAPIKey(options.ApiKey),
		anthropicopt.WithMaxRetries(0),
		anthropicopt.WithHTTPClient(&http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	}

	if len(options.BaseURL) > 0 {
		clientOpts = append(clientOpts, anthropicopt.WithBaseURL(options.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	g.client = &client

	return g
}
