package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"github.com/w-h-a/doctalk/errs"
	"github.com/w-h-a/doctalk/generator"
	"github.com/w-h-a/doctalk/util/retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultModel = "gpt-4o-mini"

type openAIGenerator struct {
	options generator.Options
	client  *openai.Client
}

func (g *openAIGenerator) Generate(ctx context.Context, messages []generator.Message) (string, error) {
	messages = g.options.WithPrefix(messages)

	req := openai.ChatCompletionRequest{
		Model:       g.options.Model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: temperature(g.options.Temperature),
		MaxTokens:   g.options.MaxTokens,
	}

	for _, msg := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    role(msg.Role),
			Content: msg.Content,
		})
	}

	answer, err := retry.Do(ctx, g.options.Retry, func(ctx context.Context) (string, error) {
		rsp, err := g.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", classify(err)
		}

		if len(rsp.Choices) == 0 || len(rsp.Choices[0].Message.Content) == 0 {
			return "", fmt.Errorf("%w: no response from OpenAI", errs.ErrProviderRejected)
		}

		return rsp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}

	return answer, nil
}

func role(r string) string {
	switch r {
	case generator.RoleSystem:
		return openai.ChatMessageRoleSystem
	case generator.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// temperature maps 0 to the smallest positive float32 because the request
// field is omitted when zero and the API default is 1.
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return errs.FromStatus(apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return errs.FromStatus(reqErr.HTTPStatusCode, err)
	}

	return errs.Provider(err)
}

func NewGenerator(opts ...generator.Option) generator.Generator {
	options := generator.NewOptions(opts...)

	if len(options.Model) == 0 {
		options.Model = defaultModel
	}

	g := &openAIGenerator{
		options: options,
	}

	cfg := openai.DefaultConfig(options.ApiKey)
	if len(options.BaseURL) > 0 {
		cfg.BaseURL = options.BaseURL
	}
	cfg.HTTPClient = &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	g.client = openai.NewClientWithConfig(cfg)

	return g
}
