package google

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/w-h-a/doctalk/errs"
	"github.com/w-h-a/doctalk/generator"
	"github.com/w-h-a/doctalk/util/retry"
	genaiopt "google.golang.org/api/option"
)

const defaultModel = "gemini-1.5-flash"

type googleGenerator struct {
	options generator.Options
	client  *genai.Client
}

func (g *googleGenerator) Generate(ctx context.Context, messages []generator.Message) (string, error) {
	system, rest := generator.Split(g.options.WithPrefix(messages))

	if len(rest) == 0 || rest[len(rest)-1].Role != generator.RoleUser {
		return "", fmt.Errorf("%w: conversation must end with a user message", errs.ErrProviderRejected)
	}

	model := g.client.GenerativeModel(g.options.Model)
	model.SetTemperature(float32(g.options.Temperature))
	model.SetMaxOutputTokens(int32(g.options.MaxTokens))

	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	last := rest[len(rest)-1]

	return retry.Do(ctx, g.options.Retry, func(ctx context.Context) (string, error) {
		cs := model.StartChat()
		cs.History = history(rest[:len(rest)-1])

		rsp, err := cs.SendMessage(ctx, genai.Text(last.Content))
		if err != nil {
			return "", fmt.Errorf("google chat: %w", errs.FromGRPC(err))
		}

		return text(rsp)
	})
}

func history(messages []generator.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		role := "user"
		if msg.Role == generator.RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	return out
}

func text(rsp *genai.GenerateContentResponse) (string, error) {
	if rsp == nil || len(rsp.Candidates) == 0 || rsp.Candidates[0].Content == nil || len(rsp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no response from Google", errs.ErrProviderRejected)
	}

	var b strings.Builder
	for _, part := range rsp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("%w: no response from Google", errs.ErrProviderRejected)
	}

	return b.String(), nil
}

func NewGenerator(opts ...generator.Option) (generator.Generator, error) {
	options := generator.NewOptions(opts...)

	if len(options.Model) == 0 {
		options.Model = defaultModel
	}

	g := &googleGenerator{
		options: options,
	}

	clientOpts := []genaiopt.ClientOption{
		genaiopt.WithAPIKey(options.ApiKey),
	}
	if len(options.BaseURL) > 0 {
		clientOpts = append(clientOpts, genaiopt.WithEndpoint(options.BaseURL))
	}

	client, err := genai.NewClient(context.Background(), clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("google generator client: %w", err)
	}

	g.client = client

	return g, nil
}
