package openai

import (
	"context"
	"fmt"
	"iter"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/sweetpotato0/ai-tutor/llm"
	"github.com/sweetpotato0/ai-tutor/message"
)

// Config holds OpenAI generator configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Generator implements llm.Generator using the OpenAI chat completions API.
type Generator struct {
	config *Config
	client openaisdk.Client
}

var _ llm.Generator = (*Generator)(nil)

// New creates an OpenAI generator.
func New(config *Config) *Generator {
	if config == nil {
		config = &Config{}
	}
	if config.Model == "" {
		config.Model = string(openaisdk.ChatModelGPT4oMini)
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &Generator{
		config: config,
		client: openaisdk.NewClient(opts...),
	}
}

// Generate returns the complete answer in one call.
func (g *Generator) Generate(ctx context.Context, req *llm.Request) (string, error) {
	if req == nil {
		return "", fmt.Errorf("request cannot be nil")
	}

	resp, err := g.client.Chat.Completions.New(ctx, g.buildParams(req))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream yields answer deltas as they arrive.
func (g *Generator) GenerateStream(ctx context.Context, req *llm.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if req == nil {
			yield("", fmt.Errorf("request cannot be nil"))
			return
		}

		stream := g.client.Chat.Completions.NewStreaming(ctx, g.buildParams(req))
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			if len(event.Choices) == 0 {
				continue
			}
			delta := event.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("stream: %w", err))
		}
	}
}

func (g *Generator) buildParams(req *llm.Request) openaisdk.ChatCompletionNewParams {
	msgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openaisdk.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case message.RoleSystem:
			msgs = append(msgs, openaisdk.SystemMessage(msg.Content))
		case message.RoleUser:
			msgs = append(msgs, openaisdk.UserMessage(msg.Content))
		case message.RoleAssistant:
			msgs = append(msgs, openaisdk.AssistantMessage(msg.Content))
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Messages: msgs,
		Model:    openaisdk.ChatModel(g.config.Model),
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = g.config.Temperature
	}
	if temperature > 0 {
		params.Temperature = param.NewOpt(temperature)
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(maxTokens)
	}

	return params
}
