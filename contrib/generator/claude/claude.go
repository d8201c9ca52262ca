package claude

import (
	"context"
	"fmt"
	"iter"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/sweetpotato0/ai-tutor/llm"
	"github.com/sweetpotato0/ai-tutor/message"
)

// Config holds Claude generator configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Generator implements llm.Generator using the Anthropic messages API.
type Generator struct {
	config *Config
	client anthropic.Client
}

var _ llm.Generator = (*Generator)(nil)

// New creates a Claude generator.
func New(config *Config) *Generator {
	if config == nil {
		config = &Config{}
	}
	if config.Model == "" {
		config.Model = "claude-3-5-sonnet-20241022"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &Generator{
		config: config,
		client: anthropic.NewClient(opts...),
	}
}

// Generate returns the complete answer in one call.
func (g *Generator) Generate(ctx context.Context, req *llm.Request) (string, error) {
	if req == nil {
		return "", fmt.Errorf("request cannot be nil")
	}

	resp, err := g.client.Messages.New(ctx, g.buildParams(req))
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// GenerateStream yields answer deltas as they arrive.
func (g *Generator) GenerateStream(ctx context.Context, req *llm.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if req == nil {
			yield("", fmt.Errorf("request cannot be nil"))
			return
		}

		stream := g.client.Messages.NewStreaming(ctx, g.buildParams(req))
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			if event.Type != "content_block_delta" {
				continue
			}
			delta := event.AsContentBlockDelta()
			if delta.Delta.Type != "text_delta" || delta.Delta.Text == "" {
				continue
			}
			if !yield(delta.Delta.Text, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("stream: %w", err))
		}
	}
}

func (g *Generator) buildParams(req *llm.Request) anthropic.MessageNewParams {
	conversation := make([]anthropic.MessageParam, 0, len(req.Messages))
	system := req.System

	for _, msg := range req.Messages {
		switch msg.Role {
		case message.RoleSystem:
			if system != "" {
				system += "\n"
			}
			system += msg.Content
		case message.RoleUser:
			conversation = append(conversation,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case message.RoleAssistant:
			conversation = append(conversation,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.config.Model),
		Messages:  conversation,
		MaxTokens: maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = g.config.Temperature
	}
	if temperature > 0 {
		params.Temperature = param.NewOpt(temperature)
	}

	return params
}
