package gemini

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/sweetpotato0/ai-tutor/llm"
	"github.com/sweetpotato0/ai-tutor/message"
)

// Config holds Gemini generator configuration.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int32
	Temperature float32
}

// Generator implements llm.Generator using the Google Generative AI SDK.
type Generator struct {
	config *Config
	client *genai.Client
}

var _ llm.Generator = (*Generator)(nil)

// New creates a Gemini generator.
func New(ctx context.Context, config *Config) (*Generator, error) {
	if config == nil {
		config = &Config{}
	}
	if config.Model == "" {
		config.Model = "gemini-1.5-flash"
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Generator{config: config, client: client}, nil
}

// Generate returns the complete answer in one call.
func (g *Generator) Generate(ctx context.Context, req *llm.Request) (string, error) {
	if req == nil {
		return "", fmt.Errorf("request cannot be nil")
	}

	session, last, err := g.buildSession(req)
	if err != nil {
		return "", err
	}

	resp, err := session.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return responseText(resp), nil
}

// GenerateStream yields answer deltas as they arrive.
func (g *Generator) GenerateStream(ctx context.Context, req *llm.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if req == nil {
			yield("", fmt.Errorf("request cannot be nil"))
			return
		}

		session, last, err := g.buildSession(req)
		if err != nil {
			yield("", err)
			return
		}

		stream := session.SendMessageStream(ctx, genai.Text(last))
		for {
			resp, err := stream.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("stream: %w", err))
				return
			}
			if text := responseText(resp); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

// Close releases the underlying client.
func (g *Generator) Close() error {
	return g.client.Close()
}

// buildSession maps the request onto a chat session whose history holds
// everything but the final user message, which is returned for sending.
func (g *Generator) buildSession(req *llm.Request) (*genai.ChatSession, string, error) {
	model := g.client.GenerativeModel(g.config.Model)

	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	temperature := float32(req.Temperature)
	if temperature == 0 {
		temperature = g.config.Temperature
	}
	if temperature > 0 {
		model.SetTemperature(temperature)
	}
	maxTokens := int32(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}
	if maxTokens > 0 {
		model.SetMaxOutputTokens(maxTokens)
	}

	if len(req.Messages) == 0 {
		return nil, "", fmt.Errorf("request has no messages")
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != message.RoleUser {
		return nil, "", fmt.Errorf("last message must be from the user, got %s", last.Role)
	}

	session := model.StartChat()
	for _, msg := range req.Messages[:len(req.Messages)-1] {
		role := "user"
		if msg.Role == message.RoleAssistant {
			role = "model"
		}
		session.History = append(session.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return session, last.Content, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var out string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out += string(text)
			}
		}
	}
	return out
}
