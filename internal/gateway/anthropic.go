package gateway

import (
	"context"
	"errors"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultAnthropicModel = "claude-sonnet-4-5"
	anthropicMaxTokens    = 4096
)

const analystSystemPrompt = "You are PatentOS, an IP strategy analyst for UK developers. You are not a lawyer: use probabilistic language and never give legal guarantees."

type anthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Anthropic calls the Claude Messages API. The response schema is rendered
// into the prompt because the API has no schema-constrained output mode.
type Anthropic struct {
	messages anthropicMessager
	model    string
}

func NewAnthropic(apiKey, model string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, newError(KindConfig, "anthropic", errors.New("API key is required"))
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Anthropic{messages: &c.Messages, model: model}, nil
}

func (a *Anthropic) Name() string  { return "anthropic" }
func (a *Anthropic) Model() string { return a.model }

func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	prompt := req.Prompt
	if req.Schema != nil {
		prompt = withSchemaInstructions(prompt, req.Schema)
	}
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: anthropicMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: analystSystemPrompt}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Code: apiErr.StatusCode, Err: err}
		}
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

func withSchemaInstructions(prompt string, s *Schema) string {
	return prompt + "\n\nRespond with JSON only, no prose and no code fences. The JSON must match this schema:\n" + s.JSON()
}
