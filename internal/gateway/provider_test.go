package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

var recordSchema = &Schema{
	Type: TypeArray,
	Items: &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"id":     {Type: TypeString},
			"status": {Type: TypeString, Enum: []string{"Active", "Expired"}},
		},
		Required: []string{"id"},
	},
}

type fakeGeminiModels struct {
	text   string
	err    error
	model  string
	config *genai.GenerateContentConfig
}

func (f *fakeGeminiModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = cfg
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}}}},
	}, nil
}

func TestGeminiSendsNativeSchema(t *testing.T) {
	fake := &fakeGeminiModels{text: `[{"id":"US1"}]`}
	g := &Gemini{models: fake, model: DefaultGeminiModel}

	out, err := g.Complete(context.Background(), Request{Prompt: "p", Schema: recordSchema})
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"US1"}]`, out)
	require.NotNil(t, fake.config)
	assert.Equal(t, "application/json", fake.config.ResponseMIMEType)
	require.NotNil(t, fake.config.ResponseSchema)
	assert.Equal(t, genai.TypeArray, fake.config.ResponseSchema.Type)
	assert.Equal(t, genai.TypeObject, fake.config.ResponseSchema.Items.Type)
	assert.Equal(t, []string{"Active", "Expired"}, fake.config.ResponseSchema.Items.Properties["status"].Enum)
}

func TestGeminiTextRequestHasNoConfig(t *testing.T) {
	fake := &fakeGeminiModels{text: "# Executive Verdict"}
	g := &Gemini{models: fake, model: "gemini-test"}
	out, err := g.Complete(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "# Executive Verdict", out)
	assert.Nil(t, fake.config)
	assert.Equal(t, "gemini-test", fake.model)
}

func TestGeminiMapsAPIErrorStatus(t *testing.T) {
	g := &Gemini{models: &fakeGeminiModels{err: genai.APIError{Code: 429, Message: "quota"}}, model: "m"}
	_, err := g.Complete(context.Background(), Request{Prompt: "p"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 429, se.Code)
}

type fakeMessager struct {
	response *anthropic.Message
	err      error
	params   anthropic.MessageNewParams
}

func (m *fakeMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	m.params = params
	return m.response, m.err
}

func TestAnthropicJoinsTextBlocks(t *testing.T) {
	fake := &fakeMessager{response: &anthropic.Message{Content: []anthropic.ContentBlockUnion{
		{Type: "text", Text: "**CITATION "},
		{Type: "thinking"},
		{Type: "text", Text: "ANALYSIS RESULTS**"},
	}}}
	a := &Anthropic{messages: fake, model: "claude-test"}

	out, err := a.Complete(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "**CITATION ANALYSIS RESULTS**", out)
	assert.Equal(t, anthropic.Model("claude-test"), fake.params.Model)
	require.Len(t, fake.params.System, 1)
	assert.Contains(t, fake.params.System[0].Text, "not a lawyer")
}

func TestAnthropicPropagatesError(t *testing.T) {
	a := &Anthropic{messages: &fakeMessager{err: errors.New("connection reset")}, model: "m"}
	_, err := a.Complete(context.Background(), Request{Prompt: "p"})
	assert.Error(t, err)
}

type fakeChat struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestOpenAIStructuredRequestUsesJSONMode(t *testing.T) {
	fake := &fakeChat{resp: openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Content: `{"records":[]}`}},
	}}}
	o := &OpenAI{client: fake, model: "gpt-test"}

	out, err := o.Complete(context.Background(), Request{Prompt: "find patents", Schema: recordSchema})
	require.NoError(t, err)
	assert.Equal(t, `{"records":[]}`, out)
	require.NotNil(t, fake.req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, fake.req.ResponseFormat.Type)
	user := fake.req.Messages[len(fake.req.Messages)-1].Content
	assert.True(t, strings.HasPrefix(user, "find patents"))
	assert.Contains(t, user, `"records"`)
}

func TestOpenAINoChoicesIsError(t *testing.T) {
	o := &OpenAI{client: &fakeChat{}, model: "gpt-test"}
	_, err := o.Complete(context.Background(), Request{Prompt: "p"})
	assert.Error(t, err)
}

func TestOpenAIMapsAPIErrorStatus(t *testing.T) {
	o := &OpenAI{client: &fakeChat{err: &openai.APIError{HTTPStatusCode: 503, Message: "busy"}}, model: "m"}
	_, err := o.Complete(context.Background(), Request{Prompt: "p"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 503, se.Code)
}

func TestConstructorsRequireKey(t *testing.T) {
	_, err := NewAnthropic("", "")
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewOpenAI("", "", "")
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewGemini(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrConfig)
}
