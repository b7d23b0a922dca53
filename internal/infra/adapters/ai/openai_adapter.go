package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"ai-course-studio/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements adapter.AIServiceAdapter with the Chat Completions API.
type OpenAIAdapter struct {
	client       openai.Client
	defaultModel string
	tokens       *TokenEstimator
}

type OpenAIOption func(*openAISettings)

type openAISettings struct {
	baseURL    string
	maxRetries int
	timeout    time.Duration
}

func WithOpenAIBaseURL(u string) OpenAIOption {
	return func(s *openAISettings) { s.baseURL = u }
}

func WithOpenAIRetries(n int) OpenAIOption {
	return func(s *openAISettings) { s.maxRetries = n }
}

func WithOpenAITimeout(d time.Duration) OpenAIOption {
	return func(s *openAISettings) { s.timeout = d }
}

func NewOpenAIAdapter(apiKey, defaultModel string, opts ...OpenAIOption) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	st := openAISettings{maxRetries: 2}
	for _, o := range opts {
		o(&st)
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(st.maxRetries),
	}
	if st.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(st.baseURL))
	}
	if st.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(st.timeout))
	}
	return &OpenAIAdapter{
		client:       openai.NewClient(reqOpts...),
		defaultModel: defaultModel,
		tokens:       NewTokenEstimator(),
	}, nil
}

func (o *OpenAIAdapter) Provider() string { return "openai" }

func (o *OpenAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	page, err := o.client.Models.List(ctx)
	if err != nil {
		return []string{o.defaultModel}, nil
	}
	out := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		if strings.HasPrefix(m.ID, "gpt") || strings.HasPrefix(m.ID, "o") {
			out = append(out, m.ID)
		}
	}
	if len(out) == 0 {
		out = []string{o.defaultModel}
	}
	return out, nil
}

func (o *OpenAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return o.tokens.Messages(modelOrDefault(model, o.defaultModel), messages), nil
}

func (o *OpenAIAdapter) ChatWithUsage(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	if len(req.Messages) == 0 {
		return "", adapter.Usage{}, errors.New("openai: no messages")
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelOrDefault(req.Model, o.defaultModel)),
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", adapter.Usage{}, fmt.Errorf("openai http %d: %w", apiErr.StatusCode, err)
		}
		return "", adapter.Usage{}, err
	}

	u := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, u, nil
		}
	}
	return "", u, errors.New("openai: no choice content")
}

func toOpenAIMessages(msgs []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant", "model":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
