package ai

import (
	"context"
	"time"

	"ai-course-studio/internal/domain/ports/adapter"
	"ai-course-studio/internal/infra/metrics"
)

var _ adapter.AIServiceAdapter = (*instrumentedAI)(nil)

// instrumentedAI records latency and token usage of every chat call.
type instrumentedAI struct {
	inner adapter.AIServiceAdapter
}

func NewInstrumentedAI(inner adapter.AIServiceAdapter) adapter.AIServiceAdapter {
	return &instrumentedAI{inner: inner}
}

func (i *instrumentedAI) Provider() string { return i.inner.Provider() }

func (i *instrumentedAI) ListModels(ctx context.Context) ([]string, error) {
	return i.inner.ListModels(ctx)
}

func (i *instrumentedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return i.inner.CountTokens(ctx, model, messages)
}

func (i *instrumentedAI) ChatWithUsage(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	start := time.Now()
	text, u, err := i.inner.ChatWithUsage(ctx, req)
	metrics.ObserveAICall(i.inner.Provider(), req.Model, u.PromptTokens, u.CompletionTokens, time.Since(start), err == nil)
	return text, u, err
}
