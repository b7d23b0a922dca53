package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-course-studio/internal/domain/model"
	"ai-course-studio/internal/domain/ports/adapter"
)

type fakeEncoder struct{}

// Encode yields one token per whitespace separated word.
func (fakeEncoder) Encode(text string, _ []string, _ []string) []int {
	return make([]int, len(strings.Fields(text)))
}

func TestTokenEstimator(t *testing.T) {
	t.Run("uses the loaded encoding and caches it per model", func(t *testing.T) {
		loads := 0
		e := &TokenEstimator{cache: map[string]encoder{}, load: func(string) (encoder, error) {
			loads++
			return fakeEncoder{}, nil
		}}

		assert.Equal(t, 3, e.Text("gpt-4o", "one two three"))
		assert.Equal(t, 2, e.Text("gpt-4o", "four five"))
		assert.Equal(t, 1, loads)

		msgs := []adapter.Message{{Role: "system", Content: "be brief"}, {Role: "user", Content: "hi"}}
		// reply prime + 2 * (framing + role + content)
		assert.Equal(t, 3+(3+1+2)+(3+1+1), e.Messages("gpt-4o", msgs))
	})

	t.Run("falls back to a byte estimate when no encoding loads", func(t *testing.T) {
		e := &TokenEstimator{cache: map[string]encoder{}, load: func(string) (encoder, error) {
			return nil, errors.New("offline")
		}}
		assert.Equal(t, 3, e.Text("x", "abcdefghij"))
		assert.Equal(t, 0, e.Text("x", ""))
	})
}

func TestOpenAIAdapter_ChatWithUsage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"title\":\"Go\"}"}}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 58, "total_tokens": 100}
		}`)
	}))
	defer srv.Close()

	a, err := NewOpenAIAdapter("sk-test", "gpt-4o-mini", WithOpenAIBaseURL(srv.URL+"/"), WithOpenAIRetries(0))
	require.NoError(t, err)

	text, u, err := a.ChatWithUsage(context.Background(), adapter.ChatRequest{
		Model:       "gpt-4o",
		Messages:    []adapter.Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "hello"}},
		Temperature: 0.7,
		MaxTokens:   512,
		JSON:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Go"}`, text)
	assert.Equal(t, adapter.Usage{PromptTokens: 42, CompletionTokens: 58, TotalTokens: 100}, u)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.Len(t, got["messages"], 2)
	rf, _ := got["response_format"].(map[string]any)
	assert.Equal(t, "json_object", rf["type"])
}

func TestOpenAIAdapter_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error": {"message": "boom", "type": "server_error"}}`)
	}))
	defer srv.Close()

	a, err := NewOpenAIAdapter("sk-test", "", WithOpenAIBaseURL(srv.URL+"/"), WithOpenAIRetries(0))
	require.NoError(t, err)

	_, _, err = a.ChatWithUsage(context.Background(), adapter.ChatRequest{
		Messages: []adapter.Message{{Role: "user", Content: "hello"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestNewOpenAIAdapter_RequiresKey(t *testing.T) {
	_, err := NewOpenAIAdapter("", "gpt-4o")
	assert.Error(t, err)
}

type blockingAI struct {
	inFlight int32
	peak     int32
	release  chan struct{}
}

func (b *blockingAI) Provider() string                                 { return "blocking" }
func (b *blockingAI) ListModels(ctx context.Context) ([]string, error) { return nil, nil }
func (b *blockingAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return 0, nil
}
func (b *blockingAI) ChatWithUsage(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	n := atomic.AddInt32(&b.inFlight, 1)
	for {
		p := atomic.LoadInt32(&b.peak)
		if n <= p || atomic.CompareAndSwapInt32(&b.peak, p, n) {
			break
		}
	}
	<-b.release
	atomic.AddInt32(&b.inFlight, -1)
	return "ok", adapter.Usage{}, nil
}

func TestLimitedAI(t *testing.T) {
	t.Run("caps concurrent calls", func(t *testing.T) {
		inner := &blockingAI{release: make(chan struct{})}
		l := NewLimitedAI(inner, 2)

		done := make(chan struct{})
		for i := 0; i < 5; i++ {
			go func() {
				_, _, _ = l.ChatWithUsage(context.Background(), adapter.ChatRequest{})
				done <- struct{}{}
			}()
		}
		time.Sleep(50 * time.Millisecond)
		for i := 0; i < 5; i++ {
			inner.release <- struct{}{}
			<-done
		}
		assert.LessOrEqual(t, atomic.LoadInt32(&inner.peak), int32(2))
	})

	t.Run("gives up when the context ends while waiting", func(t *testing.T) {
		inner := &blockingAI{release: make(chan struct{})}
		l := NewLimitedAI(inner, 1)

		go func() { _, _, _ = l.ChatWithUsage(context.Background(), adapter.ChatRequest{}) }()
		time.Sleep(20 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, _, err := l.ChatWithUsage(ctx, adapter.ChatRequest{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		inner.release <- struct{}{}
	})

	t.Run("non-positive limit returns the inner adapter", func(t *testing.T) {
		inner := &blockingAI{}
		assert.Same(t, inner, NewLimitedAI(inner, 0))
	})
}

func TestSplitSystem(t *testing.T) {
	sys, rest := splitSystem([]adapter.Message{
		{Role: "system", Content: "a"},
		{Role: "user", Content: "q"},
		{Role: "system", Content: "b"},
	})
	assert.Equal(t, "a\n\nb", sys)
	require.Len(t, rest, 1)
	assert.Equal(t, "q", rest[0].Content)

	h := toGenAIHistory([]adapter.Message{{Role: "assistant", Content: "x"}, {Role: "user", Content: "y"}})
	assert.Equal(t, "model", h[0].Role)
	assert.Equal(t, "user", h[1].Role)
}

func TestNoopAIAdapter_RepliesMatchArtifactShapes(t *testing.T) {
	logger := zerolog.New(io.Discard)
	a := NewNoopAIAdapter(&logger)
	a.delay = 0
	ctx := context.Background()

	ask := func(system string) string {
		text, u, err := a.ChatWithUsage(ctx, adapter.ChatRequest{Messages: []adapter.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: "go"},
		}})
		require.NoError(t, err)
		assert.Positive(t, u.TotalTokens)
		return text
	}

	var course model.CourseOutline
	require.NoError(t, json.Unmarshal([]byte(ask("You are an expert course designer.")), &course))
	assert.NoError(t, course.Validate())

	var lesson model.LessonPlan
	require.NoError(t, json.Unmarshal([]byte(ask("You write one lesson.")), &lesson))
	assert.NoError(t, lesson.Validate())

	var quiz model.QuizSheet
	require.NoError(t, json.Unmarshal([]byte(ask("You write a quiz.")), &quiz))
	assert.NoError(t, quiz.Validate())
}
