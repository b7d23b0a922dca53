package ai

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"ai-course-studio/internal/domain/ports/adapter"
)

const fallbackEncoding = "cl100k_base"

// Per-message framing overhead of the chat format, and the tokens that prime
// the assistant reply.
const (
	tokensPerMessage = 3
	tokensReplyPrime = 3
)

type encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

// TokenEstimator counts chat tokens with tiktoken. Encodings are loaded once
// per model; when none can be loaded it falls back to one token per four bytes.
type TokenEstimator struct {
	mu    sync.Mutex
	cache map[string]encoder
	load  func(model string) (encoder, error)
}

func NewTokenEstimator() *TokenEstimator {
	return &TokenEstimator{cache: make(map[string]encoder), load: loadEncoding}
}

func loadEncoding(model string) (encoder, error) {
	if enc, err := tiktoken.EncodingForModel(model); err == nil {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(fallbackEncoding)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

func (e *TokenEstimator) encoderFor(model string) encoder {
	e.mu.Lock()
	defer e.mu.Unlock()
	if enc, ok := e.cache[model]; ok {
		return enc
	}
	enc, err := e.load(model)
	if err != nil {
		enc = nil
	}
	e.cache[model] = enc
	return enc
}

// Text counts the tokens of a bare string.
func (e *TokenEstimator) Text(model, text string) int {
	if text == "" {
		return 0
	}
	if enc := e.encoderFor(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return roughTokens(text)
}

// Messages counts the prompt tokens of a chat request.
func (e *TokenEstimator) Messages(model string, messages []adapter.Message) int {
	n := tokensReplyPrime
	for _, m := range messages {
		n += tokensPerMessage + e.Text(model, m.Role) + e.Text(model, m.Content)
	}
	return n
}

func roughTokens(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}
