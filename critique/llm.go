package critique

import (
	"context"
	"errors"
	"fmt"
)

// LLMClient 抽象大模型客户端，便于替换/Mock。
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderGemini   = "gemini"
	ProviderMock     = "mock"
)

// ErrNoCredential is returned by NewLLM when a remote provider has no API key.
// Callers treat it as "AI disabled" rather than as a startup failure.
var ErrNoCredential = errors.New("llm api key missing")

// NewLLM picks the client implementation for s.Provider.
func NewLLM(s LLMSettings) (LLMClient, error) {
	switch s.Provider {
	case ProviderMock:
		return MockLLM{}, nil
	case ProviderOpenAI, "":
		return NewOpenAILLMFromConfig(&s)
	case ProviderDeepSeek:
		// DeepSeek 提供 OpenAI 兼容接口，需填写 base_url。
		if s.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return NewOpenAILLMFromConfig(&s)
	case ProviderGemini:
		return NewGeminiLLMFromConfig(context.Background(), &s)
	default:
		return nil, fmt.Errorf("llm provider %s not supported", s.Provider)
	}
}
