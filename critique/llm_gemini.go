package critique

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiLLM implements LLMClient with the Google Gen AI SDK.
type GeminiLLM struct {
	Model  string
	client *genai.Client
}

func NewGeminiLLMFromConfig(ctx context.Context, cfg *LLMSettings) (*GeminiLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, ErrNoCredential
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &GeminiLLM{Model: model, client: client}, nil
}

func (g *GeminiLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	gc := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		Temperature:       genai.Ptr(float32(prompt.Temperature)),
	}
	if prompt.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(prompt.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.Model, genai.Text(prompt.User), gc)
	if err != nil {
		return "", classifyGemini(ctx, err)
	}
	text := resp.Text()
	if text == "" {
		return "", &ServiceError{Kind: KindUnparseable, Err: errors.New("gemini: empty response")}
	}
	return text, nil
}

func classifyGemini(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ServiceError{Kind: kindForStatus(apiErr.Code), Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &ServiceError{Kind: kindForStatus(apiErrPtr.Code), Err: err}
	}
	return classify(ctx, err)
}
