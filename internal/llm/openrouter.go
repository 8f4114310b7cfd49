package llm

import (
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	openRouterAppTitle       = "chatterbox"
)

// OpenRouterProvider routes chat completions through OpenRouter. Model IDs
// are vendor-qualified ("google/gemini-2.0-flash-001") and sent as is.
type OpenRouterProvider struct {
	*OpenAIProvider
}

func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openrouter API key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenRouterBaseURL
	}

	inner, err := newOpenAICompatible(
		OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: base},
		nil,
		func(c *openai.ClientConfig) {
			c.HTTPClient = &http.Client{Transport: titleTransport{next: http.DefaultTransport}}
		},
	)
	if err != nil {
		return nil, err
	}
	return &OpenRouterProvider{OpenAIProvider: inner}, nil
}

// titleTransport adds the X-Title header OpenRouter uses to attribute
// traffic to an app.
type titleTransport struct {
	next http.RoundTripper
}

func (t titleTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("X-Title", openRouterAppTitle)
	return t.next.RoundTrip(r)
}
