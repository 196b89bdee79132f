package llm

import (
	"context"
	"errors"
	"net/http"

	"ForumWatcher/internal/config"
	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/ports"
)

const defaultChatGPTEndpoint = "https://api.openai.com/v1/chat/completions"

// ChatGPTBackend implements ports.ClassifierBackend on OpenAI-compatible chat APIs.
type ChatGPTBackend struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

var _ ports.ClassifierBackend = (*ChatGPTBackend)(nil)

// NewChatGPTBackend builds a client from configuration.
func NewChatGPTBackend(cfg config.ClassifierConfig) *ChatGPTBackend {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultChatGPTEndpoint
	}
	return &ChatGPTBackend{
		endpoint:   endpoint,
		apiKey:     cfg.Token,
		httpClient: newHTTPClient(0),
	}
}

type chatCompletion struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Invoke posts the exchange and returns the first choice.
func (c *ChatGPTBackend) Invoke(ctx context.Context, model string, messages []domain.Message) (string, error) {
	if c == nil || c.apiKey == "" || c.endpoint == "" || model == "" {
		return "", &domain.ClassificationError{Op: "chatgpt", Err: errors.New("chatgpt backend misconfigured")}
	}

	var out chatCompletion
	err := postJSON(ctx, c.httpClient, c.endpoint, c.apiKey, map[string]any{
		"model":    model,
		"messages": messages,
	}, &out)
	if err != nil {
		return "", &domain.ClassificationError{Op: "chatgpt", Err: err}
	}
	if len(out.Choices) == 0 {
		return "", &domain.ClassificationError{Op: "chatgpt", Err: errors.New("response has no choices")}
	}

	return out.Choices[0].Message.Content, nil
}
