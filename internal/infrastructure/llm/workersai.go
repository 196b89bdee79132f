package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"ForumWatcher/internal/config"
	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/ports"
)

const defaultWorkersAIEndpoint = "https://api.cloudflare.com/client/v4"

// WorkersAIBackend runs chat models hosted on Cloudflare Workers AI.
type WorkersAIBackend struct {
	endpoint   string
	accountID  string
	token      string
	httpClient *http.Client
}

var _ ports.ClassifierBackend = (*WorkersAIBackend)(nil)

// NewWorkersAIBackend builds a backend from configuration.
func NewWorkersAIBackend(cfg config.ClassifierConfig) *WorkersAIBackend {
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultWorkersAIEndpoint
	}
	return &WorkersAIBackend{
		endpoint:   endpoint,
		accountID:  cfg.AccountID,
		token:      cfg.Token,
		httpClient: newHTTPClient(0),
	}
}

type workersAIResponse struct {
	Success *bool `json:"success"`
	Result  *struct {
		Response *string `json:"response"`
	} `json:"result"`
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Invoke posts the exchange to /accounts/{account}/ai/run/{model}.
func (w *WorkersAIBackend) Invoke(ctx context.Context, model string, messages []domain.Message) (string, error) {
	if w.token == "" || w.accountID == "" || model == "" {
		return "", &domain.ClassificationError{Op: "workersai", Err: errors.New("workers ai backend misconfigured")}
	}

	// Model ids contain slashes (@cf/vendor/name) that are part of the path.
	endpoint := fmt.Sprintf("%s/accounts/%s/ai/run/%s", w.endpoint, url.PathEscape(w.accountID), model)

	var out workersAIResponse
	err := postJSON(ctx, w.httpClient, endpoint, w.token, map[string]any{"messages": messages}, &out)
	if err != nil {
		return "", &domain.ClassificationError{Op: "workersai", Err: err}
	}

	if out.Success != nil && !*out.Success {
		msg := "request rejected"
		if len(out.Errors) > 0 {
			msg = fmt.Sprintf("code %d: %s", out.Errors[0].Code, out.Errors[0].Message)
		}
		return "", &domain.ClassificationError{Op: "workersai", Err: errors.New(msg)}
	}
	if out.Result == nil || out.Result.Response == nil {
		return "", &domain.ClassificationError{Op: "workersai", Err: errors.New("response has no result.response")}
	}

	return *out.Result.Response, nil
}
