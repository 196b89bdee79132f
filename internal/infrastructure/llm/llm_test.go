package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForumWatcher/internal/config"
	"ForumWatcher/internal/domain"
)

var exchange = []domain.Message{
	{Role: domain.RoleSystem, Content: "be brief"},
	{Role: domain.RoleUser, Content: "a new VPS offer"},
}

func TestWorkersAIInvoke(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody struct {
			Messages []domain.Message `json:"messages"`
		}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"result":{"response":"Cheap plan END tail"},"success":true,"errors":[]}`))
	}))
	defer server.Close()

	backend := NewWorkersAIBackend(config.ClassifierConfig{Endpoint: server.URL, AccountID: "acct", Token: "tok"})
	reply, err := backend.Invoke(context.Background(), "@cf/qwen/qwen1.5-14b-chat-awq", exchange)

	require.NoError(t, err)
	assert.Equal(t, "Cheap plan END tail", reply)
	assert.Equal(t, "/accounts/acct/ai/run/@cf/qwen/qwen1.5-14b-chat-awq", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, exchange, gotBody.Messages)
}

func TestWorkersAIFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "http error", status: http.StatusUnauthorized, body: `{"success":false}`},
		{name: "rejected", status: http.StatusOK, body: `{"success":false,"errors":[{"code":7000,"message":"no route"}]}`},
		{name: "missing response", status: http.StatusOK, body: `{"success":true,"result":{}}`},
		{name: "not json", status: http.StatusOK, body: `<html>`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			backend := NewWorkersAIBackend(config.ClassifierConfig{Endpoint: server.URL, AccountID: "a", Token: "t"})
			_, err := backend.Invoke(context.Background(), "m", exchange)

			var ce *domain.ClassificationError
			assert.True(t, errors.As(err, &ce), "got %v", err)
		})
	}
}

func TestWorkersAIMisconfigured(t *testing.T) {
	_, err := NewWorkersAIBackend(config.ClassifierConfig{}).Invoke(context.Background(), "m", exchange)

	var ce *domain.ClassificationError
	assert.True(t, errors.As(err, &ce))
}

func TestChatGPTInvoke(t *testing.T) {
	var got struct {
		Model    string           `json:"model"`
		Messages []domain.Message `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Looks relevant END"}}]}`))
	}))
	defer server.Close()

	backend := NewChatGPTBackend(config.ClassifierConfig{Endpoint: server.URL, Token: "sk"})
	reply, err := backend.Invoke(context.Background(), "gpt-4o-mini", []domain.Message{
		{Role: domain.RoleSystem, Content: "Reply FALSE unless it is a deal."},
		{Role: domain.RoleUser, Content: "comment"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Looks relevant END", reply)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "Reply FALSE unless it is a deal.", got.Messages[0].Content)
	assert.Equal(t, domain.RoleUser, got.Messages[1].Role)
}

func TestChatGPTNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := NewChatGPTBackend(config.ClassifierConfig{Endpoint: server.URL, Token: "sk"}).
		Invoke(context.Background(), "m", exchange)

	var ce *domain.ClassificationError
	assert.True(t, errors.As(err, &ce))
}

func TestGeminiInvoke(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Short "},{"text":"answer"}]}}]}`))
	}))
	defer server.Close()

	backend, err := NewGeminiBackend(context.Background(), config.ClassifierConfig{Token: "key", Endpoint: server.URL})
	require.NoError(t, err)

	reply, err := backend.Invoke(context.Background(), "gemini-test", exchange)

	require.NoError(t, err)
	assert.Equal(t, "Short answer", reply)
	assert.Contains(t, body, "be brief")
	assert.Contains(t, body, "a new VPS offer")
}

func TestGeminiRequiresKey(t *testing.T) {
	_, err := NewGeminiBackend(context.Background(), config.ClassifierConfig{})
	assert.Error(t, err)
}

func TestNoopBackend(t *testing.T) {
	reply, err := NoopBackend{}.Invoke(context.Background(), "", exchange)
	require.NoError(t, err)
	assert.Empty(t, reply)
}
