package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"ForumWatcher/internal/config"
	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/ports"
)

// GeminiBackend runs the exchange on Google Gemini. System messages become the system instruction.
type GeminiBackend struct {
	client *genai.Client
}

var _ ports.ClassifierBackend = (*GeminiBackend)(nil)

// NewGeminiBackend creates a genai client. Endpoint, when set, overrides the API base URL.
func NewGeminiBackend(ctx context.Context, cfg config.ClassifierConfig) (*GeminiBackend, error) {
	if cfg.Token == "" {
		return nil, errors.New("gemini api key is not set")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.Token,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiBackend{client: client}, nil
}

// Invoke generates one reply.
func (g *GeminiBackend) Invoke(ctx context.Context, model string, messages []domain.Message) (string, error) {
	var (
		system []string
		user   []string
	)
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		user = append(user, m.Content)
	}

	var genCfg *genai.GenerateContentConfig
	if len(system) > 0 {
		genCfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(strings.Join(system, "\n"), genai.RoleUser),
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(strings.Join(user, "\n")), genCfg)
	if err != nil {
		return "", &domain.ClassificationError{Op: "gemini", Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &domain.ClassificationError{Op: "gemini", Err: errors.New("no candidates in response")}
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}
