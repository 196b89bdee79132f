package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ForumWatcher/internal/config"
	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/ports"
)

const (
	channel        = "telegram"
	defaultAPIBase = "https://api.telegram.org"
	maxMessageLen  = 4096
)

// Notifier sends alerts to a Telegram chat via bot API.
type Notifier struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(cfg config.TelegramConfig) *Notifier {
	base := strings.TrimSuffix(cfg.APIBase, "/")
	if base == "" {
		base = defaultAPIBase
	}
	return &Notifier{
		apiBase:  base,
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts a plain-text message. Failures are *domain.NotifyError.
func (n *Notifier) Send(ctx context.Context, message string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return &domain.NotifyError{Channel: channel, Err: errors.New("telegram notifier misconfigured")}
	}

	if runes := []rune(message); len(runes) > maxMessageLen {
		message = string(runes[:maxMessageLen])
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", message)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &domain.NotifyError{Channel: channel, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return &domain.NotifyError{Channel: channel, Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	var out apiResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out)

	if resp.StatusCode != http.StatusOK || !out.OK {
		return &domain.NotifyError{Channel: channel, Err: fmt.Errorf("telegram error: %s %s", resp.Status, out.Description)}
	}

	return nil
}
