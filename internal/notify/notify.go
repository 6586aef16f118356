// Package notify delivers messages to users over the chat platform's bot
// API. The reminder daemon is its only caller; the HTTP API never sends
// messages directly.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notifier sends a plain-text message to a user.
type Notifier interface {
	Send(ctx context.Context, userID int64, text string) error
}

// BotSender delivers messages through the bot API's sendMessage method.
type BotSender struct {
	baseURL string
	token   string
	client  *http.Client
}

const defaultBotAPI = "https://api.telegram.org"

// NewBotSender creates a sender for the given bot token. baseURL is
// overridable for tests; empty means the public API host.
func NewBotSender(token, baseURL string) *BotSender {
	if baseURL == "" {
		baseURL = defaultBotAPI
	}
	return &BotSender{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts a sendMessage call. The chat ID is the user ID; private bot
// chats share the user's numeric ID.
func (s *BotSender) Send(ctx context.Context, userID int64, text string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id": userID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("marshal sendMessage: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message to %d: %w", userID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send message to %d: status %d: %s", userID, resp.StatusCode, body)
	}
	return nil
}
