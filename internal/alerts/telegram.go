package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramSender posts alerts to a chat through the Bot API sendMessage call
type TelegramSender struct {
	apiBase    string
	token      string
	chatID     string
	httpClient *http.Client
}

// NewTelegramSender creates a new Telegram sender
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		apiBase:    telegramAPIBase,
		token:      token,
		chatID:     chatID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send sends the alert to Telegram
func (s *TelegramSender) Send(ctx context.Context, payload *AlertPayload) error {
	body, err := json.Marshal(map[string]interface{}{
		"chat_id":                  s.chatID,
		"text":                     fmt.Sprintf("[%s] %s %s\n%s", payload.Severity, payload.Type, payload.Address, truncate(payload.Message, 3500)),
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", stripURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
