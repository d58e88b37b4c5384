package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"
)

// TelegramNotifier sends alerts through the Telegram bot API, one sendMessage
// per configured chat.
type TelegramNotifier struct {
	baseURL string
	token   string
	chatIDs []string
	enabled bool
	client  *http.Client
}

// TelegramConfig holds Telegram configuration. BaseURL is overridable for
// tests; empty selects the real API.
type TelegramConfig struct {
	BaseURL string
	Token   string
	ChatIDs []string
	Enabled bool
}

// NewTelegramNotifier creates a Telegram notifier.
func NewTelegramNotifier(cfg TelegramConfig) *TelegramNotifier {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.telegram.org"
	}
	return &TelegramNotifier{
		baseURL: base,
		token:   cfg.Token,
		chatIDs: cfg.ChatIDs,
		enabled: cfg.Enabled && cfg.Token != "" && len(cfg.ChatIDs) > 0,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

func (t *TelegramNotifier) IsEnabled() bool { return t.enabled }

// Send posts the notification to every chat. The first failure is returned
// but remaining chats are still attempted.
func (t *TelegramNotifier) Send(n *Notification) error {
	if !t.enabled {
		return nil
	}
	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(n.Title), html.EscapeString(n.Message))
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	var firstErr error
	for _, chatID := range t.chatIDs {
		payload, err := json.Marshal(map[string]interface{}{
			"chat_id":    chatID,
			"text":       text,
			"parse_mode": "HTML",
		})
		if err != nil {
			return fmt.Errorf("marshal telegram payload: %w", err)
		}
		resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(payload))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("send telegram message: %w", err)
			}
			continue
		}
		if resp.StatusCode != http.StatusOK && firstErr == nil {
			firstErr = fmt.Errorf("telegram API returned status %d", resp.StatusCode)
		}
		resp.Body.Close()
	}
	return firstErr
}
