package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackNotifier sends alerts through an incoming webhook.
type SlackNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// SlackConfig holds Slack configuration.
type SlackConfig struct {
	WebhookURL string
	Enabled    bool
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(cfg SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: cfg.WebhookURL,
		enabled:    cfg.Enabled && cfg.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) IsEnabled() bool { return s.enabled }

func (s *SlackNotifier) Send(n *Notification) error {
	if !s.enabled {
		return nil
	}
	payload, err := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s*\n%s", n.Title, n.Message),
	})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("send slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
