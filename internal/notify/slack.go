package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/assigny/clinic-agent/pkg/logging"
)

// SlackNotifier posts summaries to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewSlackNotifier returns nil when no webhook URL is configured.
func NewSlackNotifier(webhookURL, channel string, logger *logging.Logger) *SlackNotifier {
	if webhookURL == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type slackPayload struct {
	Text    string `json:"text"`
	Channel string `json:"channel,omitempty"`
}

// Post sends one message. An explicit channel overrides the configured one.
func (s *SlackNotifier) Post(ctx context.Context, channel, text string) error {
	if s == nil || s.webhookURL == "" {
		return fmt.Errorf("notify: slack webhook not configured")
	}
	if channel == "" {
		channel = s.channel
	}

	body, err := json.Marshal(slackPayload{Text: text, Channel: channel})
	if err != nil {
		return fmt.Errorf("notify: slack payload encode failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: slack request build failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("slack post failed", "error", err)
		return fmt.Errorf("notify: slack post failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		s.logger.Error("slack returned error status", "status", resp.StatusCode)
		return fmt.Errorf("notify: slack returned status %d", resp.StatusCode)
	}

	s.logger.Info("slack message posted", "channel", channel)
	return nil
}
