// Package notify delivers operator alerts.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

// Notifier delivers one alert message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type SlackConfig struct {
	APIURL    string
	Channel   string
	AuthToken string
	Timeout   time.Duration
}

// Slack posts alerts with the chat.postMessage API.
type Slack struct {
	cfg        SlackConfig
	httpClient *http.Client
}

func NewSlack(cfg SlackConfig) *Slack {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Slack{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type slackMessage struct {
	Channel string `json:"channel"`
	Mrkdwn  bool   `json:"mrkdwn"`
	Text    string `json:"text"`
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (s *Slack) Notify(ctx context.Context, text string) error {
	payload, err := json.Marshal(slackMessage{Channel: s.cfg.Channel, Mrkdwn: true, Text: text})
	if err != nil {
		return errors.Wrap(err, "encode slack message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build slack request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.AuthToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "post slack message")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("unexpected status code from slack: %d", resp.StatusCode)
	}

	// Slack answers 200 with ok=false for API level errors
	var result slackResponse
	if err := json.Unmarshal(body, &result); err == nil && !result.OK && result.Error != "" {
		return errors.Newf("slack rejected message: %s", result.Error)
	}
	return nil
}

// LogNotifier writes alerts to the log when no chat backend is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, text string) error {
	n.logger.Warn("alert", "text", text)
	return nil
}

var (
	_ Notifier = (*Slack)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
