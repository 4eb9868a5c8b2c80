package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notification carries the context of one outbound alert or update.
type Notification struct {
	Kind     string // "error" or "update"
	Resource string
	Symbol   string
	Title    string
	Body     string
	At       time.Time
}

// Notifier delivers notifications. Delivery is best-effort: callers log
// errors and move on, a failed send never affects polling or caching.
type Notifier interface {
	Send(ctx context.Context, note Notification) error
}

// WebhookNotifier posts notifications to a chat webhook as a JSON object
// with a content field and a single embed.
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
	logger     zerolog.Logger
}

// NewWebhookNotifier constructs a webhook notifier.
func NewWebhookNotifier(webhookURL string, timeout time.Duration, logger zerolog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WebhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "alert_webhook").Logger(),
	}
}

type webhookEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

type webhookPayload struct {
	Content string         `json:"content"`
	Embeds  []webhookEmbed `json:"embeds"`
}

// Send posts the notification, returning an error on any non-2xx answer.
func (n *WebhookNotifier) Send(ctx context.Context, note Notification) error {
	payload := webhookPayload{
		Content: renderContent(note),
		Embeds: []webhookEmbed{{
			Title:       note.Title,
			Description: note.Body,
			Timestamp:   note.At.UTC().Format(time.RFC3339),
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}

	n.logger.Info().
		Str("kind", note.Kind).
		Str("resource", note.Resource).
		Str("symbol", note.Symbol).
		Msg("notification delivered")
	return nil
}

func renderContent(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[%s] %s/%s", strings.ToUpper(note.Kind), note.Resource, note.Symbol))
	if note.Title != "" {
		builder.WriteString(": ")
		builder.WriteString(note.Title)
	}
	return builder.String()
}

// NoopNotifier stands in when no webhook URL is configured. Notifications
// degrade to a local log line so the process keeps running unconfigured.
type NoopNotifier struct {
	logger zerolog.Logger
}

// NewNoopNotifier constructs the logging stand-in.
func NewNoopNotifier(logger zerolog.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger.With().Str("component", "alert_noop").Logger()}
}

// Send logs the notification and reports success.
func (n *NoopNotifier) Send(_ context.Context, note Notification) error {
	n.logger.Info().
		Str("kind", note.Kind).
		Str("resource", note.Resource).
		Str("symbol", note.Symbol).
		Str("title", note.Title).
		Msg("webhook not configured; notification logged only")
	return nil
}

var _ Notifier = (*WebhookNotifier)(nil)
var _ Notifier = (*NoopNotifier)(nil)
