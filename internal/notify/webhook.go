package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const requestTimeout = 10 * time.Second

type Options struct {
	WebhookURL    string
	MentionOpenID string
}

// Webhook delivers alerts as rich-post messages. Delivery is best-effort:
// callers log a returned error and move on, the pipeline never retries or
// blocks on it.
type Webhook struct {
	opts       Options
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewWebhook(opts Options, logger zerolog.Logger) *Webhook {
	return &Webhook{
		opts:       opts,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

type postElement struct {
	Tag    string `json:"tag"`
	Text   string `json:"text,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

type webhookAck struct {
	Code       *int   `json:"code"`
	StatusCode *int   `json:"StatusCode"`
	Msg        string `json:"msg"`
}

// Send posts one alert. Success means the endpoint answered HTTP 200 with an
// acknowledgment code of zero; a 200 whose body cannot be parsed is also
// accepted, some webhook proxies answer with plain text.
func (w *Webhook) Send(ctx context.Context, alert Alert) error {
	if w == nil || w.opts.WebhookURL == "" {
		return fmt.Errorf("webhook is not configured")
	}

	body, err := json.Marshal(w.buildPayload(alert))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, w.opts.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}
	if !ackAccepted(respBody) {
		return fmt.Errorf("webhook rejected message: %s", bytes.TrimSpace(respBody))
	}

	w.logger.Info().
		Int64("id", alert.Post.ID).
		Str("severity", alert.Severity).
		Msg("alert delivered")
	return nil
}

func ackAccepted(body []byte) bool {
	var ack webhookAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return true
	}
	if ack.Code != nil {
		return *ack.Code == 0
	}
	if ack.StatusCode != nil {
		return *ack.StatusCode == 0
	}
	return true
}

func (w *Webhook) buildPayload(alert Alert) map[string]any {
	var rows [][]postElement
	for _, line := range messageLines(alert) {
		rows = append(rows, []postElement{{Tag: "text", Text: line}})
	}

	closing := []postElement{}
	if w.opts.MentionOpenID != "" {
		closing = append(closing, postElement{Tag: "at", UserID: w.opts.MentionOpenID})
	}
	closing = append(closing, postElement{
		Tag:  "text",
		Text: fmt.Sprintf("%s（烈度：%s）", adviceForSeverity(alert.Severity), alert.Severity),
	})
	rows = append(rows, closing)

	return map[string]any{
		"msg_type": "post",
		"content": map[string]any{
			"post": map[string]any{
				"zh_cn": map[string]any{
					"title":   "舆情负面预警",
					"content": rows,
				},
			},
		},
	}
}
