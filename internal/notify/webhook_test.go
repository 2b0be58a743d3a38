package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/KurimiTokisakiQAQ/kd/internal/classify"
	"github.com/KurimiTokisakiQAQ/kd/internal/source"
	"github.com/KurimiTokisakiQAQ/kd/internal/store"
)

func sampleAlert() Alert {
	return Alert{
		Post: source.Post{
			ID:          1,
			Source:      "weibo",
			WorkURL:     "https://example.com/p/1",
			PublishTime: "2025-06-01 10:00:00",
		},
		Summary:  "电池衰减投诉",
		Severity: classify.SeverityMedium,
		Stats:    store.Stats{DayCount: 1, WeekCount: 3},
	}
}

func TestSendAcceptsZeroCode(t *testing.T) {
	t.Parallel()

	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		_, _ = w.Write([]byte(`{"code":0,"msg":"success"}`))
	}))
	defer server.Close()

	webhook := NewWebhook(Options{WebhookURL: server.URL, MentionOpenID: "ou_123"}, zerolog.Nop())
	if err := webhook.Send(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if received["msg_type"] != "post" {
		t.Fatalf("unexpected payload: %v", received)
	}
}

func TestSendRejectsNonZeroCode(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":19001,"msg":"param invalid"}`))
	}))
	defer server.Close()

	webhook := NewWebhook(Options{WebhookURL: server.URL}, zerolog.Nop())
	if err := webhook.Send(context.Background(), sampleAlert()); err == nil {
		t.Fatalf("expected rejection for non-zero code")
	}
}

func TestSendAcceptsLegacyStatusCode(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"StatusCode":0,"StatusMessage":"success"}`))
	}))
	defer server.Close()

	webhook := NewWebhook(Options{WebhookURL: server.URL}, zerolog.Nop())
	if err := webhook.Send(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
}

func TestSendAcceptsUnparseableBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	webhook := NewWebhook(Options{WebhookURL: server.URL}, zerolog.Nop())
	if err := webhook.Send(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("a 200 with a plain-text body should count as delivered: %v", err)
	}
}

func TestSendRejectsHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	webhook := NewWebhook(Options{WebhookURL: server.URL}, zerolog.Nop())
	if err := webhook.Send(context.Background(), sampleAlert()); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}

func TestBuildPayloadMentionAndAdvice(t *testing.T) {
	t.Parallel()

	webhook := NewWebhook(Options{WebhookURL: "http://unused", MentionOpenID: "ou_123"}, zerolog.Nop())
	payload := webhook.buildPayload(sampleAlert())

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	body := string(raw)
	for _, want := range []string{"ou_123", "请相关人员关注", "烈度：中", "舆情负面预警"} {
		if !strings.Contains(body, want) {
			t.Fatalf("payload missing %q: %s", want, body)
		}
	}
}
