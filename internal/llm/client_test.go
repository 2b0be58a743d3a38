package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCompleteAssemblesSSEStream(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"data: {\"choices\":[{\"delta\":{\"content\":\"hello \"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"world\"}}]}\n\n" +
				"data: [DONE]\n\n",
		))
	}))
	defer server.Close()

	client := NewClient(Options{Endpoint: server.URL, Model: "test"})
	reply, err := client.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != "hello world" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestCompleteAcceptsUnaryResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"unary answer"}}]}`))
	}))
	defer server.Close()

	client := NewClient(Options{Endpoint: server.URL, Model: "test"})
	reply, err := client.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != "unary answer" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestCompleteRejectsNon200(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Options{Endpoint: server.URL, Model: "test"})
	if _, err := client.Complete(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func TestCompleteRejectsEmptyReply(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	client := NewClient(Options{Endpoint: server.URL, Model: "test"})
	if _, err := client.Complete(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected error for empty reply")
	}
}

func TestCompleteHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client disconnect and
		// cancel r.Context(); otherwise Close blocks on this handler forever.
		_, _ = io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(Options{Endpoint: server.URL, Model: "test", RequestTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	if _, err := client.Complete(ctx, "prompt"); err == nil {
		t.Fatalf("expected error after cancellation")
	}
}
