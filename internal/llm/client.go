package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Options struct {
	Endpoint       string
	Model          string
	RequestTimeout time.Duration
}

// Client is a chat-completion transport. The remote may answer as an SSE
// stream of data: lines or as a single JSON completion; Complete accepts
// either shape and returns the assembled reply text.
type Client struct {
	opts       Options
	httpClient *http.Client
}

func NewClient(opts Options) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 300 * time.Second
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Content string `json:"content"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		Model:    c.opts.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chat service status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var chunks []string
	var rawBody bytes.Buffer
	sawSSE := false

	scanner := bufio.NewScanner(io.TeeReader(resp.Body, &rawBody))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		sawSSE = true
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Not a JSON chunk shell; keep the raw text.
			chunks = append(chunks, data)
			continue
		}
		for _, choice := range chunk.Choices {
			if text := choiceText(choice.Delta.Content, choice.Content, choice.Message.Content); text != "" {
				chunks = append(chunks, text)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if !sawSSE {
		// Unary reply: the whole body is one completion object.
		var unary chatChunk
		if err := json.Unmarshal(rawBody.Bytes(), &unary); err != nil {
			return "", fmt.Errorf("decode chat response: %w", err)
		}
		for _, choice := range unary.Choices {
			if text := choiceText(choice.Message.Content, choice.Content, choice.Delta.Content); text != "" {
				chunks = append(chunks, text)
			}
		}
	}

	reply := strings.TrimSpace(strings.Join(chunks, ""))
	if reply == "" {
		return "", fmt.Errorf("chat response contained no content")
	}
	return reply, nil
}

func choiceText(candidates ...string) string {
	for _, text := range candidates {
		if text != "" {
			return text
		}
	}
	return ""
}
