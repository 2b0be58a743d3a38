package classify

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}

func TestClassifyAcceptsWellFormedReply(t *testing.T) {
	t.Parallel()

	client := NewClient(&fakeCompleter{
		reply: `{"focus":"是","problem":"是","summary":"电池衰减投诉","severity":"高"}`,
	}, zerolog.Nop())

	result, err := client.Classify(context.Background(), "标题", "正文", "")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !result.Pass() {
		t.Fatalf("expected result to pass the gate: %+v", result)
	}
	if result.Summary != "电池衰减投诉" || result.Severity != SeverityHigh {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClassifyFencedReply(t *testing.T) {
	t.Parallel()

	client := NewClient(&fakeCompleter{
		reply: "```json\n{\"focus\":\"是\",\"problem\":\"否\",\"summary\":\"评测对比\",\"severity\":\"低\"}\n```",
	}, zerolog.Nop())

	result, err := client.Classify(context.Background(), "标题", "正文", "")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Pass() {
		t.Fatalf("problem=否 should not pass the gate")
	}
	if result.Severity != SeverityLow {
		t.Fatalf("unexpected severity: %q", result.Severity)
	}
}

func TestClassifyMalformedReplyFailsClosed(t *testing.T) {
	t.Parallel()

	client := NewClient(&fakeCompleter{reply: "抱歉，我无法处理这个请求。"}, zerolog.Nop())

	result, err := client.Classify(context.Background(), "标题", "正文", "")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Pass() {
		t.Fatalf("malformed reply must not pass the gate")
	}
	if result.Severity != SeverityMedium {
		t.Fatalf("expected default severity, got %q", result.Severity)
	}
	if result.Summary == "" {
		t.Fatalf("summary should carry the raw reply")
	}
}

func TestClassifyUnknownEnumValuesIgnored(t *testing.T) {
	t.Parallel()

	client := NewClient(&fakeCompleter{
		reply: `{"focus":"maybe","problem":"yes","summary":"s","severity":"紧急"}`,
	}, zerolog.Nop())

	result, err := client.Classify(context.Background(), "标题", "正文", "")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Focus || result.Problem {
		t.Fatalf("non-enumerated answers must read as negative: %+v", result)
	}
	if result.Severity != SeverityMedium {
		t.Fatalf("unknown severity must fall back to medium, got %q", result.Severity)
	}
}

func TestClassifyTransportFailureFailsClosed(t *testing.T) {
	t.Parallel()

	client := NewClient(&fakeCompleter{err: fmt.Errorf("connection refused")}, zerolog.Nop())

	result, err := client.Classify(context.Background(), "标题", "正文", "")
	if err == nil {
		t.Fatalf("expected a diagnostic error")
	}
	if result.Pass() {
		t.Fatalf("transport failure must not pass the gate")
	}
	if !strings.HasPrefix(result.Summary, "[评估失败]") {
		t.Fatalf("summary should be labeled as failed, got %q", result.Summary)
	}
	if result.Severity != SeverityMedium {
		t.Fatalf("expected default severity, got %q", result.Severity)
	}
}

func TestBuildEvaluationPromptIncludesFields(t *testing.T) {
	t.Parallel()

	prompt := buildEvaluationPrompt("我的标题", "我的正文", "我的OCR")
	for _, want := range []string{"我的标题", "我的正文", "我的OCR", "focus", "severity"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}
