package cluster

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/KurimiTokisakiQAQ/kd/internal/store"
)

type scriptedCompleter struct {
	reply string
	err   error
	seen  string
}

func (s *scriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.seen = prompt
	return s.reply, s.err
}

var judgeCandidates = []store.SummaryCandidate{
	{ClusterID: "evt-1", Summary: "理想L9冬季续航衰减，多位车主投诉"},
	{ClusterID: "evt-2", Summary: "增程器异响召回事件"},
}

func TestJudgeAcceptsOfferedCandidate(t *testing.T) {
	t.Parallel()

	judge := NewJudge(&scriptedCompleter{
		reply: `{"cluster_id":"evt-2","reason":"同一召回事件"}`,
	}, zerolog.Nop())

	got, err := judge.Match(context.Background(), "增程器异响召回进展", judgeCandidates)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if got != "evt-2" {
		t.Fatalf("expected evt-2, got %q", got)
	}
}

func TestJudgeNoneMeansNoMatch(t *testing.T) {
	t.Parallel()

	judge := NewJudge(&scriptedCompleter{
		reply: `{"cluster_id":"none","reason":"事件不同"}`,
	}, zerolog.Nop())

	got, err := judge.Match(context.Background(), "全新事件摘要", judgeCandidates)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if got != "" {
		t.Fatalf("expected no match, got %q", got)
	}
}

func TestJudgeRejectsUnofferedID(t *testing.T) {
	t.Parallel()

	judge := NewJudge(&scriptedCompleter{
		reply: `{"cluster_id":"evt-999","reason":"hallucinated"}`,
	}, zerolog.Nop())

	got, err := judge.Match(context.Background(), "摘要", judgeCandidates)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if got != "" {
		t.Fatalf("ids outside the candidate set must be ignored, got %q", got)
	}
}

func TestJudgeUnparseableReplyIsDiagnostic(t *testing.T) {
	t.Parallel()

	judge := NewJudge(&scriptedCompleter{reply: "我觉得它们很像"}, zerolog.Nop())

	got, err := judge.Match(context.Background(), "摘要", judgeCandidates)
	if err == nil {
		t.Fatalf("expected diagnostic error for unparseable reply")
	}
	if got != "" {
		t.Fatalf("unparseable reply must not yield a cluster id, got %q", got)
	}
}

func TestJudgeTransportFailure(t *testing.T) {
	t.Parallel()

	judge := NewJudge(&scriptedCompleter{err: fmt.Errorf("timeout")}, zerolog.Nop())

	if _, err := judge.Match(context.Background(), "摘要", judgeCandidates); err == nil {
		t.Fatalf("expected error when the model is unavailable")
	}
}

func TestJudgeSkipsEmptyInput(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{reply: `{"cluster_id":"evt-1"}`}
	judge := NewJudge(completer, zerolog.Nop())

	if got, err := judge.Match(context.Background(), "  ", judgeCandidates); err != nil || got != "" {
		t.Fatalf("blank summary should short-circuit, got %q err=%v", got, err)
	}
	if got, err := judge.Match(context.Background(), "摘要", nil); err != nil || got != "" {
		t.Fatalf("no candidates should short-circuit, got %q err=%v", got, err)
	}
	if completer.seen != "" {
		t.Fatalf("model should not be called on short-circuit")
	}
}

func TestJudgePromptListsCandidates(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{reply: `{"cluster_id":"none"}`}
	judge := NewJudge(completer, zerolog.Nop())

	if _, err := judge.Match(context.Background(), "新帖摘要内容", judgeCandidates); err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	for _, want := range []string{"evt-1", "evt-2", "新帖摘要内容", "cluster_id"} {
		if !strings.Contains(completer.seen, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}
