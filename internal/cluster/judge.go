package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/KurimiTokisakiQAQ/kd/internal/llm"
	"github.com/KurimiTokisakiQAQ/kd/internal/store"
)

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Judge asks the language model whether a new post's summary describes the
// same real-world event as any recent cluster summary. It only ever returns
// cluster ids that were offered as candidates; anything else from the model
// is treated as "no match".
type Judge struct {
	completer Completer
	logger    zerolog.Logger
}

func NewJudge(completer Completer, logger zerolog.Logger) *Judge {
	return &Judge{
		completer: completer,
		logger:    logger,
	}
}

// Match returns the chosen cluster id, or "" when no candidate describes the
// same event or the model was unavailable. A non-nil error is diagnostic; the
// caller falls through to the next strategy either way.
func (j *Judge) Match(ctx context.Context, summary string, candidates []store.SummaryCandidate) (string, error) {
	if j == nil || j.completer == nil {
		return "", fmt.Errorf("cluster judge is not initialized")
	}
	if strings.TrimSpace(summary) == "" || len(candidates) == 0 {
		return "", nil
	}

	offered := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		offered[c.ClusterID] = struct{}{}
	}

	reply, err := j.completer.Complete(ctx, buildJudgePrompt(summary, candidates))
	if err != nil {
		return "", fmt.Errorf("cluster judge unavailable: %w", err)
	}

	var verdict struct {
		ClusterID string `json:"cluster_id"`
		Reason    string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSONObject(reply)), &verdict); err != nil {
		return "", fmt.Errorf("cluster judge reply not parseable: %w", err)
	}

	chosen := strings.TrimSpace(verdict.ClusterID)
	if chosen == "" || strings.EqualFold(chosen, "none") {
		return "", nil
	}
	if _, ok := offered[chosen]; !ok {
		j.logger.Warn().
			Str("cluster_id", chosen).
			Msg("cluster judge returned an id outside the offered candidates; ignoring")
		return "", nil
	}
	return chosen, nil
}

func buildJudgePrompt(summary string, candidates []store.SummaryCandidate) string {
	var b strings.Builder
	b.WriteString("你是舆情事件聚类助手。判断【新帖摘要】与下列【已有事件摘要】是否描述同一个具体事件。\n")
	b.WriteString("判定标准：同一事件要求主体、问题类型、发生场景一致；")
	b.WriteString("若摘要含有唯一性数字指标（如具体日期、车架号、订单号、具体金额、具体公里数），数字不同则判为不同事件；")
	b.WriteString("仅话题相似（如都提到电池衰减）但事件不同时，判为不匹配。\n")
	b.WriteString("只返回纯JSON：{\"cluster_id\":\"匹配的事件ID，无匹配时为none\",\"reason\":\"简短理由\"}\n\n")
	b.WriteString("【新帖摘要】")
	b.WriteString(summary)
	b.WriteString("\n\n【已有事件摘要】\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "ID=%s：%s\n", c.ClusterID, c.Summary)
	}
	return b.String()
}
