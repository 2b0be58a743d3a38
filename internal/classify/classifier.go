package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/KurimiTokisakiQAQ/kd/internal/llm"
)

const (
	SeverityLow    = "低"
	SeverityMedium = "中"
	SeverityHigh   = "高"

	answerYes = "是"
)

// Result is the structured judgment for one post. Zero value is the
// fail-closed outcome: off-topic, no problem, medium severity.
type Result struct {
	Focus    bool
	Problem  bool
	Summary  string
	Severity string
}

// Pass reports whether the post clears the alert gate.
func (r Result) Pass() bool {
	return r.Focus && r.Problem
}

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client wraps the remote text-understanding capability behind a fail-closed
// contract: transport failures and garbled replies never stop the pipeline,
// they produce a Result the gate rejects.
type Client struct {
	completer Completer
	logger    zerolog.Logger
}

func NewClient(completer Completer, logger zerolog.Logger) *Client {
	return &Client{
		completer: completer,
		logger:    logger,
	}
}

// Classify evaluates one post. The returned Result is always usable; a
// non-nil error is diagnostic only and means the result was forced closed.
func (c *Client) Classify(ctx context.Context, title, body, ocr string) (Result, error) {
	prompt := buildEvaluationPrompt(title, body, ocr)

	reply, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		failed := Result{
			Summary:  fmt.Sprintf("[评估失败] %v", err),
			Severity: SeverityMedium,
		}
		return failed, fmt.Errorf("classifier unavailable: %w", err)
	}

	return parseEvaluation(reply), nil
}

func buildEvaluationPrompt(title, body, ocr string) string {
	return "请严格评估以下帖子，并只返回纯JSON：" +
		`{"focus":"是|否","problem":"是|否","summary":"约50字中文摘要","severity":"低|中|高"}。` +
		"判定规则：" +
		"focus=是：帖子的主体必须严格围绕理想汽车（Li Auto/理想ONE/L6/L7/L8/L9/i6/i8/Mega）的电池或增程器的问题。" +
		"problem=是：明确指出理想电池或增程器存在不足/缺陷/风险/故障/事故/投诉/维权/召回等问题；" +
		"若为品牌对比/评测/体验分享/一般建议/科普等，且未明确指出理想电池或增程器有问题，则problem=否。" +
		fmt.Sprintf("\n标题：%s\n正文：%s\nOCR：%s\n只返回上述JSON。", title, body, ocr)
}

type evaluationPayload struct {
	Focus    string `json:"focus"`
	Problem  string `json:"problem"`
	Summary  string `json:"summary"`
	Severity string `json:"severity"`
}

// parseEvaluation accepts only the enumerated values; anything unrecognized
// keeps the fail-closed defaults. The summary falls back to the fence-stripped
// raw reply so operators still see what the model said.
func parseEvaluation(reply string) Result {
	result := Result{Severity: SeverityMedium}

	var payload evaluationPayload
	if err := json.Unmarshal([]byte(llm.ExtractJSONObject(reply)), &payload); err == nil {
		result.Focus = strings.TrimSpace(payload.Focus) == answerYes
		result.Problem = strings.TrimSpace(payload.Problem) == answerYes
		result.Summary = strings.TrimSpace(payload.Summary)
		if sev := strings.TrimSpace(payload.Severity); sev == SeverityLow || sev == SeverityMedium || sev == SeverityHigh {
			result.Severity = sev
		}
	}

	if result.Summary == "" {
		result.Summary = llm.StripCodeFence(reply)
	}
	return result
}
