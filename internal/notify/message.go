package notify

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/KurimiTokisakiQAQ/kd/internal/classify"
	"github.com/KurimiTokisakiQAQ/kd/internal/source"
	"github.com/KurimiTokisakiQAQ/kd/internal/store"
)

const summaryRuneLimit = 200

// Alert carries everything one webhook message needs.
type Alert struct {
	Post     source.Post
	Summary  string
	Severity string
	Stats    store.Stats
}

func adviceForSeverity(severity string) string {
	switch severity {
	case classify.SeverityLow:
		return "请相关人员了解"
	case classify.SeverityHigh:
		return "请相关人员重点关注"
	default:
		return "请相关人员关注"
	}
}

func sentimentLabel(raw string) string {
	switch strings.TrimSpace(raw) {
	case "-1":
		return "负面"
	case "0":
		return "中性"
	case "1":
		return "正面"
	default:
		return raw
	}
}

// decodeAuthorName reverses the crawler's double base64 encoding of author
// names. Anything that fails to round-trip is labeled rather than dropped so
// the alert still renders.
func decodeAuthorName(encoded string) string {
	trimmed := strings.TrimSpace(encoded)
	if trimmed == "" {
		return ""
	}

	inner, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return "[解码失败]" + trimmed
	}
	plain, err := base64.StdEncoding.DecodeString(string(inner))
	if err != nil {
		return "[解码失败]" + trimmed
	}
	return string(plain)
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// messageLines renders the ordered label/value rows of the rich-post body.
func messageLines(alert Alert) []string {
	post := alert.Post

	lines := []string{
		"来源平台：" + post.Source,
		"主贴链接：" + post.WorkURL,
		"发布时间：" + post.PublishTime,
		"作者名称：" + decodeAuthorName(post.AccountName),
	}
	if senti := sentimentLabel(post.ContentSenti); senti != "" {
		lines = append(lines, "内容情感："+senti)
	}
	lines = append(lines,
		"文章摘要："+truncateRunes(alert.Summary, summaryRuneLimit),
		fmt.Sprintf("七日内相似主贴数量：%d", alert.Stats.WeekCount),
		fmt.Sprintf("单日内相似主贴数量：%d", alert.Stats.DayCount),
	)
	return lines
}
