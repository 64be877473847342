package chat

import (
	"fmt"
	"strings"

	"news-chat-api/internal/domain/entity"
)

// FallbackContext 检索无命中时注入 Prompt 的兜底上下文
const FallbackContext = "no relevant information found"

// BuildPrompt 将召回片段与用户问题拼装为单个生成 Prompt。
// 约束：只注入正文文本，不把 score/url 等调试信息塞进 Prompt。
func BuildPrompt(chunks []entity.ScoredChunk, query string) string {
	context := FallbackContext
	if len(chunks) > 0 {
		lines := make([]string, 0, len(chunks))
		for i, c := range chunks {
			txt := compactOneLine(c.Text)
			if txt == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("[%d] %s", i+1, txt))
		}
		if len(lines) > 0 {
			context = strings.Join(lines, "\n")
		}
	}

	var b strings.Builder
	b.WriteString("You are a news assistant. Answer the question using only the context below.\n")
	b.WriteString("If the context does not contain the answer, say so briefly.\n\n")
	b.WriteString("Context:\n")
	b.WriteString(context)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\nAnswer:")
	return b.String()
}

func compactOneLine(s string) string {
	out := strings.ReplaceAll(s, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")
	out = strings.ReplaceAll(out, "\n", " ")
	out = strings.TrimSpace(out)
	for strings.Contains(out, "  ") {
		out = strings.ReplaceAll(out, "  ", " ")
	}
	return out
}
