// Package ingest 实现文档注入流水线：切分、向量化并写入向量集合
package ingest

import (
	"strings"
	"unicode"
)

// SplitSentences 按句子边界切分文本。
// 边界定义：'.'、'?'、'!' 之后紧跟空白字符（或文本结束）。
func SplitSentences(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '?' && r != '!' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		s := strings.TrimSpace(string(runes[start : i+1]))
		if s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// Chunk 将文本贪心打包为长度不超过 maxChars 的片段序列。
// 句子之间以单个空格连接；单句超过 maxChars 时整句独立成块，
// 上限是软约束而非硬上限。纯函数，相同输入产生相同输出。
func Chunk(text string, maxChars int) []string {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var buf strings.Builder
	bufLen := 0

	flush := func() {
		if bufLen > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
			bufLen = 0
		}
	}

	for _, s := range sentences {
		sLen := len([]rune(s))
		switch {
		case bufLen == 0:
			buf.WriteString(s)
			bufLen = sLen
		case bufLen+1+sLen <= maxChars:
			buf.WriteByte(' ')
			buf.WriteString(s)
			bufLen += 1 + sLen
		default:
			flush()
			buf.WriteString(s)
			bufLen = sLen
		}
	}
	flush()

	return chunks
}
