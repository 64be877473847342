package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences_Basic(t *testing.T) {
	text := "First sentence. Second one? Third one! Trailing fragment"
	sentences := SplitSentences(text)

	require.Len(t, sentences, 4)
	assert.Equal(t, "First sentence.", sentences[0])
	assert.Equal(t, "Second one?", sentences[1])
	assert.Equal(t, "Third one!", sentences[2])
	assert.Equal(t, "Trailing fragment", sentences[3])
}

func TestSplitSentences_NoSplitInsideToken(t *testing.T) {
	// 小数点和域名内的点后面没有空白，不是句子边界
	sentences := SplitSentences("Inflation hit 3.5 percent. See example.com for details.")

	require.Len(t, sentences, 2)
	assert.Equal(t, "Inflation hit 3.5 percent.", sentences[0])
	assert.Equal(t, "See example.com for details.", sentences[1])
}

func TestSplitSentences_Empty(t *testing.T) {
	assert.Nil(t, SplitSentences(""))
	assert.Nil(t, SplitSentences("   \n\t  "))
}

func TestChunk_PacksGreedily(t *testing.T) {
	// 三句各约 220 字符，上限 500：前两句同块，第三句另起一块
	s1 := strings.Repeat("a", 219) + "."
	s2 := strings.Repeat("b", 219) + "."
	s3 := strings.Repeat("c", 219) + "."
	text := s1 + " " + s2 + " " + s3

	chunks := Chunk(text, 500)

	require.Len(t, chunks, 2)
	assert.Equal(t, s1+" "+s2, chunks[0])
	assert.Equal(t, s3, chunks[1])
}

func TestChunk_OversizedSentenceKeptWhole(t *testing.T) {
	long := strings.Repeat("x", 800) + "."
	text := "Short lead. " + long + " Short tail."

	chunks := Chunk(text, 100)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Short lead.", chunks[0])
	assert.Equal(t, long, chunks[1])
	assert.Equal(t, "Short tail.", chunks[2])
}

func TestChunk_RecombinesToOriginal(t *testing.T) {
	text := "One. Two. Three. Four. Five. Six. Seven. Eight. Nine. Ten."

	chunks := Chunk(text, 20)

	require.NotEmpty(t, chunks)
	// 片段按顺序以空格重组后应还原原文（原文句间也是单空格）
	assert.Equal(t, text, strings.Join(chunks, " "))
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 20)
	}
}

func TestChunk_Deterministic(t *testing.T) {
	text := "Alpha beta gamma. Delta epsilon? Zeta eta theta! Iota kappa."

	first := Chunk(text, 30)
	second := Chunk(text, 30)

	assert.Equal(t, first, second)
}

func TestChunk_Empty(t *testing.T) {
	assert.Nil(t, Chunk("", 500))
}
