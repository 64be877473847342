package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "news-chat-api/pkg/errors"

	"news-chat-api/internal/domain/entity"
)

type fakeEmbedder struct {
	vectors [][]float32
	err     error
}

func (f *fakeEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

type fakeSearcher struct {
	chunks []entity.ScoredChunk
	err    error
}

func (f *fakeSearcher) Search(context.Context, []float32, int) ([]entity.ScoredChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

type fakeTokenStream struct {
	fragments []string
	err       error
	closed    bool
	pos       int
}

func (f *fakeTokenStream) Recv() (string, error) {
	if f.pos < len(f.fragments) {
		frag := f.fragments[f.pos]
		f.pos++
		return frag, nil
	}
	if f.err != nil {
		return "", f.err
	}
	return "", io.EOF
}

func (f *fakeTokenStream) Close() { f.closed = true }

type fakeGenerator struct {
	stream    *fakeTokenStream
	streamErr error
	prompt    string
}

func (f *fakeGenerator) Stream(_ context.Context, prompt string) (TokenStream, error) {
	f.prompt = prompt
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return f.stream, nil
}

type fakeSessions struct {
	appendErr error
	appended  map[string][]entity.Turn
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{appended: make(map[string][]entity.Turn)}
}

func (f *fakeSessions) Append(_ context.Context, sessionID string, turn entity.Turn) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended[sessionID] = append(f.appended[sessionID], turn)
	return nil
}

func (f *fakeSessions) History(_ context.Context, sessionID string) ([]entity.Turn, error) {
	return f.appended[sessionID], nil
}

func (f *fakeSessions) Clear(_ context.Context, sessionID string) error {
	delete(f.appended, sessionID)
	return nil
}

func defaultVector() [][]float32 {
	return [][]float32{{0.1, 0.2, 0.3}}
}

// drain 读完整个流并返回拼接的答案
func drain(t *testing.T, stream *AnswerStream) string {
	t.Helper()
	var sb strings.Builder
	timeout := time.After(5 * time.Second)
	for {
		select {
		case frag, ok := <-stream.Fragments():
			if !ok {
				return sb.String()
			}
			sb.WriteString(frag)
		case <-timeout:
			t.Fatal("timed out draining answer stream")
		}
	}
}

func TestAsk_EmptyQueryRejected(t *testing.T) {
	e := NewEngine(&fakeEmbedder{}, &fakeSearcher{}, &fakeGenerator{}, newFakeSessions(), 3)

	_, err := e.Ask(context.Background(), "   ", "")

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)
}

func TestAsk_EmbeddingFailureIsTerminal(t *testing.T) {
	sessions := newFakeSessions()
	e := NewEngine(&fakeEmbedder{err: errors.New("upstream 500")}, &fakeSearcher{}, &fakeGenerator{}, sessions, 3)

	_, err := e.Ask(context.Background(), "what happened today", "s1")

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeEmbeddingFailed, apperrors.AsAppError(err).Code)
	// 终止失败：不检索、不生成、不写会话
	assert.Empty(t, sessions.appended)
}

func TestAsk_EmptyEmbeddingIsTerminal(t *testing.T) {
	e := NewEngine(&fakeEmbedder{vectors: [][]float32{}}, &fakeSearcher{}, &fakeGenerator{}, newFakeSessions(), 3)

	_, err := e.Ask(context.Background(), "question", "s1")

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeEmbeddingFailed, apperrors.AsAppError(err).Code)
}

func TestAsk_StreamsAnswerAndPersistsTurns(t *testing.T) {
	sessions := newFakeSessions()
	gen := &fakeGenerator{stream: &fakeTokenStream{fragments: []string{"The ", "answer", "."}}}
	searcher := &fakeSearcher{chunks: []entity.ScoredChunk{
		{Score: 0.9, URL: "https://news.example.com/a", Text: "context passage"},
	}}
	e := NewEngine(&fakeEmbedder{vectors: defaultVector()}, searcher, gen, sessions, 3)

	stream, err := e.Ask(context.Background(), "question", "s1")
	require.NoError(t, err)

	answer := drain(t, stream)
	require.NoError(t, stream.Err())
	assert.Equal(t, "The answer.", answer)
	assert.True(t, gen.stream.closed)

	// 完整结束后按顺序追加 user、bot 两条记录
	turns := sessions.appended["s1"]
	require.Len(t, turns, 2)
	assert.Equal(t, "question", turns[0].User)
	assert.Empty(t, turns[0].Bot)
	assert.Equal(t, "The answer.", turns[1].Bot)
	assert.Empty(t, turns[1].User)
}

func TestAsk_EmptyRetrievalUsesFallbackContext(t *testing.T) {
	gen := &fakeGenerator{stream: &fakeTokenStream{fragments: []string{"no idea"}}}
	e := NewEngine(&fakeEmbedder{vectors: defaultVector()}, &fakeSearcher{}, gen, newFakeSessions(), 3)

	stream, err := e.Ask(context.Background(), "question", "s1")
	require.NoError(t, err)
	drain(t, stream)

	// 空命中不报错，Prompt 注入兜底上下文继续生成
	assert.Contains(t, gen.prompt, FallbackContext)
}

func TestAsk_SearchFailureIsTerminal(t *testing.T) {
	e := NewEngine(&fakeEmbedder{vectors: defaultVector()}, &fakeSearcher{err: errors.New("milvus down")}, &fakeGenerator{}, newFakeSessions(), 3)

	_, err := e.Ask(context.Background(), "question", "s1")

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeVectorDBError, apperrors.AsAppError(err).Code)
}

func TestAsk_MidStreamFailureSkipsSessionWrite(t *testing.T) {
	sessions := newFakeSessions()
	gen := &fakeGenerator{stream: &fakeTokenStream{
		fragments: []string{"partial "},
		err:       errors.New("connection reset"),
	}}
	e := NewEngine(&fakeEmbedder{vectors: defaultVector()}, &fakeSearcher{}, gen, sessions, 3)

	stream, err := e.Ask(context.Background(), "question", "s1")
	require.NoError(t, err)

	answer := drain(t, stream)
	assert.Equal(t, "partial ", answer)
	require.Error(t, stream.Err())
	assert.Equal(t, apperrors.CodeGenerationFailed, apperrors.AsAppError(stream.Err()).Code)

	// 中途失败：整轮不写会话
	assert.Empty(t, sessions.appended)
}

func TestAsk_MintsSessionIDWhenAbsent(t *testing.T) {
	gen := &fakeGenerator{stream: &fakeTokenStream{fragments: []string{"hi"}}}
	sessions := newFakeSessions()
	e := NewEngine(&fakeEmbedder{vectors: defaultVector()}, &fakeSearcher{}, gen, sessions, 3)

	stream, err := e.Ask(context.Background(), "question", "")
	require.NoError(t, err)

	assert.NotEmpty(t, stream.SessionID)
	drain(t, stream)
	assert.Len(t, sessions.appended[stream.SessionID], 2)
}

func TestAsk_ReusesProvidedSessionID(t *testing.T) {
	gen := &fakeGenerator{stream: &fakeTokenStream{fragments: []string{"hi"}}}
	e := NewEngine(&fakeEmbedder{vectors: defaultVector()}, &fakeSearcher{}, gen, newFakeSessions(), 3)

	stream, err := e.Ask(context.Background(), "question", "existing-session")
	require.NoError(t, err)
	drain(t, stream)

	assert.Equal(t, "existing-session", stream.SessionID)
}

func TestAsk_SessionWriteFailureIsSilent(t *testing.T) {
	sessions := newFakeSessions()
	sessions.appendErr = errors.New("redis down")
	gen := &fakeGenerator{stream: &fakeTokenStream{fragments: []string{"answer"}}}
	e := NewEngine(&fakeEmbedder{vectors: defaultVector()}, &fakeSearcher{}, gen, sessions, 3)

	stream, err := e.Ask(context.Background(), "question", "s1")
	require.NoError(t, err)

	answer := drain(t, stream)
	// 答案已送达客户端，存储失败不影响流的终态
	assert.Equal(t, "answer", answer)
	assert.NoError(t, stream.Err())
}

func TestHistory_RequiresSessionID(t *testing.T) {
	e := NewEngine(&fakeEmbedder{}, &fakeSearcher{}, &fakeGenerator{}, newFakeSessions(), 3)

	_, err := e.History(context.Background(), "  ")

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)
}

func TestClear_RemovesSession(t *testing.T) {
	sessions := newFakeSessions()
	sessions.appended["s1"] = []entity.Turn{entity.UserTurn("q")}
	e := NewEngine(&fakeEmbedder{}, &fakeSearcher{}, &fakeGenerator{}, sessions, 3)

	require.NoError(t, e.Clear(context.Background(), "s1"))

	turns, err := e.History(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestBuildPrompt_NumbersPassages(t *testing.T) {
	chunks := []entity.ScoredChunk{
		{Text: "first passage"},
		{Text: "second\npassage"},
	}

	prompt := BuildPrompt(chunks, "  what happened?  ")

	assert.Contains(t, prompt, "[1] first passage")
	assert.Contains(t, prompt, "[2] second passage")
	assert.Contains(t, prompt, "Question: what happened?")
	assert.True(t, strings.HasSuffix(prompt, "Answer:"))
	assert.NotContains(t, prompt, FallbackContext)
}
