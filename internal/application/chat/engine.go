// Package chat 实现检索增强的问答引擎
package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "news-chat-api/pkg/errors"
	"news-chat-api/pkg/logger"
	"news-chat-api/pkg/metrics"

	"news-chat-api/internal/domain/entity"
)

var tracer = otel.Tracer("chat")

const defaultTopK = 3

// Engine 检索增强问答引擎。
// 引擎本身无状态：每个请求只携带 sessionID，会话内容全部由 SessionStore 持有。
type Engine struct {
	embedder Embedder
	searcher Searcher
	gen      Generator
	sessions SessionStore

	topK int
}

// NewEngine 创建问答引擎，依赖全部显式注入
func NewEngine(embedder Embedder, searcher Searcher, gen Generator, sessions SessionStore, topK int) *Engine {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Engine{
		embedder: embedder,
		searcher: searcher,
		gen:      gen,
		sessions: sessions,
		topK:     topK,
	}
}

// AnswerStream 一次问答的流式结果。
// Fragments 按生成顺序产出文本片段；通道关闭后 Err 报告流是否完整结束。
type AnswerStream struct {
	SessionID string

	fragments chan string

	mu  sync.Mutex
	err error
}

// Fragments 返回片段通道；生产者关闭通道表示流结束
func (s *AnswerStream) Fragments() <-chan string {
	return s.fragments
}

// Err 返回流的终态错误；仅在 Fragments 关闭后有意义
func (s *AnswerStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *AnswerStream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Ask 执行一次完整的问答：校验 -> 向量化 -> 检索 -> 生成 -> 流式返回并持久化。
// 返回错误表示流尚未开始（可安全返回 JSON 错误响应）；流开始后的失败通过
// AnswerStream.Err 暴露，此时已发出的片段无法撤回，且不写会话。
func (e *Engine) Ask(ctx context.Context, query, sessionID string) (*AnswerStream, error) {
	ctx, span := tracer.Start(ctx, "chat.Ask",
		trace.WithAttributes(attribute.Int("top_k", e.topK)))
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "query is required")
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	ctx = logger.WithContext(ctx, logger.SessionIDKey, sessionID)

	// 向量化查询；空结果等同失败，此时不检索、不生成、不写会话
	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeEmbeddingFailed, "failed to embed query")
	}
	if len(vectors) == 0 {
		return nil, apperrors.New(apperrors.CodeEmbeddingFailed, "embedding service returned no vectors")
	}

	// 检索；空命中不是错误，改用兜底上下文继续生成
	chunks, err := e.searcher.Search(ctx, vectors[0], e.topK)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeVectorDBError, "vector search failed")
	}
	if len(chunks) == 0 {
		metrics.RetrievalEmptyTotal.Inc()
		logger.Info(ctx, "retrieval returned no matches, using fallback context")
	}

	prompt := BuildPrompt(chunks, query)

	tokens, err := e.gen.Stream(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeGenerationFailed, "failed to start generation")
	}

	stream := &AnswerStream{
		SessionID: sessionID,
		fragments: make(chan string),
	}

	metrics.ActiveStreams.Inc()
	go e.pump(ctx, stream, tokens, query)

	return stream, nil
}

// pump 消费生成流：逐片段转发给调用方并累积全文；
// 仅在流完整结束后写入两条会话记录（user、bot）。
func (e *Engine) pump(ctx context.Context, stream *AnswerStream, tokens TokenStream, query string) {
	defer metrics.ActiveStreams.Dec()
	defer close(stream.fragments)
	defer tokens.Close()

	var full strings.Builder

	for {
		frag, err := tokens.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// 中途失败：已发出的片段保持原样，整轮不写会话
			logger.Error(ctx, "generation stream failed mid-flight", err)
			stream.setErr(apperrors.Wrap(err, apperrors.CodeGenerationFailed, "generation stream failed"))
			return
		}
		if frag == "" {
			continue
		}

		select {
		case stream.fragments <- frag:
			full.WriteString(frag)
		case <-ctx.Done():
			// 客户端断开：停止转发并放弃上游生成调用
			logger.Info(ctx, "client disconnected, abandoning generation")
			stream.setErr(ctx.Err())
			return
		}
	}

	e.persistTurn(ctx, stream.SessionID, query, full.String())
}

// persistTurn 按顺序追加 user/bot 两条记录；存储失败只记日志，
// 答案此刻已送达客户端，不能再变更响应。
func (e *Engine) persistTurn(ctx context.Context, sessionID, query, answer string) {
	if err := e.sessions.Append(ctx, sessionID, entity.UserTurn(query)); err != nil {
		metrics.SessionWritesTotal.WithLabelValues("error").Inc()
		logger.Error(ctx, "failed to persist user turn", err)
		return
	}
	if err := e.sessions.Append(ctx, sessionID, entity.BotTurn(answer)); err != nil {
		metrics.SessionWritesTotal.WithLabelValues("error").Inc()
		logger.Error(ctx, "failed to persist bot turn", err)
		return
	}
	metrics.SessionWritesTotal.WithLabelValues("ok").Inc()
}

// History 读取会话的全部记录，写入顺序即读取顺序
func (e *Engine) History(ctx context.Context, sessionID string) ([]entity.Turn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "sessionId is required")
	}
	turns, err := e.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSessionStoreError, "failed to read session history")
	}
	return turns, nil
}

// Clear 删除会话
func (e *Engine) Clear(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return apperrors.New(apperrors.CodeInvalidParam, "sessionId is required")
	}
	if err := e.sessions.Clear(ctx, sessionID); err != nil {
		return apperrors.Wrap(err, apperrors.CodeSessionStoreError, "failed to clear session")
	}
	return nil
}
