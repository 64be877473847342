package chat

import (
	"context"

	"news-chat-api/internal/domain/entity"
)

// Embedder 定义应用层对文本向量化服务的最小依赖（port）。
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher 定义应用层对向量检索的最小依赖（port）。
// 集合无命中时返回空切片而非错误。
type Searcher interface {
	Search(ctx context.Context, vector []float32, topK int) ([]entity.ScoredChunk, error)
}

// TokenStream 一次生成调用产出的有限、有序、不可重放的文本片段流。
// Recv 在流结束时返回 io.EOF；调用方负责 Close。
type TokenStream interface {
	Recv() (string, error)
	Close()
}

// Generator 定义应用层对流式文本生成服务的最小依赖（port）。
type Generator interface {
	Stream(ctx context.Context, prompt string) (TokenStream, error)
}

// SessionStore 定义应用层对会话日志存储的最小依赖（port）。
// Append 保证列表推入顺序且每次写入后刷新 TTL；History 对不存在的
// 会话返回空切片。
type SessionStore interface {
	Append(ctx context.Context, sessionID string, turn entity.Turn) error
	History(ctx context.Context, sessionID string) ([]entity.Turn, error)
	Clear(ctx context.Context, sessionID string) error
}
