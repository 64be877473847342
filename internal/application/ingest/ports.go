package ingest

import (
	"context"

	"news-chat-api/internal/domain/entity"
)

// Embedder 定义注入流水线对文本向量化服务的最小依赖（port）。
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorWriter 定义注入流水线对向量集合写路径的最小依赖（port）。
// Reset 在一次注入运行开始时整体重建集合；Upsert 按 id 写入或覆盖。
type VectorWriter interface {
	Reset(ctx context.Context) error
	Upsert(ctx context.Context, points []entity.ChunkPoint) error
}

// SourceLister 从一个外部 feed 列表获取文档定位符序列。
type SourceLister interface {
	ListURLs(ctx context.Context, feedURL string) ([]string, error)
}

// ArticleFetcher 抓取单篇文档并返回其纯文本正文。
type ArticleFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}
