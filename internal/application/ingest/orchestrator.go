package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"news-chat-api/pkg/logger"
	"news-chat-api/pkg/metrics"

	"news-chat-api/internal/domain/entity"
)

var tracer = otel.Tracer("ingest")

// Options 注入流水线参数
type Options struct {
	// Feeds 外部 feed 列表地址（sitemap 等）
	Feeds []string
	// ArticlePrefix 文章 URL 必须携带的前缀，用于剔除站外链接
	ArticlePrefix string
	// MaxArticles 跨所有 feed 的全局处理上限
	MaxArticles int
	// MaxChunkChars 单个片段的软长度上限
	MaxChunkChars int
	// MinArticleChars 低于该长度的正文视为无效文章，跳过且不计数
	MinArticleChars int
	// FetchTimeout 单篇文章抓取的超时时间
	FetchTimeout time.Duration
}

// Orchestrator 驱动 文档 -> 切分 -> 向量化 -> 写入 的注入流水线。
// 一次调用对应一次完整运行：先整体重建集合，再顺序处理文档直至达到上限。
type Orchestrator struct {
	embedder Embedder
	store    VectorWriter
	lister   SourceLister
	fetcher  ArticleFetcher
	opts     Options
}

// NewOrchestrator 创建注入编排器，依赖全部显式注入
func NewOrchestrator(embedder Embedder, store VectorWriter, lister SourceLister, fetcher ArticleFetcher, opts Options) *Orchestrator {
	if opts.MaxArticles <= 0 {
		opts.MaxArticles = 30
	}
	if opts.MaxChunkChars <= 0 {
		opts.MaxChunkChars = 500
	}
	if opts.MinArticleChars <= 0 {
		opts.MinArticleChars = 200
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 60 * time.Second
	}
	return &Orchestrator{
		embedder: embedder,
		store:    store,
		lister:   lister,
		fetcher:  fetcher,
		opts:     opts,
	}
}

// Run 执行一次注入运行，返回成功处理的文档数。
// 集合重建失败是致命错误；单篇文档的任何失败只跳过该篇，不中止运行。
func (o *Orchestrator) Run(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "ingest.Run",
		trace.WithAttributes(attribute.Int("max_articles", o.opts.MaxArticles)))
	defer span.End()

	if err := o.store.Reset(ctx); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to reset collection: %w", err)
	}

	processed := 0
	seen := make(map[string]struct{})

	for _, feed := range o.opts.Feeds {
		if processed >= o.opts.MaxArticles {
			break
		}

		urls, err := o.lister.ListURLs(ctx, feed)
		if err != nil {
			logger.Error(ctx, "failed to list feed, skipping", err, "feed", feed)
			continue
		}

		for _, url := range urls {
			if processed >= o.opts.MaxArticles {
				break
			}
			if !o.wantURL(url) {
				continue
			}
			if _, ok := seen[url]; ok {
				continue
			}
			seen[url] = struct{}{}

			if o.processArticle(ctx, url) {
				processed++
			}
		}
	}

	span.SetAttributes(attribute.Int("processed", processed))
	logger.Info(ctx, "ingestion run finished", "processed", processed)
	return processed, nil
}

// wantURL 前缀/后缀过滤：必须指向目标内容域，且排除嵌套的 feed 索引文件
func (o *Orchestrator) wantURL(url string) bool {
	if o.opts.ArticlePrefix != "" && !strings.HasPrefix(url, o.opts.ArticlePrefix) {
		return false
	}
	return !strings.HasSuffix(url, ".xml")
}

// processArticle 处理单篇文章；返回是否计入处理计数
func (o *Orchestrator) processArticle(ctx context.Context, url string) bool {
	ctx = logger.WithContext(ctx, logger.SourceURLKey, url)

	fetchCtx, cancel := context.WithTimeout(ctx, o.opts.FetchTimeout)
	text, err := o.fetcher.Fetch(fetchCtx, url)
	cancel()
	if err != nil {
		metrics.IngestDocumentsSkipped.WithLabelValues("fetch_failed").Inc()
		logger.Warn(ctx, "failed to fetch article, skipping", "error", err.Error())
		return false
	}
	if len([]rune(strings.TrimSpace(text))) < o.opts.MinArticleChars {
		metrics.IngestDocumentsSkipped.WithLabelValues("too_short").Inc()
		logger.Debug(ctx, "article too short, skipping")
		return false
	}

	chunks := Chunk(text, o.opts.MaxChunkChars)
	if len(chunks) == 0 {
		metrics.IngestDocumentsSkipped.WithLabelValues("no_chunks").Inc()
		return false
	}

	vectors, err := o.embedder.Embed(ctx, chunks)
	if err != nil {
		metrics.IngestDocumentsSkipped.WithLabelValues("embed_failed").Inc()
		logger.Warn(ctx, "failed to embed chunks, skipping article", "error", err.Error())
		return false
	}
	// 向量数与片段数不一致时整篇放弃，绝不写入部分片段
	if len(vectors) != len(chunks) {
		metrics.IngestDocumentsSkipped.WithLabelValues("embed_mismatch").Inc()
		logger.Warn(ctx, "embedding count mismatch, skipping article",
			"chunks", len(chunks), "vectors", len(vectors))
		return false
	}

	points := make([]entity.ChunkPoint, len(chunks))
	for i, c := range chunks {
		points[i] = entity.ChunkPoint{
			ID:     chunkID(url, i),
			URL:    url,
			Text:   c,
			Vector: vectors[i],
		}
	}

	if err := o.store.Upsert(ctx, points); err != nil {
		metrics.IngestDocumentsSkipped.WithLabelValues("upsert_failed").Inc()
		logger.Warn(ctx, "failed to upsert chunks, skipping article", "error", err.Error())
		return false
	}

	metrics.IngestDocumentsProcessed.Inc()
	metrics.IngestChunksUpserted.Add(float64(len(points)))
	logger.Info(ctx, "article ingested", "chunks", len(points))
	return true
}

// chunkID 由 (来源 URL, 片段序号) 派生确定性 id，使重复注入为幂等覆盖
func chunkID(url string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", url, index))).String()
}
