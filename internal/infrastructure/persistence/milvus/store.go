// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"news-chat-api/pkg/logger"
	"news-chat-api/pkg/metrics"

	domain "news-chat-api/internal/domain/entity"
)

// Store 新闻片段集合的读写适配器
type Store struct {
	client     *Client
	collection string
	dim        int
}

// NewStore 创建向量集合适配器
func NewStore(client *Client, collection string, dim int) *Store {
	if dim <= 0 {
		dim = DefaultVectorDimension
	}
	return &Store{
		client:     client,
		collection: collection,
		dim:        dim,
	}
}

// Reset 整体重建集合：存在则删除（忽略不存在），随后以固定维度和
// 余弦距离重新创建并建立索引。每次注入运行前恰好调用一次。
func (s *Store) Reset(ctx context.Context) error {
	if s == nil || s.client == nil || s.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.Reset",
		trace.WithAttributes(attribute.String("collection", s.collection)))
	defer span.End()

	exists, err := s.client.milvus.HasCollection(ctx, s.collection)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		if err := s.client.milvus.DropCollection(ctx, s.collection); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to drop collection: %w", err)
		}
	}

	if err := s.client.milvus.CreateCollection(ctx, NewsChunksSchema(s.collection, s.dim), entity.DefaultShardNumber); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		s.client.config.HNSWM,
		s.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to build index definition: %w", err)
	}
	if err := s.client.milvus.CreateIndex(ctx, s.collection, fieldVector, idx, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := s.client.milvus.LoadCollection(ctx, s.collection, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info(ctx, "collection reset", "collection", s.collection, "dim", s.dim)
	return nil
}

// Upsert 按 id 写入或覆盖片段，等待存储确认后返回。
// 空切片是合法的 no-op，仅记日志。
func (s *Store) Upsert(ctx context.Context, points []domain.ChunkPoint) error {
	if s == nil || s.client == nil || s.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.Upsert",
		trace.WithAttributes(
			attribute.String("collection", s.collection),
			attribute.Int("count", len(points)),
		))
	defer span.End()

	if len(points) == 0 {
		logger.Debug(ctx, "upsert called with no points, skipping")
		return nil
	}

	ids := make([]string, len(points))
	vectors := make([][]float32, len(points))
	urls := make([]string, len(points))
	texts := make([]string, len(points))
	for i, p := range points {
		ids[i] = p.ID
		vectors[i] = p.Vector
		urls[i] = p.URL
		texts[i] = p.Text
	}

	idCol := entity.NewColumnVarChar(fieldID, ids)
	vectorCol := entity.NewColumnFloatVector(fieldVector, s.dim, vectors)
	urlCol := entity.NewColumnVarChar(fieldURL, urls)
	textCol := entity.NewColumnVarChar(fieldText, texts)

	if _, err := s.client.milvus.Upsert(ctx, s.collection, "", idCol, vectorCol, urlCol, textCol); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	// 同步一致性：等待写入对后续检索可见
	if err := s.client.milvus.Flush(ctx, s.collection, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to flush collection: %w", err)
	}

	return nil
}

// Search 余弦相似度 TopK 检索，结果按相似度降序。
// 集合不存在或无命中时返回空切片而非错误；空结果由调用方兜底处理。
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]domain.ScoredChunk, error) {
	if s == nil || s.client == nil || s.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.Search",
		trace.WithAttributes(
			attribute.String("collection", s.collection),
			attribute.Int("top_k", topK),
		))
	defer span.End()

	start := time.Now()

	exists, err := s.client.milvus.HasCollection(ctx, s.collection)
	if err != nil {
		span.RecordError(err)
		metrics.VectorSearchTotal.WithLabelValues(s.collection, "error").Inc()
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		metrics.VectorSearchTotal.WithLabelValues(s.collection, "empty").Inc()
		return []domain.ScoredChunk{}, nil
	}

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := s.client.milvus.Search(ctx,
		s.collection,
		nil,
		"",
		[]string{fieldURL, fieldText},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		metrics.VectorSearchTotal.WithLabelValues(s.collection, "error").Inc()
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var chunks []domain.ScoredChunk
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			c := domain.ScoredChunk{
				Score: result.Scores[i],
			}
			if urlCol, ok := result.Fields.GetColumn(fieldURL).(*entity.ColumnVarChar); ok {
				c.URL = urlCol.Data()[i]
			}
			if textCol, ok := result.Fields.GetColumn(fieldText).(*entity.ColumnVarChar); ok {
				c.Text = textCol.Data()[i]
			}
			chunks = append(chunks, c)
		}
	}

	metrics.VectorSearchDuration.WithLabelValues(s.collection).Observe(time.Since(start).Seconds())
	metrics.VectorSearchTotal.WithLabelValues(s.collection, "ok").Inc()
	span.SetAttributes(attribute.Int("result_count", len(chunks)))
	return chunks, nil
}
