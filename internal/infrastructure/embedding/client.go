// Package embedding 提供 Embedding 服务客户端
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"news-chat-api/internal/config"
	"news-chat-api/pkg/metrics"
)

var tracer = otel.Tracer("embedding")

// Client 面向私有 Embedding 服务的 HTTP 客户端。
// 一次调用携带整批文本；返回向量与输入同序同长，维度为固定外部契约。
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
}

type embedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewClient 创建 Embedding 客户端
func NewClient(cfg *config.EmbeddingConfig) *Client {
	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = 768
	}
	return &Client{
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		model:     model,
		dimension: dim,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Dimension 返回集合约定的向量维度
func (c *Client) Dimension() int {
	return c.dimension
}

// Embed 将整批文本向量化；空输入直接返回空结果，不发起网络调用
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	ctx, span := tracer.Start(ctx, "embedding.Embed",
		trace.WithAttributes(attribute.Int("batch_size", len(texts))))
	defer span.End()

	metrics.EmbeddingBatchSize.Observe(float64(len(texts)))

	resp, err := c.doEmbed(ctx, texts)
	if err != nil {
		span.RecordError(err)
		metrics.EmbeddingCallTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	for i, v := range resp.Embeddings {
		if len(v) != c.dimension {
			err := fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), c.dimension)
			span.RecordError(err)
			metrics.EmbeddingCallTotal.WithLabelValues("error").Inc()
			return nil, err
		}
	}

	metrics.EmbeddingCallTotal.WithLabelValues("ok").Inc()
	return resp.Embeddings, nil
}

func (c *Client) doEmbed(ctx context.Context, texts []string) (*embedResponse, error) {
	reqBody, err := json.Marshal(&embedRequest{
		Texts: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	endpoint := strings.TrimRight(c.endpoint, "/")
	if endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid embedding endpoint: %w", err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/embed"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding request failed: status=%d", httpResp.StatusCode)
	}

	var resp embedResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	return &resp, nil
}
