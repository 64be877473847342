// Package llm 提供流式文本生成客户端
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"news-chat-api/internal/application/chat"
	"news-chat-api/internal/config"
	"news-chat-api/pkg/metrics"
)

var tracer = otel.Tracer("llm")

// Client 基于 Eino OpenAI 适配器的生成客户端，实现 chat.Generator
type Client struct {
	chatModel model.BaseChatModel
	provider  string
	modelName string
}

// NewClient 按默认 Provider 创建生成客户端
func NewClient(ctx context.Context, cfg *config.LLMConfig) (*Client, error) {
	name := cfg.DefaultProvider
	providerCfg, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      providerCfg.APIKey,
		BaseURL:     providerCfg.BaseURL,
		Model:       providerCfg.Model,
		MaxTokens:   &providerCfg.MaxTokens,
		Temperature: ptrFloat32(float32(providerCfg.Temperature)),
		Timeout:     providerCfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}

	return &Client{
		chatModel: chatModel,
		provider:  name,
		modelName: providerCfg.Model,
	}, nil
}

// Stream 发起一次流式生成调用，返回有限、有序的片段流
func (c *Client) Stream(ctx context.Context, prompt string) (chat.TokenStream, error) {
	ctx, span := tracer.Start(ctx, "llm.Stream",
		trace.WithAttributes(
			attribute.String("provider", c.provider),
			attribute.String("model", c.modelName),
		))
	defer span.End()

	start := time.Now()
	reader, err := c.chatModel.Stream(ctx, []*schema.Message{
		schema.UserMessage(prompt),
	})
	if err != nil {
		span.RecordError(err)
		metrics.LLMCallTotal.WithLabelValues(c.provider, c.modelName, "error").Inc()
		return nil, fmt.Errorf("failed to start generation stream: %w", err)
	}

	metrics.LLMCallTotal.WithLabelValues(c.provider, c.modelName, "ok").Inc()
	metrics.LLMCallDuration.WithLabelValues(c.provider, c.modelName).Observe(time.Since(start).Seconds())

	return &tokenStream{reader: reader}, nil
}

// tokenStream 将 Eino StreamReader 适配为 chat.TokenStream。
// 流末尾可能出现 Content 为空、仅携带 Usage 的消息，直接透传空串由上层忽略。
type tokenStream struct {
	reader *schema.StreamReader[*schema.Message]
}

func (s *tokenStream) Recv() (string, error) {
	msg, err := s.reader.Recv()
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (s *tokenStream) Close() {
	s.reader.Close()
}

func ptrFloat32(f float32) *float32 {
	return &f
}
