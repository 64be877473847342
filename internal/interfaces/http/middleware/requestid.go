// Package middleware 提供 HTTP 中间件
package middleware

import (
	"news-chat-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// RequestID 为每个请求注入唯一 ID：优先沿用调用方传入的值，缺失时生成，
// 并同时写入响应头与日志 context
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(
			logger.WithContext(c.Request.Context(), logger.RequestIDKey, id))

		c.Next()
	}
}
