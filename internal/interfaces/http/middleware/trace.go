// Package middleware 提供 HTTP 中间件
package middleware

import (
	"news-chat-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
)

// Trace OpenTelemetry 追踪中间件
func Trace(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// TraceIDs 把当前 span 的 trace/span ID 注入日志 context，
// 并通过 X-Trace-ID 响应头暴露给调用方。没有有效 span 时什么也不做。
func TraceIDs() gin.HandlerFunc {
	return func(c *gin.Context) {
		sc := trace.SpanFromContext(c.Request.Context()).SpanContext()
		if sc.IsValid() {
			traceID := sc.TraceID().String()

			c.Set("trace_id", traceID)
			c.Header("X-Trace-ID", traceID)

			ctx := logger.WithContext(c.Request.Context(), logger.TraceIDKey, traceID)
			ctx = logger.WithContext(ctx, logger.SpanIDKey, sc.SpanID().String())
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}
}
