// Package router 提供 HTTP 路由配置
package router

import (
	"news-chat-api/internal/config"
	"news-chat-api/internal/interfaces/http/handler"
	"news-chat-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers 路由所需的处理器集合
type Handlers struct {
	Root   *handler.RootHandler
	Chat   *handler.ChatHandler
	Health *handler.HealthHandler
}

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	cfg    *config.Config
}

// New 创建新的路由器
func New(cfg *config.Config, h Handlers) *Router {
	// 设置 Gin 模式
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine: engine,
		cfg:    cfg,
	}

	r.setupMiddleware()
	r.setupRoutes(h)

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	// 基础中间件
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	// CORS 中间件
	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	// 追踪中间件
	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceIDs())
	}

	// 指标中间件
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes(h Handlers) {
	// 系统端点
	r.engine.GET("/", h.Root.Root)
	r.engine.GET("/health", h.Health.Health)
	r.engine.GET("/ready", h.Health.Ready)
	r.engine.GET("/live", h.Health.Live)

	// 问答端点
	chat := r.engine.Group("/chat")
	{
		chat.POST("", h.Chat.Chat)
		chat.GET("/history", h.Chat.History)
		chat.POST("/clear", h.Chat.Clear)
	}
}
