// Package main 问答服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"news-chat-api/internal/application/chat"
	"news-chat-api/internal/config"
	"news-chat-api/internal/infrastructure/embedding"
	"news-chat-api/internal/infrastructure/llm"
	"news-chat-api/internal/infrastructure/persistence/milvus"
	"news-chat-api/internal/infrastructure/persistence/redis"
	"news-chat-api/internal/interfaces/http/handler"
	"news-chat-api/internal/interfaces/http/router"
	"news-chat-api/pkg/logger"
	"news-chat-api/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	// 加载配置，校验失败直接退出
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting server",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	// 初始化追踪
	shutdownTracer, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 基础设施客户端
	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to connect redis", err)
	}
	defer redisClient.Close()

	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Fatal(ctx, "failed to connect milvus", err)
	}
	defer milvusClient.Close()

	embedClient := embedding.NewClient(&cfg.Embedding)

	llmClient, err := llm.NewClient(ctx, &cfg.LLM)
	if err != nil {
		logger.Fatal(ctx, "failed to create llm client", err)
	}

	// 组装问答引擎
	store := milvus.NewStore(milvusClient, cfg.Vector.Milvus.Collection, cfg.Embedding.Dimension)
	sessions := redis.NewSessionStore(redisClient, cfg.Session.TTL)
	engine := chat.NewEngine(embedClient, store, llmClient, sessions, cfg.Retrieval.TopK)

	// 路由
	r := router.New(cfg, router.Handlers{
		Root:   handler.NewRootHandler(cfg.App.Name, Version),
		Chat:   handler.NewChatHandler(engine),
		Health: handler.NewHealthHandler(redisClient, milvusClient),
	})

	// API 服务器。WriteTimeout 需覆盖最长的流式响应，配置默认已放宽
	apiAddr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	apiSrv := &http.Server{
		Addr:         apiAddr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	// 指标服务器走独立端口，不吃业务流量
	var metricsSrv *http.Server
	if cfg.Observability.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Observability.Metrics.Path, promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Observability.Metrics.Port),
			Handler: mux,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server starting", "addr", apiAddr)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if metricsSrv != nil {
		g.Go(func() error {
			log.Info("metrics server starting", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	// 等待中断信号或任一服务器出错
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down server...")
	case <-gctx.Done():
		log.Error("server group failed", "error", gctx.Err())
	}

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics server forced to shutdown", "error", err)
		}
	}

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
	}

	log.Info("server exited")
}
