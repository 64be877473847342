// Package main 新闻注入任务入口。
// 一次性任务：重建向量集合，抓取并写入全部文章后退出。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"news-chat-api/internal/application/ingest"
	"news-chat-api/internal/config"
	"news-chat-api/internal/infrastructure/embedding"
	"news-chat-api/internal/infrastructure/persistence/milvus"
	"news-chat-api/internal/infrastructure/sources"
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

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}
	if len(cfg.Ingest.Feeds) == 0 {
		fmt.Println("Invalid config: ingest.feeds is empty")
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	// 支持 Ctrl-C 中断长时间的抓取
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.FromContext(ctx)
	log.Info("starting ingest",
		"version", Version,
		"build_time", BuildTime,
		"feeds", len(cfg.Ingest.Feeds),
		"max_articles", cfg.Ingest.MaxArticles,
	)

	shutdownTracer, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name + "-ingest",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Fatal(ctx, "failed to connect milvus", err)
	}
	defer milvusClient.Close()

	store := milvus.NewStore(milvusClient, cfg.Vector.Milvus.Collection, cfg.Embedding.Dimension)
	embedClient := embedding.NewClient(&cfg.Embedding)
	feedClient := sources.NewFeedClient(cfg.Ingest.FetchTimeout)
	articleClient := sources.NewArticleClient(cfg.Ingest.FetchTimeout)

	orchestrator := ingest.NewOrchestrator(embedClient, store, feedClient, articleClient, ingest.Options{
		Feeds:           cfg.Ingest.Feeds,
		ArticlePrefix:   cfg.Ingest.ArticlePrefix,
		MaxArticles:     cfg.Ingest.MaxArticles,
		MaxChunkChars:   cfg.Ingest.MaxChunkChars,
		MinArticleChars: cfg.Ingest.MinArticleChars,
		FetchTimeout:    cfg.Ingest.FetchTimeout,
	})

	processed, err := orchestrator.Run(ctx)
	if err != nil {
		logger.Fatal(ctx, "ingest failed", err)
	}

	log.Info("ingest finished", "articles_processed", processed)
}
