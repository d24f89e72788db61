package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"copyforge/backend/internal/adapter/gemini"
	"copyforge/backend/internal/app"
	"copyforge/backend/internal/config"
	"copyforge/backend/internal/logger"
)

func main() {
	// Structured logger with correlation-id propagation
	handler := logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()

	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
	if err != nil {
		slog.Error("failed to create gemini embedder", "error", err)
		os.Exit(1)
	}
	defer embedder.Close()

	completer, err := gemini.NewCompleter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		slog.Error("failed to create gemini completer", "error", err)
		os.Exit(1)
	}
	defer completer.Close()

	application, err := app.New(cfg, deps.DB, deps.Index, deps.NSQProducer, embedder, completer)
	if err != nil {
		slog.Error("failed to wire application", "error", err)
		os.Exit(1)
	}

	// Task consumers
	ingestConsumer, err := startConsumer(config.TopicIngestTask, cfg.NSQLookupd, application.IngestConsumer.HandleMessage)
	if err != nil {
		slog.Error("failed to start ingest consumer", "error", err)
		os.Exit(1)
	}
	defer ingestConsumer.Stop()

	generateConsumer, err := startConsumer(config.TopicGenerateTask, cfg.NSQLookupd, application.GenerateConsumer.HandleMessage)
	if err != nil {
		slog.Error("failed to start generate consumer", "error", err)
		os.Exit(1)
	}
	defer generateConsumer.Stop()

	if err := application.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func startConsumer(topic, lookupd string, handle func(*nsq.Message) error) (*nsq.Consumer, error) {
	consumer, err := nsq.NewConsumer(topic, "worker", nsq.NewConfig())
	if err != nil {
		return nil, err
	}
	consumer.AddHandler(nsq.HandlerFunc(handle))
	if err := consumer.ConnectToNSQLookupd(lookupd); err != nil {
		return nil, err
	}
	slog.Info("NSQ consumer connected", "topic", topic)
	return consumer, nil
}
