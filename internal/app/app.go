// Package app wires the feature slices, workers, and routes into one
// runnable application.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"copyforge/backend/features/asset"
	"copyforge/backend/features/assistant"
	"copyforge/backend/features/generation"
	"copyforge/backend/internal/config"
	"copyforge/backend/internal/llm"
	"copyforge/backend/internal/middleware"
	"copyforge/backend/internal/retrieval"
	"copyforge/backend/internal/storage"
	"copyforge/backend/internal/vector"
	"copyforge/backend/internal/worker"
)

// TaskPublisher is the producer side of the task queue.
type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler          http.Handler
	AssetService     *asset.Service
	IngestConsumer   *worker.IngestConsumer
	GenerateConsumer *worker.GenerateConsumer

	port int
}

func New(
	cfg *config.Config,
	db *sql.DB,
	index vector.Index,
	taskPub TaskPublisher,
	embedder llm.Embedder,
	completer llm.Completer,
) (*App, error) {
	blobs, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("blob store error: %w", err)
	}

	// Feature: Asset
	assetRepo := asset.NewPostgresRepo(db)
	assetService := asset.NewService(assetRepo, blobs, taskPub, index)
	assetHandler := asset.NewHandler(assetService, cfg.MaxUploadSizeMB*1024*1024)

	// Feature: Generation
	generationRepo := generation.NewPostgresRepo(db)
	generationService := generation.NewService(generationRepo, taskPub)
	generationHandler := generation.NewHandler(generationService)

	// Retrieval
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(embedder, index, queryLogger)

	// Feature: Assistant
	assistantService := assistant.NewService(retrievalService, completer)
	assistantHandler := assistant.NewHandler(assistantService)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PATCH, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /projects/{projectID}/assets", middleware.CorrelationID(enableCORS(assetHandler.Upload)))
	mux.Handle("GET /projects/{projectID}/assets", middleware.CorrelationID(enableCORS(assetHandler.List)))
	mux.Handle("GET /assets/{id}", middleware.CorrelationID(enableCORS(assetHandler.Get)))
	mux.Handle("DELETE /assets/{id}", middleware.CorrelationID(enableCORS(assetHandler.Delete)))
	mux.Handle("POST /assets/{id}/ingest", middleware.CorrelationID(enableCORS(assetHandler.Ingest)))

	mux.Handle("POST /projects/{projectID}/generate", middleware.CorrelationID(enableCORS(generationHandler.Create)))
	mux.Handle("GET /projects/{projectID}/generations", middleware.CorrelationID(enableCORS(generationHandler.List)))
	mux.Handle("GET /generate/{id}", middleware.CorrelationID(enableCORS(generationHandler.Get)))
	mux.Handle("PATCH /generate/{id}", middleware.CorrelationID(enableCORS(generationHandler.Update)))

	mux.Handle("POST /assistant/query", middleware.CorrelationID(enableCORS(assistantHandler.Query)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Workers
	ingestConsumer := worker.NewIngestConsumer(assetRepo, blobs, embedder, index, cfg.ChunkSize, cfg.ChunkOverlap)
	generateConsumer := worker.NewGenerateConsumer(generationRepo, retrievalService, completer)

	return &App{
		Handler:          mux,
		AssetService:     assetService,
		IngestConsumer:   ingestConsumer,
		GenerateConsumer: generateConsumer,
		port:             cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
