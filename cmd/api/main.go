package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/attend/internal/api"
	"github.com/your-org/attend/internal/api/ws"
	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/gallery"
	"github.com/your-org/attend/internal/liveness"
	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/observability"
	"github.com/your-org/attend/internal/queue"
	"github.com/your-org/attend/internal/storage"
	"github.com/your-org/attend/internal/verify"
	"github.com/your-org/attend/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting attendance API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	notifier, err := queue.NewNotifier(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer notifier.Close()

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Relay validation events to connected WebSocket clients. Other service
	// instances publish on the same subject, so every instance's clients see
	// every change.
	listener, err := queue.NewListener(cfg.NATS.URL)
	if err != nil {
		slog.Error("create validation listener", "error", err)
		os.Exit(1)
	}
	defer listener.Close()

	err = listener.Listen(func(data []byte) {
		var event models.ValidationEvent
		if err := json.Unmarshal(data, &event); err != nil {
			slog.Warn("decode validation event", "error", err)
			return
		}
		hub.BroadcastValidationUpdate(event.Message)
	})
	if err != nil {
		slog.Warn("start validation listener", "error", err)
	}

	// Initialize ONNX Runtime. Verification is the whole point of the
	// service, so a broken model setup is fatal.
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("onnx runtime init", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	analyzer, err := vision.NewAnalyzer(cfg.Vision)
	if err != nil {
		slog.Error("load vision models", "error", err)
		os.Exit(1)
	}
	defer analyzer.Close()

	// Build the identity gallery
	entries, err := loadGallery(context.Background(), cfg, db, analyzer)
	if err != nil {
		slog.Error("load gallery", "error", err)
		os.Exit(1)
	}
	gal, err := gallery.New(entries, gallery.Options{
		Threshold: cfg.Vision.MatchThreshold,
		Index:     cfg.Gallery.Index,
	})
	if err != nil {
		slog.Error("build gallery", "error", err)
		os.Exit(1)
	}
	observability.GallerySize.Set(float64(gal.Size()))
	slog.Info("gallery ready", "identities", gal.Size(), "index", cfg.Gallery.Index)

	pipeline := verify.NewPipeline(analyzer, gal, liveness.NewEvaluator(cfg.Vision.EARThreshold))

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		DB:       db,
		MinIO:    minioStore,
		Notifier: notifier,
		Hub:      hub,
		Verifier: pipeline,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

// loadGallery builds the identity gallery either by embedding a reference
// dataset on disk or by loading embeddings previously enrolled into Postgres.
func loadGallery(ctx context.Context, cfg *config.Config, db *storage.PostgresStore, analyzer *vision.Analyzer) ([]gallery.Entry, error) {
	if cfg.Gallery.DatasetDir != "" {
		slog.Info("building gallery from dataset", "dir", cfg.Gallery.DatasetDir)
		return gallery.BuildFromDataset(cfg.Gallery.DatasetDir, analyzer.Embed)
	}
	slog.Info("loading gallery from database")
	return db.LoadGalleryEntries(ctx)
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
