package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eyu/animal-counter/internal/api"
	"github.com/eyu/animal-counter/internal/api/middleware"
	"github.com/eyu/animal-counter/internal/config"
	"github.com/eyu/animal-counter/internal/detect"
	"github.com/eyu/animal-counter/internal/logger"
	"github.com/eyu/animal-counter/internal/pipeline"
	"github.com/eyu/animal-counter/internal/repository"
	"github.com/eyu/animal-counter/internal/storage"
	"github.com/eyu/animal-counter/internal/track"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewDefault()
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	jobRepo := repository.NewJobRepository(db)

	// Artifact archival is optional; jobs keep their local output dir either way.
	var archive storage.ObjectStorage
	if cfg.Storage.Archive {
		archive, err = storage.NewStorage(&cfg.Storage, cfg.Pipeline.ResultsDir)
		if err != nil {
			log.Fatalf("Failed to initialize storage: %v", err)
		}
		if s3, ok := archive.(*storage.S3Storage); ok {
			if err := s3.EnsureBucket(context.Background()); err != nil {
				log.Fatalf("Failed to ensure storage bucket: %v", err)
			}
		}
	}

	scheduler := pipeline.NewScheduler(context.Background(), cfg.Pipeline.Workers)
	controller := pipeline.NewController(jobRepo, scheduler, detect.NewFactory(&cfg.Detector), pipeline.Options{
		ResultsDir:   cfg.Pipeline.ResultsDir,
		FrameTimeout: cfg.Pipeline.FrameTimeoutDuration(),
		Annotate:     cfg.Pipeline.AnnotateOut,
		Tracker: track.Config{
			ConfirmHits:          cfg.Tracker.ConfirmHits,
			MissesToLost:         cfg.Tracker.MissesToLost,
			MissesToTerminate:    cfg.Tracker.MissesToTerminate,
			TentativeMisses:      cfg.Tracker.TentativeMisses,
			MaxCost:              cfg.Tracker.MaxCost,
			ClassMismatchPenalty: cfg.Tracker.ClassMismatchPenalty,
		},
		Archive: archive,
	})

	router := api.SetupRouter(controller, log, api.RouterConfig{
		Mode:       cfg.Server.Mode,
		UploadDir:  cfg.Pipeline.UploadDir,
		ResultsDir: cfg.Pipeline.ResultsDir,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
		DB: db,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Infof("Starting API server on port %d (mode=%s, workers=%d)",
			cfg.Server.Port, cfg.Server.Mode, cfg.Pipeline.Workers)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Let jobs already on a worker reach their terminal state.
	scheduler.Stop()

	log.Info("Server exited")
}
