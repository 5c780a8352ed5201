// Command count processes a single video from the command line and prints
// the count summary, using the same pipeline as the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/eyu/animal-counter/internal/config"
	"github.com/eyu/animal-counter/internal/detect"
	"github.com/eyu/animal-counter/internal/domain"
	"github.com/eyu/animal-counter/internal/logger"
	"github.com/eyu/animal-counter/internal/pipeline"
	"github.com/eyu/animal-counter/internal/repository"
	"github.com/eyu/animal-counter/internal/track"
)

func main() {
	var (
		videoPath     = flag.String("video", "", "path to the input video")
		detectionType = flag.String("type", "birds", "detection type: birds or livestock")
		configPath    = flag.String("config", "", "path to the config file")
	)
	flag.Parse()

	if *videoPath == "" {
		fmt.Fprintln(os.Stderr, "usage: count -video <path> [-type birds|livestock] [-config <path>]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
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

	scheduler := pipeline.NewScheduler(context.Background(), 1)
	defer scheduler.Stop()

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
	})

	ctx := context.Background()
	id, err := controller.Submit(ctx, *videoPath, *detectionType)
	if err != nil {
		log.Fatalf("Failed to submit job: %v", err)
	}

	// Single worker, single job: the next completion is ours.
	for done := range controller.Done() {
		if done == id {
			break
		}
	}

	view, err := controller.Get(ctx, id)
	if err != nil {
		log.Fatalf("Failed to load job result: %v", err)
	}

	if view.Status == domain.JobStatusFailed {
		fmt.Fprintf(os.Stderr, "Processing failed: %s\n", view.Error)
		os.Exit(1)
	}

	fmt.Print(view.SummaryText)
	fmt.Printf("\nOutput directory: %s\n", view.OutputDir)
}
