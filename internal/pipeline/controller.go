package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eyu/animal-counter/internal/aggregate"
	"github.com/eyu/animal-counter/internal/detect"
	"github.com/eyu/animal-counter/internal/domain"
	"github.com/eyu/animal-counter/internal/logger"
	"github.com/eyu/animal-counter/internal/storage"
	"github.com/eyu/animal-counter/internal/track"
	"github.com/eyu/animal-counter/internal/video"
)

// Artifact filenames written into each job's output directory.
const (
	summaryTextFile  = "count_summary.txt"
	summaryJSONFile  = "count_summary.json"
	annotatedOutFile = "annotated.mp4"
)

// JobStore is the persistence surface the controller needs. It is satisfied
// by repository.JobRepository.
type JobStore interface {
	Insert(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context) ([]domain.Job, error)
	Complete(ctx context.Context, id, outputDir string, result *domain.ResultSummary) error
	Fail(ctx context.Context, id, message string) error
}

// Options configures a Controller. Zero-value fields fall back to the
// defaults noted on each field.
type Options struct {
	// ResultsDir is the root under which each job gets its own output
	// directory.
	ResultsDir string

	// FrameTimeout bounds decode+detect time for a single frame. Zero
	// disables the watchdog.
	FrameTimeout time.Duration

	// Annotate enables writing the processed video with boxes burned in.
	Annotate bool

	// Tracker carries cross-frame identity parameters.
	Tracker track.Config

	// Archive, when non-nil, receives completed-job artifacts.
	Archive storage.ObjectStorage

	// OpenSource opens the video for a job. Defaults to video.OpenFile.
	OpenSource func(path string) (video.Source, error)

	// NewAnnotator builds the output writer for a job. Defaults to
	// video.NewAnnotatedWriter.
	NewAnnotator func(path string, meta video.Meta) (video.Annotator, error)
}

// Controller owns the full job lifecycle: it creates the record, queues the
// work, runs the frame loop, and performs the single terminal status write.
// No other component writes job state.
type Controller struct {
	store       JobStore
	sched       *Scheduler
	newDetector detect.Factory
	opts        Options
	done        chan string
}

// NewController wires a controller to its store, scheduler, and detector
// factory.
func NewController(store JobStore, sched *Scheduler, newDetector detect.Factory, opts Options) *Controller {
	if opts.OpenSource == nil {
		opts.OpenSource = video.OpenFile
	}
	if opts.NewAnnotator == nil {
		opts.NewAnnotator = video.NewAnnotatedWriter
	}
	return &Controller{
		store:       store,
		sched:       sched,
		newDetector: newDetector,
		opts:        opts,
		done:        make(chan string, 64),
	}
}

// Submit validates the request, creates the job record in the processing
// state, and queues it. It returns the job ID immediately; processing
// happens on a worker.
// Parameters:
//   - ctx: context for the submission itself, not the processing.
//   - videoPath: path of the uploaded video file.
//   - detectionType: raw detector variant name, "birds" or "livestock".
// Returns:
//   - string: job ID usable for status polling.
//   - error: domain.ErrUnknownDetectionType for bad variants,
//     ErrSchedulerStopped during shutdown, or a store error.
func (c *Controller) Submit(ctx context.Context, videoPath, detectionType string) (string, error) {
	dt, err := domain.ParseDetectionType(detectionType)
	if err != nil {
		return "", err
	}

	job := &domain.Job{
		ID:            uuid.New().String(),
		DetectionType: dt,
		Status:        domain.JobStatusProcessing,
		VideoSource:   videoPath,
		CreatedAt:     time.Now(),
	}
	if err := c.store.Insert(ctx, job); err != nil {
		return "", fmt.Errorf("failed to create job record: %w", err)
	}

	err = c.sched.Enqueue(func(workerCtx context.Context) {
		c.run(workerCtx, job.ID, videoPath, dt)
	})
	if err != nil {
		if failErr := c.store.Fail(ctx, job.ID, "service is shutting down"); failErr != nil {
			logger.CtxError(ctx, "failed to mark unqueued job %s as failed: %v", job.ID, failErr)
		}
		return "", fmt.Errorf("failed to queue job: %w", err)
	}

	logger.CtxInfo(logger.SetJobID(ctx, job.ID), "queued %s counting job for %s", dt, filepath.Base(videoPath))
	return job.ID, nil
}

// Get returns the wire view of one job.
func (c *Controller) Get(ctx context.Context, id string) (*domain.JobView, error) {
	job, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := job.View()
	return &view, nil
}

// List returns the wire views of all jobs, newest first.
func (c *Controller) List(ctx context.Context) ([]domain.JobView, error) {
	jobs, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]domain.JobView, len(jobs))
	for i := range jobs {
		views[i] = jobs[i].View()
	}
	return views, nil
}

// Done exposes job completion notifications. Every job ID is sent exactly
// once after its terminal write, best effort if the buffer is full.
func (c *Controller) Done() <-chan string {
	return c.done
}

// run processes one job to its terminal state. It is the only writer of
// terminal status, so the completed/failed record and its artifacts always
// agree.
func (c *Controller) run(ctx context.Context, id, videoPath string, dt domain.DetectionType) {
	ctx = logger.SetJobID(ctx, id)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			c.fail(ctx, id, domain.InternalError(fmt.Errorf("panic: %v", r)))
		}
	}()

	summary, outDir, err := c.process(ctx, id, videoPath, dt)
	if err != nil {
		c.fail(ctx, id, err)
		return
	}

	if err := c.store.Complete(ctx, id, outDir, summary); err != nil {
		logger.CtxError(ctx, "failed to record completion: %v", err)
		c.notify(id)
		return
	}

	logger.With(logger.Fields{
		logger.FieldDetectionType: dt,
		"unique_entities":         summary.UniqueEntities,
		"total_detections":        summary.TotalDetections,
	}).WithDuration(time.Since(started).Milliseconds()).Info(ctx, "job completed")
	c.notify(id)
}

// process runs the frame loop and writes the output artifacts. On any error
// the partially written output directory is removed so failed jobs leave no
// artifacts behind.
func (c *Controller) process(ctx context.Context, id, videoPath string, dt domain.DetectionType) (*domain.ResultSummary, string, error) {
	detector, err := c.newDetector(dt)
	if err != nil {
		return nil, "", err
	}

	source, err := c.opts.OpenSource(videoPath)
	if err != nil {
		if closer, ok := detector.(io.Closer); ok {
			closer.Close()
		}
		return nil, "", err
	}

	stages := newFrameStages(source, detector, c.opts.FrameTimeout)
	defer stages.Close()

	outDir := filepath.Join(c.opts.ResultsDir, id)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, "", domain.ResourceError(fmt.Errorf("create output directory: %w", err))
	}
	cleanup := func() { os.RemoveAll(outDir) }

	annotator := video.Annotator(video.NopAnnotator{})
	if c.opts.Annotate {
		annotator, err = c.opts.NewAnnotator(filepath.Join(outDir, annotatedOutFile), source.Meta())
		if err != nil {
			cleanup()
			return nil, "", domain.ResourceError(err)
		}
	}

	tracker := track.New(c.opts.Tracker)
	tally := aggregate.NewTally()

	for {
		if err := ctx.Err(); err != nil {
			annotator.Close()
			cleanup()
			return nil, "", domain.ResourceError(fmt.Errorf("job canceled: %w", err))
		}

		frame, detections, err := stages.step()
		if err == io.EOF {
			break
		}
		if err != nil {
			annotator.Close()
			cleanup()
			return nil, "", err
		}

		if err := tracker.Observe(frame.Index, detections); err != nil {
			annotator.Close()
			cleanup()
			return nil, "", err
		}
		tally.Add(detections)

		if err := annotator.Add(frame, detections); err != nil {
			annotator.Close()
			cleanup()
			return nil, "", domain.ResourceError(err)
		}
	}

	if err := annotator.Close(); err != nil {
		cleanup()
		return nil, "", domain.ResourceError(err)
	}

	summary := aggregate.Summarize(tally, tracker.Finish())
	summary.SummaryText = aggregate.RenderText(summary, filepath.Base(videoPath), dt)

	if err := c.writeArtifacts(ctx, id, outDir, summary); err != nil {
		cleanup()
		return nil, "", err
	}

	return summary, outDir, nil
}

// stepResult carries one frame's worth of work out of the watchdog goroutine.
type stepResult struct {
	frame      video.Frame
	detections []domain.Detection
	err        error
}

// frameStages runs the decode and detect steps for one job and owns the
// lifetime of the source and detector. Closing must never overlap with an
// in-flight step: tearing the decoder down underneath a blocked Read is a
// use-after-free in the OpenCV-backed source. When the watchdog abandons a
// step, Close hands ownership to that goroutine and it releases both
// resources once it finally returns.
type frameStages struct {
	source   video.Source
	detector detect.Detector
	timeout  time.Duration

	mu             sync.Mutex
	inFlight       bool
	closeRequested bool
}

func newFrameStages(source video.Source, detector detect.Detector, timeout time.Duration) *frameStages {
	return &frameStages{source: source, detector: detector, timeout: timeout}
}

// step decodes the next frame and runs detection on it, bounded by the
// frame watchdog. A stalled decoder or detector fails the job instead of
// wedging a worker forever; the abandoned goroutine finishes into a
// buffered channel.
func (f *frameStages) step() (video.Frame, []domain.Detection, error) {
	f.mu.Lock()
	f.inFlight = true
	f.mu.Unlock()

	results := make(chan stepResult, 1)
	go func() {
		res := f.advance()
		f.finish()
		results <- res
	}()

	if f.timeout <= 0 {
		res := <-results
		return res.frame, res.detections, res.err
	}

	timer := time.NewTimer(f.timeout)
	defer timer.Stop()
	select {
	case res := <-results:
		return res.frame, res.detections, res.err
	case <-timer.C:
		return video.Frame{}, nil, domain.ResourceError(fmt.Errorf("pipeline stalled: no frame progress within %s", f.timeout))
	}
}

func (f *frameStages) advance() stepResult {
	frame, err := f.source.Next()
	if err != nil {
		return stepResult{err: err}
	}
	detections, err := f.detector.Detect(frame)
	if err != nil {
		return stepResult{err: err}
	}
	return stepResult{frame: frame, detections: detections}
}

// finish marks the step goroutine done and performs any close the watchdog
// handed off while it was still running.
func (f *frameStages) finish() {
	f.mu.Lock()
	f.inFlight = false
	handedOff := f.closeRequested
	f.mu.Unlock()
	if handedOff {
		f.release()
	}
}

// Close releases the source and detector, or defers the release to the
// abandoned step goroutine when one is still in flight.
func (f *frameStages) Close() error {
	f.mu.Lock()
	if f.closeRequested {
		f.mu.Unlock()
		return nil
	}
	f.closeRequested = true
	if f.inFlight {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()
	return f.release()
}

func (f *frameStages) release() error {
	err := f.source.Close()
	if closer, ok := f.detector.(io.Closer); ok {
		closer.Close()
	}
	return err
}

// writeArtifacts persists the summary files next to the annotated video and
// optionally archives the directory to object storage.
func (c *Controller) writeArtifacts(ctx context.Context, id, outDir string, summary *domain.ResultSummary) error {
	text := summary.SummaryText
	if err := os.WriteFile(filepath.Join(outDir, summaryTextFile), []byte(text), 0644); err != nil {
		return domain.ResourceError(fmt.Errorf("write summary text: %w", err))
	}

	raw, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return domain.InternalError(fmt.Errorf("encode summary: %w", err))
	}
	if err := os.WriteFile(filepath.Join(outDir, summaryJSONFile), raw, 0644); err != nil {
		return domain.ResourceError(fmt.Errorf("write summary json: %w", err))
	}

	if c.opts.Archive != nil {
		for _, name := range []string{summaryTextFile, summaryJSONFile} {
			key := fmt.Sprintf("jobs/%s/%s", id, name)
			data, err := os.ReadFile(filepath.Join(outDir, name))
			if err != nil {
				return domain.ResourceError(err)
			}
			contentType := "text/plain"
			if strings.HasSuffix(name, ".json") {
				contentType = "application/json"
			}
			if err := c.opts.Archive.Upload(ctx, key, strings.NewReader(string(data)), int64(len(data)), contentType); err != nil {
				// Archival is best effort; the local artifacts are canonical.
				logger.CtxWarn(ctx, "failed to archive %s: %v", key, err)
			}
		}
	}

	return nil
}

// fail records the terminal failure and removes nothing further; process
// already cleaned up partial artifacts.
func (c *Controller) fail(ctx context.Context, id string, err error) {
	logger.With(logger.Fields{"kind": domain.KindOf(err)}).Error(ctx, "job failed: %v", err)
	if storeErr := c.store.Fail(ctx, id, err.Error()); storeErr != nil {
		logger.CtxError(ctx, "failed to record failure: %v", storeErr)
	}
	c.notify(id)
}

func (c *Controller) notify(id string) {
	select {
	case c.done <- id:
	default:
	}
}
