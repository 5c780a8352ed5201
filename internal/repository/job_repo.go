package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eyu/animal-counter/internal/domain"
	"gorm.io/gorm"
)

// JobRepository handles job data operations. Terminal status writes are
// guarded so a job can leave the processing state exactly once.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Insert persists a new job record in the processing state.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *JobRepository) Insert(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// Get retrieves a job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.Job: job record if found.
//   - error: domain.ErrNotFound if no such job exists.
func (r *JobRepository) Get(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// List retrieves all jobs, newest first. Ties on creation time break on ID
// so the order is stable.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []domain.Job: all job records.
//   - error: non-nil if the query fails.
func (r *JobRepository) List(ctx context.Context) ([]domain.Job, error) {
	var jobs []domain.Job
	if err := r.db.WithContext(ctx).Order("created_at DESC, id ASC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Complete atomically moves a processing job to completed and stores its
// result summary. The write is a single guarded UPDATE, so a job that has
// already reached a terminal state is never touched.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - outputDir: directory holding the job's output artifacts.
//   - result: final counts for the job.
// Returns:
//   - error: domain.ErrTerminalState if the job already finished,
//     domain.ErrNotFound if it does not exist.
func (r *JobRepository) Complete(ctx context.Context, id, outputDir string, result *domain.ResultSummary) error {
	return r.terminal(ctx, id, map[string]interface{}{
		"status":                                  domain.JobStatusCompleted,
		"output_dir":                              outputDir,
		"error":                                   "",
		"result_unique_entities":                  result.UniqueEntities,
		"result_total_detections":                 result.TotalDetections,
		"result_detections_by_class":              result.DetectionsByClass,
		"result_unique_entities_by_primary_class": result.UniqueEntitiesByPrimaryClass,
		"result_track_ids":                        result.TrackIDs,
		"result_summary_text":                     result.SummaryText,
		"updated_at":                              time.Now(),
	})
}

// Fail atomically moves a processing job to failed with an error message.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - message: human-readable failure reason.
// Returns:
//   - error: domain.ErrTerminalState if the job already finished,
//     domain.ErrNotFound if it does not exist.
func (r *JobRepository) Fail(ctx context.Context, id, message string) error {
	return r.terminal(ctx, id, map[string]interface{}{
		"status":     domain.JobStatusFailed,
		"error":      message,
		"updated_at": time.Now(),
	})
}

// terminal performs the guarded terminal UPDATE. The WHERE clause only
// matches jobs still in processing, which makes the first terminal write
// win and every later one a no-op.
func (r *JobRepository) terminal(ctx context.Context, id string, columns map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ? AND status = ?", id, domain.JobStatusProcessing).
		Updates(columns)
	if res.Error != nil {
		return fmt.Errorf("terminal update for job %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		// Distinguish a missing job from one that already finished.
		var count int64
		if err := r.db.WithContext(ctx).Model(&domain.Job{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrTerminalState
	}
	return nil
}
