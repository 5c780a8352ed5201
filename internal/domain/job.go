package domain

import "time"

// DetectionType selects which detector variant processes a job.
type DetectionType string

const (
	DetectionTypeBirds     DetectionType = "birds"
	DetectionTypeLivestock DetectionType = "livestock"
)

// ParseDetectionType validates a raw detection type string.
// Parameters:
//   - raw: value received from the API or CLI.
// Returns:
//   - DetectionType: parsed type on success.
//   - error: ErrUnknownDetectionType if the value is not a known variant.
func ParseDetectionType(raw string) (DetectionType, error) {
	switch DetectionType(raw) {
	case DetectionTypeBirds:
		return DetectionTypeBirds, nil
	case DetectionTypeLivestock:
		return DetectionTypeLivestock, nil
	default:
		return "", ErrUnknownDetectionType
	}
}

// JobStatus represents the lifecycle state of a counting job.
// Values include JobStatusProcessing, JobStatusCompleted, and JobStatusFailed.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// CanTransition reports whether moving from s to next is a legal state change.
// The machine is one-way: processing is the only non-terminal state.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job represents one asynchronous video-counting job and its outcome.
// A Job is created once with status processing and receives exactly one
// terminal write from its pipeline owner.
type Job struct {
	ID            string        `gorm:"type:text;primaryKey" json:"result_id"`
	DetectionType DetectionType `gorm:"type:text;not null" json:"detection_type"`
	Status        JobStatus     `gorm:"type:text;index:idx_jobs_status;default:processing" json:"status"`
	VideoSource   string        `gorm:"type:text;not null" json:"video_source"`
	OutputDir     string        `gorm:"type:text" json:"output_dir,omitempty"`
	Error         string        `json:"error,omitempty"`
	Result        ResultSummary `gorm:"embedded;embeddedPrefix:result_" json:"-"`
	CreatedAt     time.Time     `gorm:"index:idx_jobs_created_at" json:"created_at"`
	UpdatedAt     time.Time     `json:"-"`
}

// TableName returns the database table name for Job.
func (Job) TableName() string {
	return "jobs"
}

// View flattens a Job into the stable wire shape exposed by the status API.
func (j *Job) View() JobView {
	v := JobView{
		ResultID:      j.ID,
		Status:        j.Status,
		DetectionType: j.DetectionType,
		VideoSource:   j.VideoSource,
		OutputDir:     j.OutputDir,
		CreatedAt:     j.CreatedAt,
		Error:         j.Error,
	}
	if j.Status == JobStatusCompleted {
		v.UniqueEntities = j.Result.UniqueEntities
		v.TotalDetections = j.Result.TotalDetections
		v.DetectionsByClass = j.Result.DetectionsByClass
		v.UniqueEntitiesByPrimaryClass = j.Result.UniqueEntitiesByPrimaryClass
		v.TrackIDs = j.Result.TrackIDs
		v.SummaryText = j.Result.SummaryText
	}
	return v
}

// JobView is the serializable job representation with stable field names.
type JobView struct {
	ResultID                     string        `json:"result_id"`
	Status                       JobStatus     `json:"status"`
	DetectionType                DetectionType `json:"detection_type"`
	UniqueEntities               int           `json:"unique_entities"`
	TotalDetections              int           `json:"total_detections"`
	DetectionsByClass            CountMap      `json:"detections_by_class,omitempty"`
	UniqueEntitiesByPrimaryClass CountMap      `json:"unique_entities_by_primary_class,omitempty"`
	TrackIDs                     IntSlice      `json:"track_ids,omitempty"`
	SummaryText                  string        `json:"summary_text,omitempty"`
	VideoSource                  string        `json:"video_source"`
	OutputDir                    string        `json:"output_dir,omitempty"`
	CreatedAt                    time.Time     `json:"created_at"`
	Error                        string        `json:"error,omitempty"`
}
