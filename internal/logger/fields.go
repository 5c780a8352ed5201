package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields propagated through the call chain.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the counting job ID
	FieldJobID = "job_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldDetectionType is the detector variant for a job
	FieldDetectionType = "detection_type"

	// FieldWorkerID is the scheduler worker slot index
	FieldWorkerID = "worker_id"
)

// Standard metric fields used for aggregation and alerting.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldFrame is a frame index
	FieldFrame = "frame"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldSize is a payload size in bytes
	FieldSize = "size"
)
