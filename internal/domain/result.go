package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// IntSlice is a custom type for storing int slices as JSON in the database.
type IntSlice []int

// Value implements the driver.Valuer interface for database serialization.
func (s IntSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (s *IntSlice) Scan(value interface{}) error {
	if value == nil {
		*s = IntSlice{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan IntSlice")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, s)
}

// CountMap is a custom type for storing class→count tallies as JSON in the database.
type CountMap map[string]int

// Value implements the driver.Valuer interface for database serialization.
func (m CountMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (m *CountMap) Scan(value interface{}) error {
	if value == nil {
		*m = CountMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan CountMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// ResultSummary holds the aggregate counts computed for one completed job.
// It is produced once at end of stream and never mutated afterwards.
type ResultSummary struct {
	UniqueEntities               int      `json:"unique_entities"`
	TotalDetections              int      `json:"total_detections"`
	DetectionsByClass            CountMap `gorm:"type:text" json:"detections_by_class"`
	UniqueEntitiesByPrimaryClass CountMap `gorm:"type:text" json:"unique_entities_by_primary_class"`
	TrackIDs                     IntSlice `gorm:"type:text" json:"track_ids"`
	SummaryText                  string   `json:"summary_text,omitempty"`
}
