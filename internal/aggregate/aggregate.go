// Package aggregate computes the final counts for a job from the raw
// detection tally and the tracker's finished track set.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eyu/animal-counter/internal/domain"
	"github.com/eyu/animal-counter/internal/track"
)

// Tally accumulates raw per-frame detection counts while the pipeline runs.
// It counts every detection regardless of track outcome.
type Tally struct {
	total   int
	byClass map[string]int
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{byClass: make(map[string]int)}
}

// Add records one frame's detections.
func (t *Tally) Add(detections []domain.Detection) {
	t.total += len(detections)
	for _, det := range detections {
		t.byClass[det.Class]++
	}
}

// Total returns the number of detections recorded so far.
func (t *Tally) Total() int {
	return t.total
}

// Summarize builds the immutable ResultSummary for a finished job.
// Only tracks that were ever Confirmed contribute to the unique counts.
func Summarize(tally *Tally, tracks []*track.Track) *domain.ResultSummary {
	byClass := make(domain.CountMap, len(tally.byClass))
	for class, count := range tally.byClass {
		byClass[class] = count
	}

	uniqueByClass := make(domain.CountMap)
	trackIDs := make(domain.IntSlice, 0)
	for _, tr := range tracks {
		if !tr.EverConfirmed {
			continue
		}
		trackIDs = append(trackIDs, tr.ID)
		uniqueByClass[tr.PrimaryClass()]++
	}
	sort.Ints(trackIDs)

	return &domain.ResultSummary{
		UniqueEntities:               len(trackIDs),
		TotalDetections:              tally.total,
		DetectionsByClass:            byClass,
		UniqueEntitiesByPrimaryClass: uniqueByClass,
		TrackIDs:                     trackIDs,
	}
}

// RenderText produces the plain-text count summary written next to the
// processed video.
func RenderText(summary *domain.ResultSummary, videoSource string, detectionType domain.DetectionType) string {
	var b strings.Builder

	title := "Animal Count Summary"
	switch detectionType {
	case domain.DetectionTypeBirds:
		title = "Bird Count Summary"
	case domain.DetectionTypeLivestock:
		title = "Livestock Count Summary"
	}

	fmt.Fprintf(&b, "%s\n", title)
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", 50))
	fmt.Fprintf(&b, "Video: %s\n", videoSource)
	fmt.Fprintf(&b, "Unique animals detected: %d\n", summary.UniqueEntities)
	fmt.Fprintf(&b, "Total detections across all frames: %d\n", summary.TotalDetections)

	if len(summary.UniqueEntitiesByPrimaryClass) > 0 {
		fmt.Fprintf(&b, "\nUnique animals by class:\n")
		for _, class := range sortedKeys(summary.UniqueEntitiesByPrimaryClass) {
			fmt.Fprintf(&b, "  %s: %d\n", class, summary.UniqueEntitiesByPrimaryClass[class])
		}
	}
	if len(summary.DetectionsByClass) > 0 {
		fmt.Fprintf(&b, "\nDetections by class:\n")
		for _, class := range sortedKeys(summary.DetectionsByClass) {
			fmt.Fprintf(&b, "  %s: %d\n", class, summary.DetectionsByClass[class])
		}
	}

	ids := make([]string, len(summary.TrackIDs))
	for i, id := range summary.TrackIDs {
		ids[i] = fmt.Sprintf("%d", id)
	}
	fmt.Fprintf(&b, "\nTrack IDs: %s\n", strings.Join(ids, ", "))

	return b.String()
}

func sortedKeys(m domain.CountMap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
