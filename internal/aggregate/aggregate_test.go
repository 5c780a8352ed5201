package aggregate

import (
	"strings"
	"testing"

	"github.com/eyu/animal-counter/internal/domain"
	"github.com/eyu/animal-counter/internal/track"
)

func det(class string, x int) domain.Detection {
	return domain.Detection{
		Class:      class,
		Confidence: 0.9,
		Box:        domain.Rect{X: x, Y: 0, Width: 50, Height: 50},
	}
}

func runTracker(t *testing.T, cfg track.Config, frames [][]domain.Detection) []*track.Track {
	t.Helper()
	tracker := track.New(cfg)
	for i, dets := range frames {
		if err := tracker.Observe(i, dets); err != nil {
			t.Fatalf("observe frame %d: %v", i, err)
		}
	}
	return tracker.Finish()
}

func TestSummarizeCountsOnlyConfirmedTracks(t *testing.T) {
	frames := [][]domain.Detection{
		{det("cow", 0), det("cow", 400)},
		{det("cow", 0)},
		{det("cow", 0)},
	}
	tally := NewTally()
	for _, f := range frames {
		tally.Add(f)
	}
	tracks := runTracker(t, track.Config{ConfirmHits: 2, TentativeMisses: 1}, frames)

	summary := Summarize(tally, tracks)

	if summary.UniqueEntities != 1 {
		t.Fatalf("unique entities = %d, want 1", summary.UniqueEntities)
	}
	if summary.TotalDetections != 4 {
		t.Fatalf("total detections = %d, want 4", summary.TotalDetections)
	}
	if summary.DetectionsByClass["cow"] != 4 {
		t.Fatalf("detections by class = %v", summary.DetectionsByClass)
	}
	if summary.UniqueEntitiesByPrimaryClass["cow"] != 1 {
		t.Fatalf("unique by class = %v", summary.UniqueEntitiesByPrimaryClass)
	}
	if len(summary.TrackIDs) != 1 || summary.TrackIDs[0] != 1 {
		t.Fatalf("track ids = %v, want [1]", summary.TrackIDs)
	}
}

func TestSummarizeEmptyVideo(t *testing.T) {
	tally := NewTally()
	summary := Summarize(tally, nil)

	if summary.UniqueEntities != 0 || summary.TotalDetections != 0 {
		t.Fatalf("empty summary = %+v", summary)
	}
	if len(summary.TrackIDs) != 0 {
		t.Fatalf("track ids = %v, want empty", summary.TrackIDs)
	}
}

func TestSummarizeTrackIDsAscending(t *testing.T) {
	frames := [][]domain.Detection{
		{det("sheep", 0), det("sheep", 400), det("sheep", 800)},
		{det("sheep", 0), det("sheep", 400), det("sheep", 800)},
	}
	tally := NewTally()
	for _, f := range frames {
		tally.Add(f)
	}
	tracks := runTracker(t, track.Config{ConfirmHits: 2}, frames)

	summary := Summarize(tally, tracks)
	for i := 1; i < len(summary.TrackIDs); i++ {
		if summary.TrackIDs[i] <= summary.TrackIDs[i-1] {
			t.Fatalf("track ids not ascending: %v", summary.TrackIDs)
		}
	}
	if summary.UniqueEntitiesByPrimaryClass["sheep"] != 3 {
		t.Fatalf("unique by class = %v", summary.UniqueEntitiesByPrimaryClass)
	}
}

func TestRenderText(t *testing.T) {
	summary := &domain.ResultSummary{
		UniqueEntities:               2,
		TotalDetections:              17,
		DetectionsByClass:            domain.CountMap{"bird": 17},
		UniqueEntitiesByPrimaryClass: domain.CountMap{"bird": 2},
		TrackIDs:                     domain.IntSlice{1, 3},
	}

	text := RenderText(summary, "clip.mp4", domain.DetectionTypeBirds)

	for _, want := range []string{
		"Bird Count Summary",
		strings.Repeat("=", 50),
		"Video: clip.mp4",
		"Unique animals detected: 2",
		"Total detections across all frames: 17",
		"Track IDs: 1, 3",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("rendered text missing %q:\n%s", want, text)
		}
	}
}

func TestRenderTextLivestockTitle(t *testing.T) {
	summary := &domain.ResultSummary{TrackIDs: domain.IntSlice{}}
	text := RenderText(summary, "herd.mp4", domain.DetectionTypeLivestock)
	if !strings.Contains(text, "Livestock Count Summary") {
		t.Fatalf("wrong title:\n%s", text)
	}
}
