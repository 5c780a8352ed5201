package detect

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eyu/animal-counter/internal/config"
	"github.com/eyu/animal-counter/internal/domain"
	"github.com/eyu/animal-counter/internal/video"
)

func TestClassesFor(t *testing.T) {
	birds, err := classesFor(domain.DetectionTypeBirds)
	if err != nil {
		t.Fatalf("birds: %v", err)
	}
	if birds[14] != "bird" {
		t.Errorf("bird class set = %v", birds)
	}

	livestock, err := classesFor(domain.DetectionTypeLivestock)
	if err != nil {
		t.Fatalf("livestock: %v", err)
	}
	for id, want := range map[int]string{17: "horse", 18: "sheep", 19: "cow", 23: "giraffe"} {
		if livestock[id] != want {
			t.Errorf("livestock[%d] = %q, want %q", id, livestock[id], want)
		}
	}

	if _, err := classesFor("fish"); !errors.Is(err, domain.ErrUnknownDetectionType) {
		t.Fatalf("expected ErrUnknownDetectionType, got %v", err)
	}
}

func TestClassSetLabelsOrdered(t *testing.T) {
	got := livestockClasses.labels()
	want := []string{"horse", "sheep", "cow", "giraffe"}
	if len(got) != len(want) {
		t.Fatalf("labels = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("labels = %v, want %v", got, want)
		}
	}
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	factory := NewFactory(&config.DetectorConfig{Provider: "remote"})
	if _, err := factory("rodents"); !errors.Is(err, domain.ErrUnknownDetectionType) {
		t.Fatalf("expected ErrUnknownDetectionType, got %v", err)
	}
}

func TestRemoteDetector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			http.NotFound(w, r)
			return
		}
		resp := remoteResponse{Detections: []remoteDetection{
			{ClassName: "sheep", Confidence: 0.9, BBox: remoteBox{X: 10, Y: 20, W: 30, H: 40}},
			{ClassName: "sheep", Confidence: 0.2, BBox: remoteBox{X: 1, Y: 1, W: 5, H: 5}},  // below threshold
			{ClassName: "person", Confidence: 0.95, BBox: remoteBox{X: 0, Y: 0, W: 9, H: 9}}, // not livestock
		}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	det := newRemoteDetector(&config.DetectorConfig{
		BaseURL:    server.URL,
		Confidence: 0.5,
	}, livestockClasses)

	results, err := det.Detect(video.Frame{Index: 7, Data: []byte("jpeg")})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d detections, want 1: %+v", len(results), results)
	}
	got := results[0]
	if got.Class != "sheep" || got.FrameIndex != 7 {
		t.Errorf("detection = %+v", got)
	}
	if got.Box != (domain.Rect{X: 10, Y: 20, Width: 30, Height: 40}) {
		t.Errorf("box = %+v", got.Box)
	}
}

func TestRemoteDetectorServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	det := newRemoteDetector(&config.DetectorConfig{BaseURL: server.URL}, birdClasses)

	_, err := det.Detect(video.Frame{Index: 0, Data: []byte("jpeg")})
	if err == nil {
		t.Fatal("expected error from 503 response")
	}
	if kind := domain.KindOf(err); kind != domain.KindResource {
		t.Errorf("error kind = %v, want resource", kind)
	}
}

func TestStubDetectorCopiesResults(t *testing.T) {
	stub := &StubDetector{
		ByFrame: map[int][]domain.Detection{
			0: {{Class: "bird", Confidence: 0.8, Box: domain.Rect{Width: 10, Height: 10}}},
		},
	}

	first, err := stub.Detect(video.Frame{Index: 0})
	if err != nil {
		t.Fatal(err)
	}
	first[0].Class = "mutated"

	second, _ := stub.Detect(video.Frame{Index: 0})
	if second[0].Class != "bird" {
		t.Error("stub detections must not share backing arrays between calls")
	}
}
