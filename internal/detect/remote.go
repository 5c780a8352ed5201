package detect

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/eyu/animal-counter/internal/config"
	"github.com/eyu/animal-counter/internal/domain"
	"github.com/eyu/animal-counter/internal/video"
)

// remoteBox mirrors the JSON shape returned by the inference server.
type remoteBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type remoteDetection struct {
	ClassName  string    `json:"class_name"`
	Confidence float64   `json:"confidence"`
	BBox       remoteBox `json:"bbox"`
}

type remoteResponse struct {
	Detections []remoteDetection `json:"detections"`
}

// remoteDetector posts JPEG frames to an HTTP inference server and filters
// the response down to this variant's classes.
type remoteDetector struct {
	client     *resty.Client
	classes    classSet
	allowed    map[string]bool
	confidence float64
}

func newRemoteDetector(cfg *config.DetectorConfig, classes classSet) *remoteDetector {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout)
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	allowed := make(map[string]bool, len(classes))
	for _, label := range classes {
		allowed[label] = true
	}

	return &remoteDetector{
		client:     client,
		classes:    classes,
		allowed:    allowed,
		confidence: cfg.Confidence,
	}
}

func (d *remoteDetector) Classes() []string {
	return d.classes.labels()
}

func (d *remoteDetector) Detect(frame video.Frame) ([]domain.Detection, error) {
	var parsed remoteResponse

	resp, err := d.client.R().
		SetHeader("Content-Type", "image/jpeg").
		SetBody(frame.Data).
		SetResult(&parsed).
		Post("/detect")
	if err != nil {
		return nil, domain.ResourceError(fmt.Errorf("inference request for frame %d: %w", frame.Index, err))
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, domain.ResourceError(fmt.Errorf("inference server returned %d for frame %d", resp.StatusCode(), frame.Index))
	}

	var results []domain.Detection
	for _, det := range parsed.Detections {
		if !d.allowed[det.ClassName] {
			continue
		}
		if det.Confidence <= d.confidence {
			continue
		}
		results = append(results, domain.Detection{
			FrameIndex: frame.Index,
			Class:      det.ClassName,
			Confidence: det.Confidence,
			Box: domain.Rect{
				X:      det.BBox.X,
				Y:      det.BBox.Y,
				Width:  det.BBox.W,
				Height: det.BBox.H,
			},
		})
	}

	return results, nil
}
