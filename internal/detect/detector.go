// Package detect provides per-frame object detection. The pipeline depends
// only on the Detector interface; concrete implementations run a local DNN
// or call a remote inference server.
package detect

import (
	"fmt"

	"github.com/eyu/animal-counter/internal/config"
	"github.com/eyu/animal-counter/internal/domain"
	"github.com/eyu/animal-counter/internal/video"
)

// Detector is a stateless per-frame inference capability. Detect returns
// zero or more detections already filtered by the detector's confidence
// threshold, in stable model-output order.
type Detector interface {
	Detect(frame video.Frame) ([]domain.Detection, error)
	// Classes lists the labels this variant can produce.
	Classes() []string
}

// classSet maps model class IDs to labels for one detector variant.
// IDs follow the COCO ordering used by the bundled SSD models.
type classSet map[int]string

// COCO has only a generic bird class; ducks, turkeys and chickens all
// surface as "bird".
var birdClasses = classSet{
	14: "bird",
}

// Goat is not a COCO class; goats tend to be reported as sheep or cow.
var livestockClasses = classSet{
	17: "horse",
	18: "sheep",
	19: "cow",
	23: "giraffe",
}

// classesFor returns the class allowlist for a detection type.
func classesFor(detectionType domain.DetectionType) (classSet, error) {
	switch detectionType {
	case domain.DetectionTypeBirds:
		return birdClasses, nil
	case domain.DetectionTypeLivestock:
		return livestockClasses, nil
	default:
		return nil, domain.ErrUnknownDetectionType
	}
}

// labels returns the sorted-by-ID label list of a class set.
func (c classSet) labels() []string {
	out := make([]string, 0, len(c))
	for _, id := range c.sortedIDs() {
		out = append(out, c[id])
	}
	return out
}

func (c classSet) sortedIDs() []int {
	ids := make([]int, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

// Factory builds a detector for a job's detection type.
type Factory func(detectionType domain.DetectionType) (Detector, error)

// NewFactory returns a Factory bound to the configured provider.
func NewFactory(cfg *config.DetectorConfig) Factory {
	return func(detectionType domain.DetectionType) (Detector, error) {
		classes, err := classesFor(detectionType)
		if err != nil {
			return nil, err
		}

		switch cfg.Provider {
		case "dnn", "":
			return newDNNDetector(cfg, classes)
		case "remote":
			return newRemoteDetector(cfg, classes), nil
		default:
			return nil, domain.ResourceError(fmt.Errorf("unknown detector provider %q", cfg.Provider))
		}
	}
}
