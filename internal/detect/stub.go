package detect

import (
	"github.com/eyu/animal-counter/internal/domain"
	"github.com/eyu/animal-counter/internal/video"
)

// StubDetector replays scripted detections keyed by frame index. It backs
// pipeline tests and the CLI dry-run mode, where no model is loaded.
type StubDetector struct {
	// ByFrame holds the detections returned for each frame index.
	ByFrame map[int][]domain.Detection
	// Err, when set, is returned for every frame.
	Err error
	// Delay is an optional hook invoked before every detection; tests use
	// it to simulate a stalled model.
	Delay func()

	ClassList []string
}

func (s *StubDetector) Classes() []string {
	return s.ClassList
}

func (s *StubDetector) Detect(frame video.Frame) ([]domain.Detection, error) {
	if s.Delay != nil {
		s.Delay()
	}
	if s.Err != nil {
		return nil, s.Err
	}
	dets := s.ByFrame[frame.Index]
	out := make([]domain.Detection, len(dets))
	copy(out, dets)
	for i := range out {
		out[i].FrameIndex = frame.Index
	}
	return out, nil
}
