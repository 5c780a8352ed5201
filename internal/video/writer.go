package video

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/eyu/animal-counter/internal/domain"
)

// Annotator receives each processed frame together with its detections and
// renders the processed output video.
type Annotator interface {
	Add(frame Frame, detections []domain.Detection) error
	Close() error
}

// boxColor is the rectangle and label color for detection overlays.
var boxColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}

// annotatedWriter re-encodes frames with detection boxes burned in.
type annotatedWriter struct {
	writer *gocv.VideoWriter
	closed bool
}

// NewAnnotatedWriter creates an MP4 writer at path sized from meta.
func NewAnnotatedWriter(path string, meta Meta) (Annotator, error) {
	writer, err := gocv.VideoWriterFile(path, "mp4v", meta.FPS, meta.Width, meta.Height, true)
	if err != nil {
		return nil, fmt.Errorf("open output video %s: %w", path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("open output video %s: writer not ready", path)
	}
	return &annotatedWriter{writer: writer}, nil
}

// Add decodes the frame, draws every detection box with its label and
// confidence, and appends the result to the output video.
func (w *annotatedWriter) Add(frame Frame, detections []domain.Detection) error {
	mat, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		return fmt.Errorf("decode frame %d: %w", frame.Index, err)
	}
	defer mat.Close()

	for _, det := range detections {
		rect := image.Rect(det.Box.X, det.Box.Y, det.Box.X+det.Box.Width, det.Box.Y+det.Box.Height)
		if err := gocv.Rectangle(&mat, rect, boxColor, 2); err != nil {
			return fmt.Errorf("draw rectangle: %w", err)
		}

		label := fmt.Sprintf("%s (%.2f)", det.Class, det.Confidence)
		pt := image.Pt(det.Box.X, det.Box.Y-5)
		if err := gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, 0.5, boxColor, 1); err != nil {
			return fmt.Errorf("draw label: %w", err)
		}
	}

	return w.writer.Write(mat)
}

func (w *annotatedWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.writer.Close()
}

// NopAnnotator discards frames. Used when annotated output is disabled.
type NopAnnotator struct{}

func (NopAnnotator) Add(Frame, []domain.Detection) error { return nil }
func (NopAnnotator) Close() error                        { return nil }
