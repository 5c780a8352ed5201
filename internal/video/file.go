package video

import (
	"fmt"
	"io"
	"os"

	"gocv.io/x/gocv"

	"github.com/eyu/animal-counter/internal/domain"
)

// fileSource decodes a video file through OpenCV. It is single-pass: frames
// are read, JPEG-encoded and handed out in order.
type fileSource struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	meta    Meta
	next    int
	closed  bool
}

// OpenFile opens a video file for decoding.
// A missing file maps to domain.ErrNotFound, an unreadable container or codec
// to domain.ErrInvalidFormat; both are input errors for the owning job.
func OpenFile(path string) (Source, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, domain.InputError(fmt.Errorf("%w: %s", domain.ErrNotFound, path))
	}

	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, domain.InputError(fmt.Errorf("%w: %s: %v", domain.ErrInvalidFormat, path, err))
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, domain.InputError(fmt.Errorf("%w: %s", domain.ErrInvalidFormat, path))
	}

	meta := Meta{
		Width:  int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(capture.Get(gocv.VideoCaptureFrameHeight)),
		FPS:    capture.Get(gocv.VideoCaptureFPS),
	}
	if meta.FPS <= 0 {
		meta.FPS = 30
	}

	return &fileSource{
		capture: capture,
		mat:     gocv.NewMat(),
		meta:    meta,
	}, nil
}

// Next reads and encodes the next frame. OpenCV reports end of stream and
// decode failures the same way, so a read that stops early surfaces as EOF;
// truncated containers are caught at open time by the format probe.
func (s *fileSource) Next() (Frame, error) {
	if s.closed {
		return Frame{}, domain.InputError(fmt.Errorf("read after close"))
	}

	if ok := s.capture.Read(&s.mat); !ok {
		return Frame{}, io.EOF
	}
	if s.mat.Empty() {
		return Frame{}, io.EOF
	}

	buf, err := gocv.IMEncode(".jpg", s.mat)
	if err != nil {
		return Frame{}, domain.InputError(fmt.Errorf("encode frame %d: %w", s.next, err))
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())

	frame := Frame{Index: s.next, Data: data}
	s.next++
	return frame, nil
}

func (s *fileSource) Meta() Meta { return s.meta }

func (s *fileSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.mat.Close()
	return s.capture.Close()
}
