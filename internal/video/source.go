// Package video turns an uploaded video file into an ordered, single-pass
// sequence of frames and writes the annotated output video.
package video

import "io"

// Frame is one decoded video frame. Data holds the JPEG-encoded image;
// Index increases strictly from 0. Frames are ephemeral: consumers must not
// retain Data after the detect step.
type Frame struct {
	Index int
	Data  []byte
}

// Meta describes the decoded stream, used to size the output writer.
type Meta struct {
	Width  int
	Height int
	FPS    float64
}

// Source is a finite, forward-only frame sequence. Next returns io.EOF after
// the last frame. A Source is not restartable.
type Source interface {
	// Next returns the next frame in index order.
	Next() (Frame, error)
	// Meta returns stream properties. Valid after open.
	Meta() Meta
	// Close releases decoder resources.
	Close() error
}

// SliceSource serves pre-built frames from memory. Used by tests and the
// remote-detector dry-run path.
type SliceSource struct {
	frames []Frame
	meta   Meta
	pos    int

	// FailAt makes Next return FailErr instead of the frame at that index.
	// Zero value disables the fault.
	FailAt  int
	FailErr error
}

// NewSliceSource builds a SliceSource with sequential indices assigned.
func NewSliceSource(meta Meta, frames ...Frame) *SliceSource {
	for i := range frames {
		frames[i].Index = i
	}
	return &SliceSource{frames: frames, meta: meta, FailAt: -1}
}

func (s *SliceSource) Next() (Frame, error) {
	if s.FailErr != nil && s.pos == s.FailAt {
		return Frame{}, s.FailErr
	}
	if s.pos >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *SliceSource) Meta() Meta { return s.meta }

func (s *SliceSource) Close() error { return nil }
