// Package track maintains cross-frame object identities, deduplicating
// repeated detections of the same animal into stable tracks.
package track

import "github.com/eyu/animal-counter/internal/domain"

// State is the lifecycle state of a track.
type State int

const (
	// Tentative tracks have not yet accumulated enough consecutive hits to count.
	Tentative State = iota
	// Confirmed tracks count as one unique entity.
	Confirmed
	// Lost tracks were confirmed but have gone unmatched; they may still re-match.
	Lost
	// Terminated tracks are final and removed from matching.
	Terminated
)

func (s State) String() string {
	switch s {
	case Tentative:
		return "tentative"
	case Confirmed:
		return "confirmed"
	case Lost:
		return "lost"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// Track is one maintained identity spanning frames. IDs are unique within a
// job, assigned monotonically and never reused.
type Track struct {
	ID    int
	State State

	// Votes records the class of every detection assigned to this track,
	// in assignment order.
	Votes []string

	Hits      int
	HitStreak int
	Misses    int

	FirstSeen int
	LastSeen  int

	// EverConfirmed stays true once a track reaches Confirmed, so a track
	// that terminates while Lost still contributes to the unique count.
	EverConfirmed bool

	// Box is the last observed position; history keeps a bounded window of
	// recent boxes for motion extrapolation.
	Box     domain.Rect
	history []domain.Rect
	maxHist int
}

// newTrack creates a Tentative track from its first detection.
func newTrack(id int, det domain.Detection, maxHist int) *Track {
	t := &Track{
		ID:        id,
		State:     Tentative,
		Votes:     []string{det.Class},
		Hits:      1,
		HitStreak: 1,
		FirstSeen: det.FrameIndex,
		LastSeen:  det.FrameIndex,
		Box:       det.Box,
		maxHist:   maxHist,
	}
	t.pushHistory(det.Box)
	return t
}

func (t *Track) pushHistory(box domain.Rect) {
	t.history = append(t.history, box)
	if len(t.history) > t.maxHist {
		t.history = t.history[len(t.history)-t.maxHist:]
	}
}

// Predicted returns the expected position for the next frame: the last box
// advanced by the most recent center motion.
func (t *Track) Predicted() domain.Rect {
	n := len(t.history)
	if n < 2 {
		return t.Box
	}
	prev, last := t.history[n-2], t.history[n-1]
	dx := int(last.CenterX() - prev.CenterX())
	dy := int(last.CenterY() - prev.CenterY())
	return domain.Rect{
		X:      last.X + dx,
		Y:      last.Y + dy,
		Width:  last.Width,
		Height: last.Height,
	}
}

// PrimaryClass returns the mode of the class votes. Ties break toward the
// class seen first.
func (t *Track) PrimaryClass() string {
	if len(t.Votes) == 0 {
		return ""
	}
	counts := make(map[string]int, len(t.Votes))
	firstSeen := make(map[string]int, len(t.Votes))
	for i, class := range t.Votes {
		counts[class]++
		if _, ok := firstSeen[class]; !ok {
			firstSeen[class] = i
		}
	}

	best := t.Votes[0]
	for class, count := range counts {
		if count > counts[best] || (count == counts[best] && firstSeen[class] < firstSeen[best]) {
			best = class
		}
	}
	return best
}
