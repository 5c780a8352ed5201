package track

import (
	"fmt"
	"sort"

	"github.com/eyu/animal-counter/internal/domain"
)

// Config holds the association cost and lifecycle thresholds.
type Config struct {
	// ConfirmHits is the consecutive-hit count that promotes Tentative to
	// Confirmed.
	ConfirmHits int
	// MissesToLost is the consecutive-miss count that demotes Confirmed to
	// Lost.
	MissesToLost int
	// MissesToTerminate is the consecutive-miss count after which a Lost
	// track is Terminated.
	MissesToTerminate int
	// TentativeMisses is the consecutive-miss count after which a track
	// that never confirmed is discarded.
	TentativeMisses int
	// MaxCost is the association rejection threshold; pairs above it are
	// infeasible.
	MaxCost float64
	// ClassMismatchPenalty is added to the cost when a detection's class
	// differs from the track's primary class.
	ClassMismatchPenalty float64
	// HistoryLen bounds the per-track box history kept for prediction.
	HistoryLen int
}

// DefaultConfig returns the documented default thresholds: 2-hit confirm,
// 3-miss lost, 30-miss terminate, single-miss tentative discard.
func DefaultConfig() Config {
	return Config{
		ConfirmHits:          2,
		MissesToLost:         3,
		MissesToTerminate:    30,
		TentativeMisses:      1,
		MaxCost:              0.7,
		ClassMismatchPenalty: 0.2,
		HistoryLen:           10,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ConfirmHits <= 0 {
		c.ConfirmHits = def.ConfirmHits
	}
	if c.MissesToLost <= 0 {
		c.MissesToLost = def.MissesToLost
	}
	if c.MissesToTerminate <= 0 {
		c.MissesToTerminate = def.MissesToTerminate
	}
	if c.TentativeMisses <= 0 {
		c.TentativeMisses = def.TentativeMisses
	}
	if c.MaxCost <= 0 {
		c.MaxCost = def.MaxCost
	}
	if c.ClassMismatchPenalty < 0 {
		c.ClassMismatchPenalty = def.ClassMismatchPenalty
	}
	if c.HistoryLen <= 0 {
		c.HistoryLen = def.HistoryLen
	}
	return c
}

// Tracker performs frame-by-frame data association. It is single-job,
// single-goroutine state; the pipeline drives it strictly in frame order.
// Identical detection sequences always yield identical track ids, state
// transitions, and counts.
type Tracker struct {
	cfg    Config
	active []*Track // non-terminated, ascending ID order
	done   []*Track // terminated, in termination order
	nextID int
}

// New creates a tracker; zero-value config fields fall back to defaults.
func New(cfg Config) *Tracker {
	return &Tracker{cfg: cfg.withDefaults(), nextID: 1}
}

// pair is one feasible track/detection association candidate.
type pair struct {
	cost     float64
	trackIdx int
	detIdx   int
}

// Observe ingests the detections of one frame and updates track state.
// Frames must be fed in increasing index order.
func (t *Tracker) Observe(frameIndex int, detections []domain.Detection) error {
	// Feasible pairs, then a greedy lowest-cost-first one-to-one assignment.
	// Ordering by (cost, track id, detection order) keeps the result fully
	// deterministic.
	var pairs []pair
	for ti, tr := range t.active {
		predicted := tr.Predicted()
		primary := tr.PrimaryClass()
		for di, det := range detections {
			cost := 1 - predicted.IoU(det.Box)
			if det.Class != primary {
				cost += t.cfg.ClassMismatchPenalty
			}
			if cost > t.cfg.MaxCost {
				continue
			}
			pairs = append(pairs, pair{cost: cost, trackIdx: ti, detIdx: di})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.cost != b.cost {
			return a.cost < b.cost
		}
		if a.trackIdx != b.trackIdx {
			return t.active[a.trackIdx].ID < t.active[b.trackIdx].ID
		}
		return a.detIdx < b.detIdx
	})

	matchedTracks := make([]bool, len(t.active))
	matchedDets := make([]bool, len(detections))
	for _, p := range pairs {
		if matchedTracks[p.trackIdx] || matchedDets[p.detIdx] {
			continue
		}
		matchedTracks[p.trackIdx] = true
		matchedDets[p.detIdx] = true
		t.hit(t.active[p.trackIdx], detections[p.detIdx], frameIndex)
	}

	for ti, tr := range t.active {
		if !matchedTracks[ti] {
			t.miss(tr)
		}
	}

	// Unmatched detections spawn new tracks, in detection order.
	for di, det := range detections {
		if matchedDets[di] {
			continue
		}
		if err := t.spawn(det); err != nil {
			return err
		}
	}

	t.sweep()
	return nil
}

// hit applies a matched detection to a track.
func (t *Tracker) hit(tr *Track, det domain.Detection, frameIndex int) {
	tr.Box = det.Box
	tr.pushHistory(det.Box)
	tr.Votes = append(tr.Votes, det.Class)
	tr.Hits++
	tr.HitStreak++
	tr.Misses = 0
	tr.LastSeen = frameIndex

	switch tr.State {
	case Tentative:
		if tr.HitStreak >= t.cfg.ConfirmHits {
			tr.State = Confirmed
			tr.EverConfirmed = true
		}
	case Lost:
		tr.State = Confirmed
	}
}

// miss advances the consecutive-miss counters and demotes or terminates.
func (t *Tracker) miss(tr *Track) {
	tr.Misses++
	tr.HitStreak = 0

	switch tr.State {
	case Tentative:
		if tr.Misses >= t.cfg.TentativeMisses {
			tr.State = Terminated
		}
	case Confirmed:
		if tr.Misses >= t.cfg.MissesToLost {
			tr.State = Lost
		}
	case Lost:
		if tr.Misses >= t.cfg.MissesToTerminate {
			tr.State = Terminated
		}
	}
}

// spawn creates a new Tentative track for an unmatched detection.
func (t *Tracker) spawn(det domain.Detection) error {
	id := t.nextID
	t.nextID++

	if n := len(t.active); n > 0 && t.active[n-1].ID >= id {
		return domain.InternalError(fmt.Errorf("track id %d not greater than last active id %d", id, t.active[n-1].ID))
	}

	t.active = append(t.active, newTrack(id, det, t.cfg.HistoryLen))
	return nil
}

// sweep moves terminated tracks out of the active set.
func (t *Tracker) sweep() {
	kept := t.active[:0]
	for _, tr := range t.active {
		if tr.State == Terminated {
			t.done = append(t.done, tr)
			continue
		}
		kept = append(kept, tr)
	}
	t.active = kept
}

// Finish terminates all remaining tracks and returns every track the job
// created, in ascending id order.
func (t *Tracker) Finish() []*Track {
	for _, tr := range t.active {
		tr.State = Terminated
	}
	t.done = append(t.done, t.active...)
	t.active = nil

	sort.Slice(t.done, func(i, j int) bool { return t.done[i].ID < t.done[j].ID })
	return t.done
}

// ActiveCount reports how many tracks are still live. Used for logging.
func (t *Tracker) ActiveCount() int {
	return len(t.active)
}
