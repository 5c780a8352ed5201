package track

import (
	"reflect"
	"testing"

	"github.com/eyu/animal-counter/internal/domain"
)

func det(class string, box domain.Rect) domain.Detection {
	return domain.Detection{Class: class, Confidence: 0.9, Box: box}
}

// feed runs the same detections for a fixed number of frames.
func feed(t *testing.T, tr *Tracker, frames [][]domain.Detection) []*Track {
	t.Helper()
	for i, dets := range frames {
		for j := range dets {
			dets[j].FrameIndex = i
		}
		if err := tr.Observe(i, dets); err != nil {
			t.Fatalf("Observe frame %d: %v", i, err)
		}
	}
	return tr.Finish()
}

func confirmedIDs(tracks []*Track) []int {
	var ids []int
	for _, tr := range tracks {
		if tr.EverConfirmed {
			ids = append(ids, tr.ID)
		}
	}
	return ids
}

func TestSingleEntityAcrossThreeFrames(t *testing.T) {
	box := domain.Rect{X: 10, Y: 10, Width: 50, Height: 50}
	tr := New(Config{ConfirmHits: 2})

	tracks := feed(t, tr, [][]domain.Detection{
		{det("bird", box)},
		{det("bird", box)},
		{det("bird", box)},
	})

	ids := confirmedIDs(tracks)
	if len(ids) != 1 {
		t.Fatalf("unique entities = %d, want 1 (tracks: %+v)", len(ids), tracks)
	}
	if ids[0] != 1 {
		t.Errorf("first track id = %d, want 1", ids[0])
	}
}

func TestSingleAppearanceStaysTentative(t *testing.T) {
	tr := New(Config{ConfirmHits: 2, TentativeMisses: 1})

	tracks := feed(t, tr, [][]domain.Detection{
		{det("bird", domain.Rect{X: 0, Y: 0, Width: 20, Height: 20})},
		{}, // never reappears
		{},
	})

	if ids := confirmedIDs(tracks); len(ids) != 0 {
		t.Fatalf("tentative-only track must not confirm, got ids %v", ids)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected the discarded track to be reported, got %d", len(tracks))
	}
	if tracks[0].State != Terminated {
		t.Errorf("state = %v, want terminated", tracks[0].State)
	}
}

func TestTwoSeparateEntities(t *testing.T) {
	left := domain.Rect{X: 0, Y: 0, Width: 40, Height: 40}
	right := domain.Rect{X: 200, Y: 0, Width: 40, Height: 40}
	tr := New(Config{ConfirmHits: 2})

	tracks := feed(t, tr, [][]domain.Detection{
		{det("sheep", left), det("cow", right)},
		{det("sheep", left), det("cow", right)},
	})

	ids := confirmedIDs(tracks)
	if !reflect.DeepEqual(ids, []int{1, 2}) {
		t.Fatalf("confirmed ids = %v, want [1 2]", ids)
	}
}

func TestLostTrackRematches(t *testing.T) {
	box := domain.Rect{X: 50, Y: 50, Width: 60, Height: 60}
	tr := New(Config{ConfirmHits: 2, MissesToLost: 1, MissesToTerminate: 10})

	frames := [][]domain.Detection{
		{det("cow", box)},
		{det("cow", box)},
		{}, // miss -> Lost
		{det("cow", box)}, // re-match -> Confirmed again
		{det("cow", box)},
	}
	tracks := feed(t, tr, frames)

	ids := confirmedIDs(tracks)
	if !reflect.DeepEqual(ids, []int{1}) {
		t.Fatalf("confirmed ids = %v, want [1] (re-match must not spawn a new identity)", ids)
	}
	if tracks[0].Hits != 4 {
		t.Errorf("hits = %d, want 4", tracks[0].Hits)
	}
}

func TestLostTrackTimesOut(t *testing.T) {
	box := domain.Rect{X: 50, Y: 50, Width: 60, Height: 60}
	tr := New(Config{ConfirmHits: 2, MissesToLost: 1, MissesToTerminate: 3})

	frames := [][]domain.Detection{
		{det("cow", box)},
		{det("cow", box)},
		{}, {}, {}, // timeout elapses
		{det("cow", box)}, // too late: a new identity
		{det("cow", box)},
	}
	tracks := feed(t, tr, frames)

	ids := confirmedIDs(tracks)
	if !reflect.DeepEqual(ids, []int{1, 2}) {
		t.Fatalf("confirmed ids = %v, want [1 2]", ids)
	}
}

func TestTrackIDsMonotonic(t *testing.T) {
	tr := New(Config{})
	boxes := []domain.Rect{
		{X: 0, Y: 0, Width: 10, Height: 10},
		{X: 100, Y: 0, Width: 10, Height: 10},
		{X: 200, Y: 0, Width: 10, Height: 10},
	}

	frames := [][]domain.Detection{
		{det("bird", boxes[0])},
		{det("bird", boxes[1])},
		{det("bird", boxes[2])},
	}
	tracks := feed(t, tr, frames)

	last := 0
	for _, track := range tracks {
		if track.ID <= last {
			t.Fatalf("track ids not strictly increasing: %+v", tracks)
		}
		last = track.ID
	}
}

func TestAssignmentTieBreaksByLowerTrackID(t *testing.T) {
	// Two identical tracks compete for one detection; the lower id wins.
	box := domain.Rect{X: 10, Y: 10, Width: 30, Height: 30}
	tr := New(Config{ConfirmHits: 2, TentativeMisses: 5})

	if err := tr.Observe(0, []domain.Detection{det("bird", box), det("bird", box)}); err != nil {
		t.Fatal(err)
	}
	if err := tr.Observe(1, []domain.Detection{det("bird", box)}); err != nil {
		t.Fatal(err)
	}

	tracks := tr.Finish()
	if tracks[0].Hits != 2 {
		t.Errorf("track 1 hits = %d, want 2 (tie must resolve to lower id)", tracks[0].Hits)
	}
	if tracks[1].Hits != 1 {
		t.Errorf("track 2 hits = %d, want 1", tracks[1].Hits)
	}
}

func TestDeterministicReplay(t *testing.T) {
	frames := [][]domain.Detection{
		{det("sheep", domain.Rect{X: 5, Y: 5, Width: 50, Height: 40}), det("cow", domain.Rect{X: 300, Y: 80, Width: 70, Height: 60})},
		{det("sheep", domain.Rect{X: 9, Y: 6, Width: 50, Height: 40}), det("cow", domain.Rect{X: 305, Y: 82, Width: 70, Height: 60})},
		{det("sheep", domain.Rect{X: 14, Y: 8, Width: 50, Height: 40})},
		{det("sheep", domain.Rect{X: 18, Y: 9, Width: 50, Height: 40}), det("cow", domain.Rect{X: 312, Y: 85, Width: 70, Height: 60})},
		{det("horse", domain.Rect{X: 500, Y: 10, Width: 90, Height: 80})},
	}

	type snapshot struct {
		ID      int
		State   State
		Hits    int
		Primary string
	}

	run := func() []snapshot {
		tr := New(Config{})
		var out []snapshot
		for i, dets := range frames {
			copied := make([]domain.Detection, len(dets))
			copy(copied, dets)
			for j := range copied {
				copied[j].FrameIndex = i
			}
			if err := tr.Observe(i, copied); err != nil {
				t.Fatal(err)
			}
		}
		for _, track := range tr.Finish() {
			out = append(out, snapshot{ID: track.ID, State: track.State, Hits: track.Hits, Primary: track.PrimaryClass()})
		}
		return out
	}

	first := run()
	for i := 0; i < 5; i++ {
		if again := run(); !reflect.DeepEqual(first, again) {
			t.Fatalf("replay %d diverged:\nfirst: %+v\nagain: %+v", i, first, again)
		}
	}
}

func TestPrimaryClassTieBreak(t *testing.T) {
	track := &Track{Votes: []string{"sheep", "cow", "cow", "sheep"}}
	if got := track.PrimaryClass(); got != "sheep" {
		t.Errorf("primary class = %q, want first-seen %q on tie", got, "sheep")
	}

	track = &Track{Votes: []string{"sheep", "cow", "cow"}}
	if got := track.PrimaryClass(); got != "cow" {
		t.Errorf("primary class = %q, want mode %q", got, "cow")
	}
}

func TestClassMismatchPenaltyBlocksCheapSwap(t *testing.T) {
	// A detection of a different class on the same spot must still match if
	// IoU is perfect (penalty alone stays under MaxCost), and the vote is
	// recorded for the primary-class computation.
	box := domain.Rect{X: 10, Y: 10, Width: 40, Height: 40}
	tr := New(Config{ConfirmHits: 2, MaxCost: 0.5, ClassMismatchPenalty: 0.2})

	frames := [][]domain.Detection{
		{det("sheep", box)},
		{det("cow", box)},
		{det("sheep", box)},
	}
	tracks := feed(t, tr, frames)

	if len(tracks) != 1 {
		t.Fatalf("expected one identity, got %d", len(tracks))
	}
	if got := tracks[0].PrimaryClass(); got != "sheep" {
		t.Errorf("primary class = %q, want %q", got, "sheep")
	}
}

func TestEveryConfirmedTrackHasVotes(t *testing.T) {
	box := domain.Rect{X: 0, Y: 0, Width: 30, Height: 30}
	tr := New(Config{})
	tracks := feed(t, tr, [][]domain.Detection{
		{det("bird", box)},
		{det("bird", box)},
	})

	for _, track := range tracks {
		if track.EverConfirmed && len(track.Votes) == 0 {
			t.Fatalf("confirmed track %d has no class votes", track.ID)
		}
	}
}
