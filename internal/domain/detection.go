package domain

// Rect is an axis-aligned bounding box in pixel coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the box area, never negative.
func (r Rect) Area() int {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// CenterX returns the horizontal center of the box.
func (r Rect) CenterX() float64 {
	return float64(r.X) + float64(r.Width)/2
}

// CenterY returns the vertical center of the box.
func (r Rect) CenterY() float64 {
	return float64(r.Y) + float64(r.Height)/2
}

// IoU computes the intersection-over-union of two boxes in [0,1].
func (r Rect) IoU(other Rect) float64 {
	x1 := max(r.X, other.X)
	y1 := max(r.Y, other.Y)
	x2 := min(r.X+r.Width, other.X+other.Width)
	y2 := min(r.Y+r.Height, other.Y+other.Height)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	inter := (x2 - x1) * (y2 - y1)
	union := r.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Detection is a single bounding region, class label, and confidence score
// produced for one frame. Detections are ephemeral tracker input and are
// never persisted individually.
type Detection struct {
	FrameIndex int     `json:"frame_index"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Box        Rect    `json:"box"`
}
