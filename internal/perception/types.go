package perception

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Frame is one camera image. Data is owned by the store once Put and must be
// treated as read-only by every consumer.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Data      []byte
	Width     int
	Height    int
}

type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b Box) Center() (x, y float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

func (b Box) Area() float64 {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

type Detection struct {
	Label        string  `json:"label"`
	Box          Box     `json:"box"`
	Score        float64 `json:"score"`
	AreaFraction float64 `json:"area_fraction"`
}

// Identity is one face found in a frame. Known is false for faces that did
// not match anyone in the gallery.
type Identity struct {
	Name  string  `json:"name,omitempty"`
	Known bool    `json:"known"`
	Score float64 `json:"score,omitempty"`
}

type Detector interface {
	Detect(ctx context.Context, frame *Frame) ([]Detection, error)
}

// DepthEstimator returns a relative depth map with one entry per pixel.
// Only the ordering of values is meaningful.
type DepthEstimator interface {
	Estimate(ctx context.Context, frame *Frame) (*mat.Dense, error)
}

type FaceMatcher interface {
	Match(ctx context.Context, frame *Frame) ([]Identity, error)
}

type TextReader interface {
	Read(ctx context.Context, frame *Frame, hints []Box) (string, error)
}

// WithAreaFractions fills AreaFraction for detections that do not carry one,
// using the frame dimensions. Values are clamped to [0,1].
func WithAreaFractions(dets []Detection, width, height int) []Detection {
	total := float64(width) * float64(height)
	out := make([]Detection, len(dets))
	for i, d := range dets {
		if d.AreaFraction == 0 && total > 0 {
			d.AreaFraction = d.Box.Area() / total
		}
		if d.AreaFraction > 1 {
			d.AreaFraction = 1
		}
		if d.AreaFraction < 0 {
			d.AreaFraction = 0
		}
		out[i] = d
	}
	return out
}

// Labels collapses detections to their distinct labels in first-seen order.
func Labels(dets []Detection) []string {
	seen := make(map[string]bool, len(dets))
	labels := make([]string, 0, len(dets))
	for _, d := range dets {
		if d.Label == "" || seen[d.Label] {
			continue
		}
		seen[d.Label] = true
		labels = append(labels, d.Label)
	}
	return labels
}
