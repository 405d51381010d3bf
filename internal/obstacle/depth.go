package obstacle

import (
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Region is a half-open pixel rectangle [Row0,Row1) x [Col0,Col1).
type Region struct {
	Row0, Row1 int
	Col0, Col1 int
}

func (r Region) Empty() bool {
	return r.Row1 <= r.Row0 || r.Col1 <= r.Col0
}

// Contains reports whether the point (x, y) in pixel coordinates lies inside.
func (r Region) Contains(x, y float64) bool {
	return x >= float64(r.Col0) && x < float64(r.Col1) &&
		y >= float64(r.Row0) && y < float64(r.Row1)
}

// CentralRegion returns the centered crop covering fraction of each dimension.
func CentralRegion(rows, cols int, fraction float64) Region {
	if rows <= 0 || cols <= 0 || fraction <= 0 {
		return Region{}
	}
	if fraction > 1 {
		fraction = 1
	}
	ch := int(float64(rows) * fraction)
	cw := int(float64(cols) * fraction)
	if ch < 1 {
		ch = 1
	}
	if cw < 1 {
		cw = 1
	}
	r0 := (rows - ch) / 2
	c0 := (cols - cw) / 2
	return Region{Row0: r0, Row1: r0 + ch, Col0: c0, Col1: c0 + cw}
}

type DepthSignal struct {
	Median    float64
	NearRatio float64
	Obstacle  bool
}

// AnalyzeDepth measures how much of the central region is markedly closer than
// the region's median depth. A nil, empty or non-positive-median map yields no
// obstacle.
func AnalyzeDepth(depth *mat.Dense, cfg Config) DepthSignal {
	if depth == nil || depth.IsEmpty() {
		return DepthSignal{}
	}
	rows, cols := depth.Dims()
	region := CentralRegion(rows, cols, cfg.CentralRegion)
	if region.Empty() {
		return DepthSignal{}
	}

	roi := depth.Slice(region.Row0, region.Row1, region.Col0, region.Col1).(*mat.Dense)
	values := regionValues(roi)

	median := medianOf(values)
	if median <= 0 {
		return DepthSignal{Median: median}
	}

	limit := median * cfg.DepthThreshold
	near := floats.Count(func(v float64) bool { return v < limit }, values)
	ratio := float64(near) / float64(len(values))

	return DepthSignal{
		Median:    median,
		NearRatio: ratio,
		Obstacle:  ratio > cfg.NearPixelRatio,
	}
}

func regionValues(roi *mat.Dense) []float64 {
	rows, cols := roi.Dims()
	values := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		values = append(values, roi.RawRowView(i)...)
	}
	return values
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
