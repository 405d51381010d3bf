package obstacle

import "github.com/eleven-am/sightline/internal/perception"

// LargeCentralObject returns the first detection that is an obstacle type, big
// enough, and centered inside the central region of a width x height frame.
func LargeCentralObject(dets []perception.Detection, width, height int, cfg Config) (perception.Detection, bool) {
	region := CentralRegion(height, width, cfg.CentralRegion)
	if region.Empty() {
		return perception.Detection{}, false
	}
	for _, d := range dets {
		if !cfg.isObstacleType(d.Label) {
			continue
		}
		if d.AreaFraction < cfg.MinObjectSize {
			continue
		}
		cx, cy := d.Box.Center()
		if region.Contains(cx, cy) {
			return d, true
		}
	}
	return perception.Detection{}, false
}

// Fuse combines the depth and object signals under the configured policy.
func Fuse(depthObstacle, largeObject bool, mode Combine) bool {
	if mode == CombineOr {
		return depthObstacle || largeObject
	}
	return depthObstacle && largeObject
}
