package geo

import "math"

// Dist2D is the Euclidean distance on the ground plane; the vertical
// axis never participates in claim geometry.
func Dist2D(ax, az, bx, bz float64) float64 {
	return math.Hypot(ax-bx, az-bz)
}

// CircleContains reports whether (x,z) lies inside the circle at
// (cx,cz) with the given radius. The boundary counts as inside.
func CircleContains(cx, cz, r, x, z int) bool {
	return Dist2D(float64(x), float64(z), float64(cx), float64(cz)) <= float64(r)
}

// BoxContains reports whether (x,y,z) lies inside the axis-aligned box
// spanned by the two corners. Corners may be given in any order.
func BoxContains(x, y, z int, a, b [3]int) bool {
	for i, v := range [3]int{x, y, z} {
		lo, hi := a[i], b[i]
		if lo > hi {
			lo, hi = hi, lo
		}
		if v < lo || v > hi {
			return false
		}
	}
	return true
}

// FloorDiv divides rounding toward negative infinity. b > 0.
func FloorDiv(a, b int) int {
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
