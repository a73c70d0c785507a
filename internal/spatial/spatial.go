// Package spatial provides the pure math helpers shared by movement, combat,
// and loot: distances, facing rotations, and random rolls.
package spatial

import (
	"math"
	"math/rand"
)

// Vec3 is a point in world units.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Distance returns the euclidean distance between two points on the XZ plane.
// The Y axis is elevation and does not participate in range checks.
func Distance(a, b Vec3) float64 {
	return math.Hypot(a.X-b.X, a.Z-b.Z)
}

// DistanceSq returns the squared XZ distance, for compare-only callers.
func DistanceSq(a, b Vec3) float64 {
	dx := a.X - b.X
	dz := a.Z - b.Z
	return dx*dx + dz*dz
}

// Facing returns the rotation in radians for the directional axes h, v.
func Facing(h, v float64) float64 {
	return math.Atan2(h, v)
}

// FaceTowards returns the rotation that points from 'from' at 'to'.
func FaceTowards(from, to Vec3) float64 {
	return math.Atan2(to.X-from.X, to.Z-from.Z)
}

// RandomInRange returns a uniform continuous value in [min, max].
func RandomInRange(rng *rand.Rand, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + rng.Float64()*(max-min)
}

// RandomIntInRange returns a uniform integer in [min, max].
func RandomIntInRange(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min+1)
}

// Jitter offsets p by up to ±radius on the X and Z axes. Loot drops use this
// so stacks from one kill don't land on the same spot.
func Jitter(rng *rand.Rand, p Vec3, radius float64) Vec3 {
	return Vec3{
		X: p.X + (rng.Float64()*2-1)*radius,
		Y: p.Y,
		Z: p.Z + (rng.Float64()*2-1)*radius,
	}
}

// WeightedIndex picks an index from weights proportionally to each weight.
// Entries with non-positive weight are never selected. Returns -1 when no
// entry is selectable.
func WeightedIndex(rng *rand.Rand, weights []int) int {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}

	roll := rng.Intn(total)
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if roll < w {
			return i
		}
		roll -= w
	}
	return -1
}
