// Package geo holds the planar angle and distance helpers used by the motion
// model, plus track geometry for recorded runs.
//
// All angles are radians. Canonical headings and bearings lie in [0, 2π).
package geo

import "math"

// FullTurn is one full revolution in radians.
const FullTurn = 2 * math.Pi

// NormalizeAngle maps any finite angle into [0, 2π).
func NormalizeAngle(angle float64) float64 {
	a := math.Mod(angle, FullTurn)
	if a < 0 {
		a += FullTurn
	}
	// a tiny negative remainder plus 2π can round up to exactly 2π
	if a >= FullTurn {
		a = 0
	}
	return a
}

// Distance returns the Euclidean distance between (ax, ay) and (bx, by).
func Distance(ax, ay, bx, by float64) float64 {
	return math.Hypot(ax-bx, ay-by)
}

// Bearing returns the normalized angle of the vector from (fromX, fromY) to (toX, toY).
func Bearing(fromX, fromY, toX, toY float64) float64 {
	return NormalizeAngle(math.Atan2(toY-fromY, toX-fromX))
}

// WrapSigned folds a difference of two canonical angles into [-π, π] so that
// steering never turns the long way round. Exactly ±π is returned unchanged.
func WrapSigned(diff float64) float64 {
	if diff > math.Pi {
		diff -= FullTurn
	}
	if diff < -math.Pi {
		diff += FullTurn
	}
	return diff
}

// Clamp limits value to [lo, hi].
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// RoundHalfUp rounds to the nearest integer, ties toward +∞.
// Pointer coordinates are snapped to the target grid with it.
func RoundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
