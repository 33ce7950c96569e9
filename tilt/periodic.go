package tilt

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// MinimumImage wraps a separation vector into the nearest periodic image of
// an orthorhombic cell, d[k] -= round(d[k]/L[k]) * L[k]. Halves round up, so
// the wrapped component lies in [-L/2, L/2).
//
// The result is only correct when the true separation is shorter than half
// the cell length on every axis. Longer separations are silently aliased.
// Axes with a non-positive length are left untouched.
func MinimumImage(d r3.Vec, cell Cell) r3.Vec {
	return r3.Vec{
		X: wrap(d.X, cell.Lengths.X),
		Y: wrap(d.Y, cell.Lengths.Y),
		Z: wrap(d.Z, cell.Lengths.Z),
	}
}

func wrap(d, l float64) float64 {
	if l <= 0 {
		return d
	}
	return d - math.Floor(d/l+0.5)*l
}

// Relative returns each point relative to center under the minimum-image
// convention.
func Relative(center r3.Vec, points []r3.Vec, cell Cell) []r3.Vec {
	out := make([]r3.Vec, len(points))
	for i, p := range points {
		out[i] = MinimumImage(r3.Sub(p, center), cell)
	}
	return out
}

// Centroid returns the mean of points, or the zero vector for none.
func Centroid(points []r3.Vec) r3.Vec {
	if len(points) == 0 {
		return r3.Vec{}
	}
	var sum r3.Vec
	for _, p := range points {
		sum = r3.Add(sum, p)
	}
	return r3.Scale(1/float64(len(points)), sum)
}
