package tilt

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// minInPlaneLength is the shortest projected ligand vector that can still be
// normalized.
const minInPlaneLength = 1e-12

// Ideal in-plane ligand directions of an unrotated octahedron.
var idealDirections = [4]orb.Point{
	{1, 0},
	{-1, 0},
	{0, 1},
	{0, -1},
}

// AngleEstimator measures the in-plane rotation of an octahedron from a
// single snapshot. Only the rotation about Vertical is visible to it.
//
// The four equatorial ligands are the ones closest to the center along
// Vertical. When all six ligands are equally far along Vertical that choice
// is arbitrary; the stable sort keeps the lowest ligand indices.
type AngleEstimator struct {
	Vertical Axis
}

// Estimate returns the mean signed angle, in degrees, between the four
// equatorial ligand directions and their closest ideal axis directions.
// It fails with ErrDegenerateGeometry when a ligand projects onto the
// center.
func (e AngleEstimator) Estimate(snap *Snapshot, oc OctahedralCluster) (AngleRecord, error) {
	center := snap.Position(oc.Center)
	rel := Relative(center, snap.Positions(oc.Ligands[:]), snap.Cell)

	order := []int{0, 1, 2, 3, 4, 5}
	sort.SliceStable(order, func(a, b int) bool {
		return math.Abs(e.Vertical.Component(rel[order[a]])) <
			math.Abs(e.Vertical.Component(rel[order[b]]))
	})

	var sum float64
	for _, k := range order[:4] {
		v := e.Vertical.Project(rel[k])
		length := planar.Distance(orb.Point{}, v)
		if !(length >= minInPlaneLength) {
			return AngleRecord{}, fmt.Errorf("%w: ligand %d of center %d projects onto the center",
				ErrDegenerateGeometry, oc.Ligands[k], oc.Center)
		}
		sum += signedAngleToIdeal(orb.Point{v[0] / length, v[1] / length})
	}

	v := e.Vertical.Component(center)
	return AngleRecord{
		Center:           oc.Center,
		X:                center.X,
		Y:                center.Y,
		Z:                center.Z,
		ZRounded:         roundDecimal(v, 1),
		RotationAngleDeg: sum / 4,
	}, nil
}

// signedAngleToIdeal returns the signed angle in degrees from the closest
// ideal direction to the unit vector v. Counter-clockwise is positive.
func signedAngleToIdeal(v orb.Point) float64 {
	best := math.Inf(1)
	var signed float64
	for _, ref := range idealDirections {
		angle := math.Acos(clamp(ref[0]*v[0]+ref[1]*v[1], -1, 1))
		if angle < best {
			best = angle
			signed = sign(ref[0]*v[1]-ref[1]*v[0]) * angle * 180 / math.Pi
		}
	}
	return signed
}

// roundDecimal rounds v to the given number of decimal places, breaking ties
// on the exact binary value to even, so 0.15 (stored just below) gives 0.1
// and 5.25 gives 5.2.
func roundDecimal(v float64, places int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
