package tilt

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// EulerConvention selects how a rotation matrix is reduced to three angles
// about x, y and z.
type EulerConvention int

const (
	// Intrinsic rotates about the body axes x, then y', then z'':
	// R = Rx(a) * Ry(b) * Rz(c).
	Intrinsic EulerConvention = iota
	// Extrinsic rotates about the fixed axes x, then y, then z:
	// R = Rz(c) * Ry(b) * Rx(a).
	Extrinsic
)

// ParseEulerConvention accepts "intrinsic" or "extrinsic".
func ParseEulerConvention(s string) (EulerConvention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "intrinsic", "":
		return Intrinsic, nil
	case "extrinsic":
		return Extrinsic, nil
	}
	return Intrinsic, fmt.Errorf("unknown euler convention %q (want intrinsic or extrinsic)", s)
}

func (c EulerConvention) String() string {
	if c == Extrinsic {
		return "extrinsic"
	}
	return "intrinsic"
}

// KabschRotation returns the proper rotation R that best maps the points p
// onto the corresponding points q in the least-squares sense (R*p ≈ q).
//
// Both sets are re-centered on their centroids first. The cross-covariance
// H = Pᵀ*Q is decomposed as U*S*Vᵀ and R = V*Uᵀ. When that candidate is a
// reflection (det < 0), the last column of V is negated and R recomputed;
// reflected reports that this correction was applied.
func KabschRotation(p, q []r3.Vec) (r *mat.Dense, reflected bool, err error) {
	n := len(p)
	if n == 0 || n != len(q) {
		return nil, false, fmt.Errorf("%w: point sets of length %d and %d", ErrMalformedInput, n, len(q))
	}

	cp, cq := Centroid(p), Centroid(q)
	P := mat.NewDense(n, 3, nil)
	Q := mat.NewDense(n, 3, nil)
	for i := range p {
		a, b := r3.Sub(p[i], cp), r3.Sub(q[i], cq)
		P.SetRow(i, []float64{a.X, a.Y, a.Z})
		Q.SetRow(i, []float64{b.X, b.Y, b.Z})
	}

	var h mat.Dense
	h.Mul(P.T(), Q)

	var svd mat.SVD
	if ok := svd.Factorize(&h, mat.SVDFull); !ok {
		return nil, false, fmt.Errorf("%w: SVD of cross-covariance did not converge", ErrDegenerateGeometry)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	r = mat.NewDense(3, 3, nil)
	r.Mul(&v, u.T())
	if mat.Det(r) < 0 {
		for i := 0; i < 3; i++ {
			v.Set(i, 2, -v.At(i, 2))
		}
		r.Mul(&v, u.T())
		reflected = true
	}
	return r, reflected, nil
}

// EulerAngles reduces a proper rotation matrix to angles in degrees about
// x, y and z. Near gimbal lock (middle angle ±90°) the first and last angles
// are not unique and are returned as computed.
func EulerAngles(r mat.Matrix, conv EulerConvention) (x, y, z float64) {
	const deg = 180 / math.Pi
	if conv == Extrinsic {
		y = math.Asin(clamp(-r.At(2, 0), -1, 1))
		x = math.Atan2(r.At(2, 1), r.At(2, 2))
		z = math.Atan2(r.At(1, 0), r.At(0, 0))
		return x * deg, y * deg, z * deg
	}
	y = math.Asin(clamp(r.At(0, 2), -1, 1))
	x = math.Atan2(-r.At(1, 2), r.At(2, 2))
	z = math.Atan2(-r.At(0, 1), r.At(0, 0))
	return x * deg, y * deg, z * deg
}

// KabschEstimator measures the rigid rotation of an octahedron between a
// reference and a deformed snapshot with the same atom ordering.
type KabschEstimator struct {
	Convention EulerConvention
}

// Estimate aligns the ligand shell of oc in ref onto the same ligands in
// def. Ligand positions are taken relative to their own center in each
// snapshot, so translation of the octahedron does not contribute.
func (e KabschEstimator) Estimate(ref, def *Snapshot, oc OctahedralCluster) (KabschRecord, error) {
	refCenter := ref.Position(oc.Center)
	defCenter := def.Position(oc.Center)
	p := Relative(refCenter, ref.Positions(oc.Ligands[:]), ref.Cell)
	q := Relative(defCenter, def.Positions(oc.Ligands[:]), def.Cell)

	r, _, err := KabschRotation(p, q)
	if err != nil {
		return KabschRecord{}, fmt.Errorf("center %d: %w", oc.Center, err)
	}
	rx, ry, rz := EulerAngles(r, e.Convention)
	return KabschRecord{
		Center:  oc.Center,
		X:       defCenter.X,
		Y:       defCenter.Y,
		Z:       defCenter.Z,
		RotXDeg: rx,
		RotYDeg: ry,
		RotZDeg: rz,
	}, nil
}
