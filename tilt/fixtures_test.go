package tilt

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

const siO = 2.0

// octahedronLigands returns the six ligand offsets of an ideal octahedron
// with bond length d.
func octahedronLigands(d float64) []r3.Vec {
	return []r3.Vec{
		{X: d}, {X: -d},
		{Y: d}, {Y: -d},
		{Z: d}, {Z: -d},
	}
}

// octahedron builder: one center plus rotated ligands.
type octa struct {
	center r3.Vec
	rot    r3.Rotation
	bonds  []r3.Vec
}

// isolatedSnapshot places each octahedron in a large cubic cell. Centers are
// Si, ligands O; atom order is center then its six ligands, per octahedron.
func isolatedSnapshot(t *testing.T, length float64, octs ...octa) *Snapshot {
	t.Helper()
	var pos []r3.Vec
	var labels []string
	for _, o := range octs {
		pos = append(pos, o.center)
		labels = append(labels, "Si")
		bonds := o.bonds
		if bonds == nil {
			bonds = octahedronLigands(siO)
		}
		for _, b := range bonds {
			if o.rot != (r3.Rotation{}) {
				b = o.rot.Rotate(b)
			}
			pos = append(pos, wrapInto(r3.Add(o.center, b), length))
			labels = append(labels, "O")
		}
	}
	snap, err := NewSnapshot(pos, labels, Cell{Lengths: r3.Vec{X: length, Y: length, Z: length}})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return snap
}

func wrapInto(p r3.Vec, l float64) r3.Vec {
	f := func(v float64) float64 { return v - math.Floor(v/l)*l }
	return r3.Vec{X: f(p.X), Y: f(p.Y), Z: f(p.Z)}
}

func rotZ(deg float64) r3.Rotation {
	return r3.NewRotation(deg*math.Pi/180, r3.Vec{Z: 1})
}

// perovskiteSnapshot builds an n×n×n corner-sharing network with lattice
// constant 2*siO: Si on the lattice points, O on the edge midpoints. Every
// Si has exactly six O neighbors at siO.
func perovskiteSnapshot(t *testing.T, n int) *Snapshot {
	t.Helper()
	a := 2 * siO
	var pos []r3.Vec
	var labels []string
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				p := r3.Vec{X: a * float64(i), Y: a * float64(j), Z: a * float64(k)}
				pos = append(pos, p,
					r3.Add(p, r3.Vec{X: siO}),
					r3.Add(p, r3.Vec{Y: siO}),
					r3.Add(p, r3.Vec{Z: siO}))
				labels = append(labels, "Si", "O", "O", "O")
			}
		}
	}
	l := a * float64(n)
	snap, err := NewSnapshot(pos, labels, Cell{Lengths: r3.Vec{X: l, Y: l, Z: l}})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return snap
}

// withAtoms returns a copy of snap with extra atoms appended.
func withAtoms(t *testing.T, snap *Snapshot, labels []string, pos ...r3.Vec) *Snapshot {
	t.Helper()
	var p []r3.Vec
	var l []string
	for _, a := range snap.Atoms {
		p = append(p, a.Position)
		l = append(l, snap.Species.Label(a.Species))
	}
	p = append(p, pos...)
	l = append(l, labels...)
	out, err := NewSnapshot(p, l, snap.Cell)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return out
}

// withoutAtom returns a copy of snap without atom idx.
func withoutAtom(t *testing.T, snap *Snapshot, idx int) *Snapshot {
	t.Helper()
	var p []r3.Vec
	var l []string
	for _, a := range snap.Atoms {
		if a.Index == idx {
			continue
		}
		p = append(p, a.Position)
		l = append(l, snap.Species.Label(a.Species))
	}
	out, err := NewSnapshot(p, l, snap.Cell)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return out
}
