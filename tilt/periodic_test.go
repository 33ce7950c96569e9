package tilt

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestMinimumImage(t *testing.T) {
	cell := Cell{Lengths: r3.Vec{X: 10, Y: 20, Z: 5}}
	tests := []struct {
		name string
		in   r3.Vec
		want r3.Vec
	}{
		{"inside", r3.Vec{X: 1, Y: -2, Z: 0.5}, r3.Vec{X: 1, Y: -2, Z: 0.5}},
		{"across boundary", r3.Vec{X: 9, Y: -19, Z: 4}, r3.Vec{X: -1, Y: 1, Z: -1}},
		{"several cells", r3.Vec{X: 31, Y: 41, Z: -12}, r3.Vec{X: 1, Y: 1, Z: -2}},
		{"half cell goes negative", r3.Vec{X: 5, Y: -10, Z: 2.5}, r3.Vec{X: -5, Y: -10, Z: -2.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MinimumImage(tt.in, cell)
			if r3.Norm(r3.Sub(got, tt.want)) > 1e-12 {
				t.Errorf("MinimumImage(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMinimumImageRange(t *testing.T) {
	cell := Cell{Lengths: r3.Vec{X: 7.3, Y: 11.1, Z: 3.9}}
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 1000; i++ {
		d := r3.Vec{
			X: (rng.Float64() - 0.5) * 100,
			Y: (rng.Float64() - 0.5) * 100,
			Z: (rng.Float64() - 0.5) * 100,
		}
		w := MinimumImage(d, cell)
		for _, c := range []struct{ v, l, orig float64 }{
			{w.X, cell.Lengths.X, d.X},
			{w.Y, cell.Lengths.Y, d.Y},
			{w.Z, cell.Lengths.Z, d.Z},
		} {
			if c.v < -c.l/2 || c.v >= c.l/2 {
				t.Fatalf("component %v of %v outside [-L/2, L/2) for L=%v", c.v, d, c.l)
			}
			k := (c.orig - c.v) / c.l
			if math.Abs(k-math.Round(k)) > 1e-9 {
				t.Fatalf("%v is not an image of %v", c.v, c.orig)
			}
		}
	}
}

func TestMinimumImageIgnoresNonPositiveLength(t *testing.T) {
	got := MinimumImage(r3.Vec{X: 50, Y: 50, Z: 50}, Cell{Lengths: r3.Vec{X: 0, Y: -1, Z: 10}})
	if got.X != 50 || got.Y != 50 || got.Z != 0 {
		t.Errorf("got %v", got)
	}
}

func TestCentroid(t *testing.T) {
	if c := Centroid(nil); c != (r3.Vec{}) {
		t.Errorf("Centroid(nil) = %v", c)
	}
	c := Centroid(octahedronLigands(2))
	if r3.Norm(c) > 1e-15 {
		t.Errorf("Centroid of octahedron = %v, want origin", c)
	}
	c = Centroid([]r3.Vec{{X: 1, Y: 2, Z: 3}, {X: 3, Y: 4, Z: 5}})
	if c != (r3.Vec{X: 2, Y: 3, Z: 4}) {
		t.Errorf("Centroid = %v", c)
	}
}

func TestRelative(t *testing.T) {
	cell := Cell{Lengths: r3.Vec{X: 10, Y: 10, Z: 10}}
	got := Relative(r3.Vec{X: 0.5}, []r3.Vec{{X: 8.5}, {X: 2.5}}, cell)
	if math.Abs(got[0].X+2) > 1e-12 || math.Abs(got[1].X-2) > 1e-12 {
		t.Errorf("Relative = %v", got)
	}
}
