package tilt

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Below this many atoms the all-pairs scan is cheaper than binning.
const minCellListAtoms = 64

// CellList is a periodic cell-list index over the atoms of one snapshot.
// The cell is divided into bins whose edges are at least the cutoff, so all
// neighbors of an atom lie in the 27 bins around its own. An axis with only
// two bins visits each of them once. Snapshots with fewer than
// minCellListAtoms atoms fall back to an O(N²) all-pairs scan.
//
// A CellList is read-only after construction and safe for concurrent use.
type CellList struct {
	snap     *Snapshot
	cutoff   float64
	cutoffSq float64
	dims     [3]int
	edge     [3]float64
	bins     [][]int
	binOf    [][3]int
	allPairs bool
}

// NewCellList bins the atoms of snap for neighbor lookups within cutoff.
func NewCellList(snap *Snapshot, cutoff float64) (*CellList, error) {
	if !(cutoff > 0) || math.IsInf(cutoff, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidCutoff, cutoff)
	}
	lengths := [3]float64{snap.Cell.Lengths.X, snap.Cell.Lengths.Y, snap.Cell.Lengths.Z}
	for k, l := range lengths {
		if !(l > 0) {
			return nil, fmt.Errorf("%w: cell length %d is %v", ErrMalformedInput, k, l)
		}
		if cutoff >= l/2 {
			return nil, fmt.Errorf("%w: cutoff %.4f, cell length %.4f on axis %s",
				ErrCutoffTooLarge, cutoff, l, Axis(k))
		}
	}

	c := &CellList{
		snap:     snap,
		cutoff:   cutoff,
		cutoffSq: cutoff * cutoff,
	}
	for k, l := range lengths {
		// cutoff < l/2, so every axis has at least two bins
		c.dims[k] = int(math.Floor(l / cutoff))
		c.edge[k] = l / float64(c.dims[k])
	}
	if snap.Len() < minCellListAtoms {
		c.allPairs = true
		return c, nil
	}

	c.bins = make([][]int, c.dims[0]*c.dims[1]*c.dims[2])
	c.binOf = make([][3]int, snap.Len())
	for i, a := range snap.Atoms {
		c.binOf[i] = c.binCoords(a.Position)
		f := c.flat(c.binOf[i])
		c.bins[f] = append(c.bins[f], i)
	}
	return c, nil
}

// AllPairs reports whether lookups use the all-pairs fallback.
func (c *CellList) AllPairs() bool {
	return c.allPairs
}

func (c *CellList) binCoords(p r3.Vec) [3]int {
	v := [3]float64{p.X, p.Y, p.Z}
	l := [3]float64{c.snap.Cell.Lengths.X, c.snap.Cell.Lengths.Y, c.snap.Cell.Lengths.Z}
	var b [3]int
	for k := range v {
		f := v[k] - math.Floor(v[k]/l[k])*l[k]
		idx := int(f / c.edge[k])
		if idx >= c.dims[k] {
			idx = c.dims[k] - 1
		}
		if idx < 0 {
			idx = 0
		}
		b[k] = idx
	}
	return b
}

func (c *CellList) flat(b [3]int) int {
	return (b[0]*c.dims[1]+b[1])*c.dims[2] + b[2]
}

// Neighbors returns the indices of atoms within the cutoff of atom i that
// satisfy keep, sorted ascending. Atom i itself is never returned.
func (c *CellList) Neighbors(i int, keep func(AtomSite) bool) []int {
	var out []int
	visit := func(j int) {
		if j == i {
			return
		}
		a := c.snap.Atoms[j]
		if keep != nil && !keep(a) {
			return
		}
		d := MinimumImage(r3.Sub(a.Position, c.snap.Atoms[i].Position), c.snap.Cell)
		if r3.Dot(d, d) <= c.cutoffSq {
			out = append(out, j)
		}
	}

	if c.allPairs {
		for j := range c.snap.Atoms {
			visit(j)
		}
		return out
	}

	home := c.binOf[i]
	xs := c.stencil(home, 0)
	ys := c.stencil(home, 1)
	zs := c.stencil(home, 2)
	for _, bx := range xs {
		for _, by := range ys {
			for _, bz := range zs {
				for _, j := range c.bins[c.flat([3]int{bx, by, bz})] {
					visit(j)
				}
			}
		}
	}
	sort.Ints(out)
	return out
}

// stencil returns the distinct bins along axis k adjacent to home,
// including home itself. With two bins the -1 and +1 neighbors coincide.
func (c *CellList) stencil(home [3]int, k int) []int {
	bins := make([]int, 0, 3)
	for d := -1; d <= 1; d++ {
		b := mod(home[k]+d, c.dims[k])
		if !slices.Contains(bins, b) {
			bins = append(bins, b)
		}
	}
	return bins
}

func mod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}

// BuildShells returns one NeighborShell per atom of the central species, in
// ascending center order, listing the ligand-species atoms within cutoff.
func BuildShells(snap *Snapshot, cutoff float64, central, ligand SpeciesID) ([]NeighborShell, error) {
	cl, err := NewCellList(snap, cutoff)
	if err != nil {
		return nil, err
	}
	return cl.Shells(central, ligand), nil
}

// Shells is BuildShells over an existing index.
func (c *CellList) Shells(central, ligand SpeciesID) []NeighborShell {
	isLigand := func(a AtomSite) bool { return a.Species == ligand }
	var shells []NeighborShell
	for _, a := range c.snap.Atoms {
		if a.Species != central {
			continue
		}
		shells = append(shells, NeighborShell{
			Center:  a.Index,
			Members: c.Neighbors(a.Index, isLigand),
		})
	}
	return shells
}
