package tilt

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Off-diagonal lattice components larger than this fraction of the longest
// lattice vector make a cell non-orthorhombic.
const orthorhombicTolerance = 1e-6

// LoadPOSCAR reads a VASP 5 POSCAR/CONTCAR file.
func LoadPOSCAR(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("structure file not found: %s", path)
		}
		return nil, fmt.Errorf("opening structure file: %w", err)
	}
	defer f.Close()

	snap, err := ReadPOSCAR(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// ReadPOSCAR parses a VASP 5 POSCAR. The species-name line is required and
// the lattice must be orthorhombic. Direct and Cartesian coordinates and
// the Selective dynamics block are supported; a negative scale factor is
// taken as the cell volume.
func ReadPOSCAR(r io.Reader) (*Snapshot, error) {
	p := &poscarScanner{sc: bufio.NewScanner(r)}

	p.next() // comment
	scale, err := p.floats(1)
	if err != nil {
		return nil, fmt.Errorf("scale factor: %w", err)
	}

	var lattice [3]r3.Vec
	for i := range lattice {
		v, err := p.floats(3)
		if err != nil {
			return nil, fmt.Errorf("lattice vector %d: %w", i+1, err)
		}
		lattice[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}

	s := scale[0]
	if s < 0 {
		vol := math.Abs(r3.Dot(lattice[0], r3.Cross(lattice[1], lattice[2])))
		if vol == 0 {
			return nil, fmt.Errorf("%w: zero-volume lattice", ErrMalformedInput)
		}
		s = math.Cbrt(-s / vol)
	}
	if s == 0 {
		return nil, fmt.Errorf("%w: zero scale factor", ErrMalformedInput)
	}
	for i := range lattice {
		lattice[i] = r3.Scale(s, lattice[i])
	}
	cell, err := orthorhombicCell(lattice)
	if err != nil {
		return nil, err
	}

	names := strings.Fields(p.next())
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: missing species line", ErrMalformedInput)
	}
	if _, err := strconv.Atoi(names[0]); err == nil {
		return nil, fmt.Errorf("%w: species names line is required (VASP 5 format)", ErrMalformedInput)
	}
	countFields := strings.Fields(p.next())
	if len(countFields) != len(names) {
		return nil, fmt.Errorf("%w: %d species names but %d counts",
			ErrMalformedInput, len(names), len(countFields))
	}
	var labels []string
	for i, cf := range countFields {
		n, err := strconv.Atoi(cf)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad atom count %q", ErrMalformedInput, cf)
		}
		for k := 0; k < n; k++ {
			labels = append(labels, names[i])
		}
	}

	mode := strings.TrimSpace(p.next())
	if strings.HasPrefix(strings.ToLower(mode), "s") {
		mode = strings.TrimSpace(p.next())
	}
	var direct bool
	switch strings.ToLower(firstChar(mode)) {
	case "d":
		direct = true
	case "c", "k":
	default:
		return nil, fmt.Errorf("%w: unknown coordinate mode %q", ErrMalformedInput, mode)
	}

	positions := make([]r3.Vec, len(labels))
	for i := range positions {
		v, err := p.floats(3)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i+1, err)
		}
		pos := r3.Vec{X: v[0], Y: v[1], Z: v[2]}
		if direct {
			pos = r3.Vec{
				X: pos.X * cell.Lengths.X,
				Y: pos.Y * cell.Lengths.Y,
				Z: pos.Z * cell.Lengths.Z,
			}
		} else {
			pos = r3.Scale(s, pos)
		}
		positions[i] = pos
	}
	if err := p.sc.Err(); err != nil {
		return nil, fmt.Errorf("reading POSCAR: %w", err)
	}

	return NewSnapshot(positions, labels, cell)
}

func orthorhombicCell(lattice [3]r3.Vec) (Cell, error) {
	longest := math.Max(r3.Norm(lattice[0]), math.Max(r3.Norm(lattice[1]), r3.Norm(lattice[2])))
	tol := orthorhombicTolerance * longest
	off := []float64{
		lattice[0].Y, lattice[0].Z,
		lattice[1].X, lattice[1].Z,
		lattice[2].X, lattice[2].Y,
	}
	for _, v := range off {
		if math.Abs(v) > tol {
			return Cell{}, fmt.Errorf("%w: lattice %v", ErrNonOrthorhombic, lattice)
		}
	}
	c := Cell{Lengths: r3.Vec{X: lattice[0].X, Y: lattice[1].Y, Z: lattice[2].Z}}
	if c.Lengths.X <= 0 || c.Lengths.Y <= 0 || c.Lengths.Z <= 0 {
		return Cell{}, fmt.Errorf("%w: non-positive cell length %v", ErrMalformedInput, c.Lengths)
	}
	return c, nil
}

func firstChar(s string) string {
	if s == "" {
		return ""
	}
	return s[:1]
}

type poscarScanner struct {
	sc   *bufio.Scanner
	line int
}

// next returns the next line, or "" at end of input.
func (p *poscarScanner) next() string {
	if !p.sc.Scan() {
		return ""
	}
	p.line++
	return p.sc.Text()
}

// floats parses the first n fields of the next line.
func (p *poscarScanner) floats(n int) ([]float64, error) {
	fields := strings.Fields(p.next())
	if len(fields) < n {
		return nil, fmt.Errorf("%w: line %d: want %d numbers, got %d fields",
			ErrMalformedInput, p.line, n, len(fields))
	}
	out := make([]float64, n)
	for i := range out {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedInput, p.line, err)
		}
		out[i] = v
	}
	return out, nil
}
