package tilt

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r3"
)

// SpeciesID is the index of a species label in a snapshot's SpeciesTable.
type SpeciesID int

// AtomSite is a single atom of a snapshot. Index is stable and 0-based.
type AtomSite struct {
	Index    int
	Position r3.Vec
	Species  SpeciesID
}

// Cell holds the edge lengths of an orthorhombic simulation cell.
type Cell struct {
	Lengths r3.Vec
}

// NeighborShell lists the ligand atoms found within the cutoff of a center.
// Members are sorted ascending and never contain Center.
type NeighborShell struct {
	Center  int
	Members []int
}

// OctahedralCluster is a center with exactly six ligands.
type OctahedralCluster struct {
	Center  int
	Ligands [6]int
}

// AngleRecord is the in-plane rotation of one octahedron (angle averaging).
type AngleRecord struct {
	Center           int     `json:"center"`
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	Z                float64 `json:"z"`
	ZRounded         float64 `json:"zRounded"`
	RotationAngleDeg float64 `json:"rotationAngleDeg"`
}

// KabschRecord is the rigid rotation of one octahedron between a reference
// and a deformed snapshot, as Euler angles in degrees.
type KabschRecord struct {
	Center  int     `json:"center"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	RotXDeg float64 `json:"rotXDeg"`
	RotYDeg float64 `json:"rotYDeg"`
	RotZDeg float64 `json:"rotZDeg"`
}

// Stats counts how the candidate centers of one run were handled.
type Stats struct {
	Centers          int `json:"centers"`
	Accepted         int `json:"accepted"`
	Undercoordinated int `json:"undercoordinated"`
	Overcoordinated  int `json:"overcoordinated"`
	Degenerate       int `json:"degenerate"`
	Unmatched        int `json:"unmatched"`
}

// Axis names a Cartesian axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// ParseAxis accepts "x", "y" or "z" (case-insensitive).
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "z":
		return AxisZ, nil
	}
	return AxisZ, fmt.Errorf("unknown axis %q (want x, y or z)", s)
}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	default:
		return "z"
	}
}

// Component returns the coordinate of v along a.
func (a Axis) Component(v r3.Vec) float64 {
	switch a {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	default:
		return v.Z
	}
}

// Project drops the component along a and returns the remaining two
// coordinates in cyclic order (y,z for x; z,x for y; x,y for z).
func (a Axis) Project(v r3.Vec) orb.Point {
	switch a {
	case AxisX:
		return orb.Point{v.Y, v.Z}
	case AxisY:
		return orb.Point{v.Z, v.X}
	default:
		return orb.Point{v.X, v.Y}
	}
}
