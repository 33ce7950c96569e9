package tilt

// Coordination is the number of ligands an octahedral center must have.
const Coordination = 6

// Validate accepts a shell as an octahedron iff it has exactly six members.
// Under- and over-coordinated centers are expected at surfaces and defects
// and are rejected without error.
func Validate(shell NeighborShell) (OctahedralCluster, bool) {
	if len(shell.Members) != Coordination {
		return OctahedralCluster{}, false
	}
	oc := OctahedralCluster{Center: shell.Center}
	copy(oc.Ligands[:], shell.Members)
	return oc, true
}

// tally records a validation outcome.
func (s *Stats) tally(shell NeighborShell) (OctahedralCluster, bool) {
	s.Centers++
	oc, ok := Validate(shell)
	switch {
	case ok:
		s.Accepted++
	case len(shell.Members) < Coordination:
		s.Undercoordinated++
	default:
		s.Overcoordinated++
	}
	return oc, ok
}
