package tilt

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// SpeciesTable maps species labels to ids. It is resolved once when a
// snapshot is built; atoms carry only the id.
type SpeciesTable struct {
	labels []string
	ids    map[string]SpeciesID
}

// NewSpeciesTable assigns ids to labels in order. Duplicate labels share
// the id of their first occurrence.
func NewSpeciesTable(labels ...string) SpeciesTable {
	t := SpeciesTable{ids: make(map[string]SpeciesID, len(labels))}
	for _, l := range labels {
		t.add(l)
	}
	return t
}

func (t *SpeciesTable) add(label string) SpeciesID {
	if id, ok := t.ids[label]; ok {
		return id
	}
	if t.ids == nil {
		t.ids = make(map[string]SpeciesID)
	}
	id := SpeciesID(len(t.labels))
	t.labels = append(t.labels, label)
	t.ids[label] = id
	return id
}

// Lookup resolves a label. Unknown labels are a fatal input error.
func (t SpeciesTable) Lookup(label string) (SpeciesID, error) {
	id, ok := t.ids[label]
	if !ok {
		return 0, fmt.Errorf("%w: %q (have %v)", ErrMissingSpecies, label, t.labels)
	}
	return id, nil
}

// Label returns the label for id, or "" if id is out of range.
func (t SpeciesTable) Label(id SpeciesID) string {
	if int(id) < 0 || int(id) >= len(t.labels) {
		return ""
	}
	return t.labels[id]
}

// Labels returns the labels in id order.
func (t SpeciesTable) Labels() []string {
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// Snapshot is one immutable atomic configuration.
type Snapshot struct {
	Atoms   []AtomSite
	Cell    Cell
	Species SpeciesTable
}

// NewSnapshot builds a snapshot from parallel position/label slices.
func NewSnapshot(positions []r3.Vec, labels []string, cell Cell) (*Snapshot, error) {
	if len(positions) != len(labels) {
		return nil, fmt.Errorf("%w: %d positions but %d species labels",
			ErrMalformedInput, len(positions), len(labels))
	}
	s := &Snapshot{
		Atoms: make([]AtomSite, len(positions)),
		Cell:  cell,
	}
	for i, p := range positions {
		if labels[i] == "" {
			return nil, fmt.Errorf("%w: atom %d has no species label", ErrMalformedInput, i)
		}
		s.Atoms[i] = AtomSite{
			Index:    i,
			Position: p,
			Species:  s.Species.add(labels[i]),
		}
	}
	return s, nil
}

// Len returns the number of atoms.
func (s *Snapshot) Len() int {
	return len(s.Atoms)
}

// Position returns the position of atom i.
func (s *Snapshot) Position(i int) r3.Vec {
	return s.Atoms[i].Position
}

// Positions returns the positions of the given atom indices.
func (s *Snapshot) Positions(indices []int) []r3.Vec {
	out := make([]r3.Vec, len(indices))
	for k, i := range indices {
		out[k] = s.Atoms[i].Position
	}
	return out
}

// Count returns the number of atoms of species id.
func (s *Snapshot) Count(id SpeciesID) int {
	n := 0
	for _, a := range s.Atoms {
		if a.Species == id {
			n++
		}
	}
	return n
}
