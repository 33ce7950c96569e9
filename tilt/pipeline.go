package tilt

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Analyzer runs the shell search, validation and both rotation estimators
// over whole snapshots. The zero value is not usable; Central and Ligand
// must be set.
type Analyzer struct {
	Central  string
	Ligand   string
	Vertical Axis
	Euler    EulerConvention
	Workers  int // <= 0 means GOMAXPROCS
	Logger   *zap.Logger
}

// AngleResult is the ordered output of an angle-averaging run.
type AngleResult struct {
	Records []AngleRecord
	Stats   Stats
}

// KabschResult is the ordered output of a Kabsch run.
type KabschResult struct {
	Records []KabschRecord
	Stats   Stats
}

func (a *Analyzer) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *Analyzer) workers() int {
	if a.Workers > 0 {
		return a.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (a *Analyzer) species(snap *Snapshot) (central, ligand SpeciesID, err error) {
	if central, err = snap.Species.Lookup(a.Central); err != nil {
		return 0, 0, fmt.Errorf("central species: %w", err)
	}
	if ligand, err = snap.Species.Lookup(a.Ligand); err != nil {
		return 0, 0, fmt.Errorf("ligand species: %w", err)
	}
	return central, ligand, nil
}

func (a *Analyzer) shells(snap *Snapshot, cutoff float64) ([]NeighborShell, error) {
	central, ligand, err := a.species(snap)
	if err != nil {
		return nil, err
	}
	return BuildShells(snap, cutoff, central, ligand)
}

// AngleRecords returns the angle-averaging records of snap as a lazy
// sequence in ascending center order. Rejected and degenerate centers are
// skipped. The sequence can be iterated more than once.
func (a *Analyzer) AngleRecords(snap *Snapshot, cutoff float64) (iter.Seq[AngleRecord], error) {
	shells, err := a.shells(snap, cutoff)
	if err != nil {
		return nil, err
	}
	est := AngleEstimator{Vertical: a.Vertical}
	return func(yield func(AngleRecord) bool) {
		for _, sh := range shells {
			oc, ok := Validate(sh)
			if !ok {
				continue
			}
			rec, err := est.Estimate(snap, oc)
			if err != nil {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}, nil
}

// RunAngle computes the in-plane rotation of every octahedral center of
// snap. Input errors abort the run; per-center problems are counted in
// Stats and the center is left out.
func (a *Analyzer) RunAngle(ctx context.Context, snap *Snapshot, cutoff float64) (*AngleResult, error) {
	shells, err := a.shells(snap, cutoff)
	if err != nil {
		return nil, err
	}

	var stats Stats
	clusters := make([]OctahedralCluster, 0, len(shells))
	for _, sh := range shells {
		if oc, ok := stats.tally(sh); ok {
			clusters = append(clusters, oc)
		} else {
			a.logger().Debug("center rejected",
				zap.Int("center", sh.Center), zap.Int("ligands", len(sh.Members)))
		}
	}

	est := AngleEstimator{Vertical: a.Vertical}
	records, errs, err := parallelMap(ctx, a.workers(), clusters, func(oc OctahedralCluster) (AngleRecord, error) {
		return est.Estimate(snap, oc)
	})
	if err != nil {
		return nil, err
	}

	res := &AngleResult{Records: make([]AngleRecord, 0, len(records))}
	for i, rec := range records {
		if errs[i] != nil {
			if !errors.Is(errs[i], ErrDegenerateGeometry) {
				return nil, errs[i]
			}
			stats.Degenerate++
			a.logger().Debug("center skipped", zap.Error(errs[i]))
			continue
		}
		res.Records = append(res.Records, rec)
	}
	res.Stats = stats
	return res, nil
}

// RunKabsch computes the rigid rotation of every octahedron between ref and
// def. The snapshots must list the same atoms in the same order. Centers are
// taken from ref; a center that is not also octahedral in def is skipped.
func (a *Analyzer) RunKabsch(ctx context.Context, ref, def *Snapshot, cutoff float64) (*KabschResult, error) {
	if ref.Len() != def.Len() {
		return nil, fmt.Errorf("%w: reference has %d atoms, deformed has %d",
			ErrAtomCountMismatch, ref.Len(), def.Len())
	}
	for i := range ref.Atoms {
		rl := ref.Species.Label(ref.Atoms[i].Species)
		dl := def.Species.Label(def.Atoms[i].Species)
		if rl != dl {
			return nil, fmt.Errorf("%w: atom %d is %s in reference but %s in deformed",
				ErrMalformedInput, i, rl, dl)
		}
	}

	refShells, err := a.shells(ref, cutoff)
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	defShells, err := a.shells(def, cutoff)
	if err != nil {
		return nil, fmt.Errorf("deformed: %w", err)
	}
	validInDef := make(map[int]bool, len(defShells))
	for _, sh := range defShells {
		if _, ok := Validate(sh); ok {
			validInDef[sh.Center] = true
		}
	}

	var stats Stats
	clusters := make([]OctahedralCluster, 0, len(refShells))
	for _, sh := range refShells {
		oc, ok := stats.tally(sh)
		if !ok {
			a.logger().Debug("center rejected",
				zap.Int("center", sh.Center), zap.Int("ligands", len(sh.Members)))
			continue
		}
		if !validInDef[oc.Center] {
			stats.Unmatched++
			a.logger().Debug("center not octahedral in deformed snapshot", zap.Int("center", oc.Center))
			continue
		}
		clusters = append(clusters, oc)
	}

	est := KabschEstimator{Convention: a.Euler}
	records, errs, err := parallelMap(ctx, a.workers(), clusters, func(oc OctahedralCluster) (KabschRecord, error) {
		return est.Estimate(ref, def, oc)
	})
	if err != nil {
		return nil, err
	}

	res := &KabschResult{Records: make([]KabschRecord, 0, len(records))}
	for i, rec := range records {
		if errs[i] != nil {
			if !errors.Is(errs[i], ErrDegenerateGeometry) {
				return nil, errs[i]
			}
			stats.Degenerate++
			a.logger().Debug("center skipped", zap.Error(errs[i]))
			continue
		}
		res.Records = append(res.Records, rec)
	}
	res.Stats = stats
	return res, nil
}

// parallelMap applies fn to every item with at most workers goroutines.
// Results and per-item errors are returned in input order; the final error
// is set only when ctx is cancelled.
func parallelMap[T, R any](ctx context.Context, workers int, items []T, fn func(T) (R, error)) ([]R, []error, error) {
	out := make([]R, len(items))
	errs := make([]error, len(items))
	if workers <= 1 {
		for i, it := range items {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			out[i], errs[i] = fn(it)
		}
		return out, errs, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i], errs[i] = fn(items[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return out, errs, nil
}
