package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kwv/octatilt/tilt"
)

// ResultPublisher receives the results of a finished run.
type ResultPublisher interface {
	PublishRun(summary tilt.RunSummary, records any) error
	Close()
}

// App encapsulates the application state and dependencies
type App struct {
	Config    *tilt.Config
	Logger    *zap.Logger
	Publisher ResultPublisher

	// Connect opens the MQTT publisher when a broker is configured.
	Connect func(cfg tilt.MQTTConfig, logger *zap.Logger) (ResultPublisher, error)

	opts AppOptions
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{Connect: connectMQTT}
}

func connectMQTT(cfg tilt.MQTTConfig, logger *zap.Logger) (ResultPublisher, error) {
	p, err := tilt.ConnectPublisher(cfg, logger)
	if err != nil || p == nil {
		return nil, err
	}
	return p, nil
}

// ApplyOptions stores the command-line options for the next run.
func (a *App) ApplyOptions(opts AppOptions) {
	a.opts = opts
}

// Close releases the publisher connection, if any.
func (a *App) Close() {
	if a.Publisher != nil {
		a.Publisher.Close()
		a.Publisher = nil
	}
}

// setup builds the logger and the effective configuration: defaults, then
// the config file, then command-line overrides.
func (a *App) setup() error {
	if a.Logger == nil {
		logger, err := newLogger(a.opts.Verbose)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		a.Logger = logger
	}

	if a.Config == nil {
		cfg, err := tilt.LoadConfig(a.opts.ConfigFile, a.opts.ConfigRequired)
		if err != nil {
			return err
		}
		a.Config = cfg
	}

	cfg := a.Config
	o := a.opts
	if o.Central != "" {
		cfg.Central = o.Central
	}
	if o.Ligand != "" {
		cfg.Ligand = o.Ligand
	}
	if o.VerticalAxis != "" {
		cfg.VerticalAxis = o.VerticalAxis
	}
	if o.Workers > 0 {
		cfg.Workers = o.Workers
	}
	if o.Euler != "" {
		cfg.Kabsch.Euler = o.Euler
	}
	if o.OutputDir != "" {
		cfg.Heatmap.OutputDir = o.OutputDir
	}
	if o.Format != "" {
		cfg.Heatmap.Format = o.Format
	}
	if o.BinWidth > 0 {
		cfg.Heatmap.BinWidth = o.BinWidth
	}
	if o.Tolerance != nil {
		cfg.Heatmap.LayerTolerance = *o.Tolerance
	}
	return nil
}

// method applies the method-specific overrides and validates the result.
func (a *App) method(m *tilt.MethodConfig) error {
	if a.opts.Cutoff != 0 {
		m.Cutoff = a.opts.Cutoff
	}
	if a.opts.Output != "" {
		m.Output = a.opts.Output
	}
	return a.Config.Validate()
}

func (a *App) analyzer() (*tilt.Analyzer, error) {
	an, err := a.Config.Analyzer()
	if err != nil {
		return nil, err
	}
	an.Logger = a.Logger
	return an, nil
}

// RunAngle runs the single-snapshot angle-averaging method and writes its
// table.
func (a *App) RunAngle(ctx context.Context) error {
	if err := a.setup(); err != nil {
		return err
	}
	if err := a.method(&a.Config.Angle); err != nil {
		return err
	}
	an, err := a.analyzer()
	if err != nil {
		return err
	}

	start := time.Now()
	snap, err := tilt.LoadPOSCAR(a.opts.Input)
	if err != nil {
		return err
	}
	a.Logger.Info("structure loaded", zap.String("path", a.opts.Input), zap.Int("atoms", snap.Len()))

	res, err := an.RunAngle(ctx, snap, a.Config.Angle.Cutoff)
	if err != nil {
		return fmt.Errorf("angle analysis: %w", err)
	}

	out := a.Config.Angle.Output
	err = tilt.WriteFileAtomic(out, func(w io.Writer) error {
		return tilt.WriteAngleTable(w, a.Config.Central, res.Records)
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	a.logRun("angle", out, len(res.Records), res.Stats, time.Since(start))

	if a.opts.Heatmap {
		if err := a.renderHeatmaps(res.Records); err != nil {
			return err
		}
	}

	return a.publish(tilt.RunSummary{
		Method: "angle",
		Inputs: []string{a.opts.Input},
		Output: out,
		Stats:  res.Stats,
	}, res.Records)
}

// RunKabsch runs the reference/deformed Kabsch method and writes its table.
func (a *App) RunKabsch(ctx context.Context) error {
	if err := a.setup(); err != nil {
		return err
	}
	if err := a.method(&a.Config.Kabsch); err != nil {
		return err
	}
	an, err := a.analyzer()
	if err != nil {
		return err
	}

	start := time.Now()
	ref, err := tilt.LoadPOSCAR(a.opts.Reference)
	if err != nil {
		return err
	}
	def, err := tilt.LoadPOSCAR(a.opts.Deformed)
	if err != nil {
		return err
	}
	a.Logger.Info("structures loaded",
		zap.String("reference", a.opts.Reference), zap.String("deformed", a.opts.Deformed),
		zap.Int("atoms", ref.Len()), zap.Stringer("euler", an.Euler))

	res, err := an.RunKabsch(ctx, ref, def, a.Config.Kabsch.Cutoff)
	if err != nil {
		return fmt.Errorf("kabsch analysis: %w", err)
	}

	out := a.Config.Kabsch.Output
	err = tilt.WriteFileAtomic(out, func(w io.Writer) error {
		return tilt.WriteKabschTable(w, a.Config.Central, res.Records)
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	a.logRun("kabsch", out, len(res.Records), res.Stats, time.Since(start))

	return a.publish(tilt.RunSummary{
		Method: "kabsch",
		Inputs: []string{a.opts.Reference, a.opts.Deformed},
		Output: out,
		Stats:  res.Stats,
	}, res.Records)
}

// RunHeatmap renders per-layer heatmaps from an existing angle table.
func (a *App) RunHeatmap(ctx context.Context) error {
	if err := a.setup(); err != nil {
		return err
	}
	if err := a.Config.Validate(); err != nil {
		return err
	}

	table := a.opts.Table
	if table == "" {
		table = a.Config.Angle.Output
	}
	f, err := os.Open(table)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("table not found: %s", table)
		}
		return fmt.Errorf("opening table: %w", err)
	}
	defer f.Close()

	records, err := tilt.ReadAngleTable(f)
	if err != nil {
		return fmt.Errorf("%s: %w", table, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.renderHeatmaps(records)
}

func (a *App) renderHeatmaps(records []tilt.AngleRecord) error {
	hc := a.Config.Heatmap
	format, err := tilt.ParseImageFormat(hc.Format)
	if err != nil {
		return err
	}
	grids := tilt.BuildLayerGrids(records, hc.BinWidth, hc.LayerTolerance)
	if len(grids) == 0 {
		a.Logger.Warn("no records to plot")
		return nil
	}

	r := tilt.NewHeatmapRenderer(hc.CellSize)
	r.Logger = a.Logger
	paths, err := r.WriteLayers(hc.OutputDir, grids, format)
	if err != nil {
		return err
	}
	a.Logger.Info("heatmaps saved",
		zap.String("dir", hc.OutputDir), zap.Int("layers", len(grids)), zap.Int("files", len(paths)))
	return nil
}

func (a *App) logRun(method, output string, records int, s tilt.Stats, elapsed time.Duration) {
	a.Logger.Info("run complete",
		zap.String("method", method),
		zap.String("output", output),
		zap.Int("records", records),
		zap.Int("centers", s.Centers),
		zap.Int("accepted", s.Accepted),
		zap.Int("undercoordinated", s.Undercoordinated),
		zap.Int("overcoordinated", s.Overcoordinated),
		zap.Int("degenerate", s.Degenerate),
		zap.Int("unmatched", s.Unmatched),
		zap.Duration("elapsed", elapsed),
	)
}

// publish sends the run to MQTT when a broker is configured. The table is
// already on disk, so a failure here only affects the exit status.
func (a *App) publish(summary tilt.RunSummary, records any) error {
	if a.Publisher == nil && a.Connect != nil {
		p, err := a.Connect(a.Config.MQTT, a.Logger)
		if err != nil {
			a.Logger.Warn("MQTT connection failed", zap.Error(err))
			return fmt.Errorf("publishing results: %w", err)
		}
		a.Publisher = p
	}
	if a.Publisher == nil {
		return nil
	}
	if err := a.Publisher.PublishRun(summary, records); err != nil {
		a.Logger.Warn("MQTT publish failed", zap.Error(err))
		return fmt.Errorf("publishing results: %w", err)
	}
	return nil
}
