package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time via -ldflags
var Version = "dev"

const defaultConfigFile = "octatilt.yaml"

// AppOptions carries command-line values into the App. Zero values mean
// "not given on the command line" and leave the config file value alone.
type AppOptions struct {
	ConfigFile     string
	ConfigRequired bool
	Central        string
	Ligand         string
	VerticalAxis   string
	Workers        int
	Verbose        bool

	// angle and kabsch
	Input     string
	Reference string
	Deformed  string
	Output    string
	Cutoff    float64
	Euler     string
	Heatmap   bool

	// heatmap
	Table     string
	OutputDir string
	Format    string
	BinWidth  float64
	Tolerance *float64
}

// Application is the set of operations the CLI dispatches to.
type Application interface {
	ApplyOptions(opts AppOptions)
	RunAngle(ctx context.Context) error
	RunKabsch(ctx context.Context) error
	RunHeatmap(ctx context.Context) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp()
	err := run(ctx, os.Args[1:], os.Stdout, app)
	app.Close()
	if err != nil {
		if app.Logger != nil {
			app.Logger.Error("run failed", zap.Error(err))
			_ = app.Logger.Sync()
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
	if app.Logger != nil {
		_ = app.Logger.Sync()
	}
}

// run parses args and dispatches to app. Output and usage go to out.
func run(ctx context.Context, args []string, out io.Writer, app Application) error {
	root := newRootCmd(app)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	return root.ExecuteContext(ctx)
}

func newRootCmd(app Application) *cobra.Command {
	var common AppOptions

	root := &cobra.Command{
		Use:   "octatilt",
		Short: "Octahedral rotation analysis for perovskite-like structures",
		Long: `octatilt measures how the ligand octahedra around each central atom of a
periodic structure are rotated, either from a single snapshot (angle) or
between a reference and a deformed snapshot (kabsch), and renders per-layer
heatmaps of the result.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&common.ConfigFile, "config", defaultConfigFile, "Path to configuration file")
	pf.StringVar(&common.Central, "central", "", "Central species label (default from config: Si)")
	pf.StringVar(&common.Ligand, "ligand", "", "Ligand species label (default from config: O)")
	pf.StringVar(&common.VerticalAxis, "vertical-axis", "", "Layer-normal axis for the angle method: x, y or z")
	pf.IntVar(&common.Workers, "workers", 0, "Number of parallel workers (0 = config or GOMAXPROCS)")
	pf.BoolVarP(&common.Verbose, "verbose", "v", false, "Enable debug logging")

	// commonOptions copies the persistent flags into a fresh AppOptions.
	commonOptions := func(cmd *cobra.Command) AppOptions {
		opts := common
		opts.ConfigRequired = cmd.Flags().Changed("config")
		return opts
	}

	root.AddCommand(newAngleCmd(app, commonOptions))
	root.AddCommand(newKabschCmd(app, commonOptions))
	root.AddCommand(newHeatmapCmd(app, commonOptions))
	return root
}

func newAngleCmd(app Application, common func(*cobra.Command) AppOptions) *cobra.Command {
	var input, output string
	var cutoff float64
	var heatmap bool

	cmd := &cobra.Command{
		Use:   "angle",
		Short: "Average signed in-plane angles of each octahedron in one snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := common(cmd)
			opts.Input = input
			opts.Output = output
			opts.Cutoff = cutoff
			opts.Heatmap = heatmap
			app.ApplyOptions(opts)
			return app.RunAngle(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "POSCAR_fixed", "Structure file (VASP POSCAR)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output table (default from config)")
	cmd.Flags().Float64Var(&cutoff, "cutoff", 0, "Neighbor cutoff in Å (default from config: 2.5)")
	cmd.Flags().BoolVar(&heatmap, "heatmap", false, "Also render per-layer heatmaps of the result")
	return cmd
}

func newKabschCmd(app Application, common func(*cobra.Command) AppOptions) *cobra.Command {
	var reference, deformed, output, euler string
	var cutoff float64

	cmd := &cobra.Command{
		Use:   "kabsch",
		Short: "Rigid rotation of each octahedron between a reference and a deformed snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := common(cmd)
			opts.Reference = reference
			opts.Deformed = deformed
			opts.Output = output
			opts.Cutoff = cutoff
			opts.Euler = euler
			app.ApplyOptions(opts)
			return app.RunKabsch(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&reference, "reference", "r", "POSCAR", "Reference structure file")
	cmd.Flags().StringVarP(&deformed, "deformed", "d", "POSCAR_fixed", "Deformed structure file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output table (default from config)")
	cmd.Flags().Float64Var(&cutoff, "cutoff", 0, "Neighbor cutoff in Å (default from config: 2.2)")
	cmd.Flags().StringVar(&euler, "euler", "", "Euler convention: intrinsic or extrinsic")
	return cmd
}

func newHeatmapCmd(app Application, common func(*cobra.Command) AppOptions) *cobra.Command {
	var table, outputDir, format string
	var binWidth, tolerance float64

	cmd := &cobra.Command{
		Use:   "heatmap",
		Short: "Render per-layer heatmaps from an angle table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := common(cmd)
			opts.Table = table
			opts.OutputDir = outputDir
			opts.Format = format
			opts.BinWidth = binWidth
			if cmd.Flags().Changed("tolerance") {
				opts.Tolerance = &tolerance
			}
			app.ApplyOptions(opts)
			return app.RunHeatmap(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", "", "Angle table to plot (default: angle output from config)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for the images (default from config)")
	cmd.Flags().StringVar(&format, "format", "", "Image format: png, svg or both")
	cmd.Flags().Float64Var(&binWidth, "bin-width", 0, "In-plane bin width in Å")
	cmd.Flags().Float64Var(&tolerance, "tolerance", 0.5, "Layer grouping tolerance along z in Å")
	return cmd
}

// newLogger returns a development logger when verbose, else a production one.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	return cfg.Build()
}
