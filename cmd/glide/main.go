package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/glide/internal/logging"
	"github.com/san-kum/glide/internal/viz"
)

var (
	dataDir     string
	logLevel    string
	logFormat   string
	configFile  string
	duration    float64
	dt          float64
	stepper     string
	saveCSV     bool
	metricsAddr string
	shapeFile   string
	parallel    int

	plotSeries, analyzeSeries string
	plotWidth, plotHeight     int
	pngSeries, pngOut         string
	svgSeries, svgOut         string
	svgWidth, svgHeight       int
	sweepParams               []string
	sweepMetric               string
)

// main registers the glide commands. With no subcommand it opens the
// interactive preset picker.
func main() {
	rootCmd := &cobra.Command{
		Use:           "glide",
		Short:         "2D electrodynamic tether simulator",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive(logging.Noop())
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".glide", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", envOr("LOG_FORMAT", "text"), "log format (text, json)")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a simulation and store its energy log",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	simFlags(runCmd)
	runCmd.Flags().BoolVar(&saveCSV, "csv", true, "write energy.csv with the run")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	runCmd.Flags().StringVar(&shapeFile, "shape", "", "write the final tether shape to this SVG file")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	configCmd := &cobra.Command{
		Use:   "config [preset]",
		Short: "print the resolved configuration as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE:  dumpConfig,
	}
	simFlags(configCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot energy series of a run (latest when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotSeries, "series", "total,mechanical,battery", "comma-separated series")
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width in columns")
	plotCmd.Flags().IntVar(&plotHeight, "height", 12, "plot height in rows")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of an energy series",
		Args:  cobra.MaximumNArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&analyzeSeries, "series", "elastic", "series to analyze")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "write the energy log of a run to stdout as CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "write run metadata and energy log to stdout as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportJSON,
	}

	exportPNGCmd := &cobra.Command{
		Use:   "export-png [run_id]",
		Short: "render energy series to a PNG",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportPNG,
	}
	exportPNGCmd.Flags().StringVarP(&pngOut, "out", "o", "", "output file (default <data>/<run_id>/energy.png)")
	exportPNGCmd.Flags().StringVar(&pngSeries, "series", "", "comma-separated series (default all buckets)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render one energy series to an SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&svgOut, "out", "o", "", "output file (default stdout)")
	exportSVGCmd.Flags().StringVar(&svgSeries, "series", "total", "series to draw")
	exportSVGCmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	exportSVGCmd.Flags().IntVar(&svgHeight, "height", 400, "image height")

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run a simulation with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	simFlags(liveCmd)

	compareCmd := &cobra.Command{
		Use:   "compare [preset] [stepper...]",
		Short: "run one preset under several steppers side by side",
		Args:  cobra.MinimumNArgs(1),
		RunE:  compareSteppers,
	}
	simFlags(compareCmd)
	compareCmd.Flags().IntVar(&parallel, "parallel", 0, "runs in flight (default GOMAXPROCS)")

	sweepCmd := &cobra.Command{
		Use:   "sweep [preset]",
		Short: "grid-search configuration parameters for the lowest metric",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	simFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVarP(&sweepParams, "param", "p", nil, "name=values, values as a,b,c or start:stop:step (repeatable)")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "energy_drift", "metric to minimize")
	sweepCmd.Flags().IntVar(&parallel, "parallel", 0, "trials in flight (default GOMAXPROCS)")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of simulations from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	interactiveCmd := &cobra.Command{
		Use:   "interactive",
		Short: "pick and tweak a preset, then watch it run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive(logging.Noop())
		},
	}

	rootCmd.AddCommand(runCmd, presetsCmd, configCmd, listCmd, plotCmd, analyzeCmd,
		exportCSVCmd, exportJSONCmd, exportPNGCmd, exportSVGCmd, liveCmd, compareCmd, sweepCmd, scenarioCmd, interactiveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func simFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "YAML file overlaid on the preset")
	cmd.Flags().Float64Var(&duration, "time", 60.0, "simulated duration in seconds")
	cmd.Flags().Float64Var(&dt, "dt", 0.01, "outer timestep in seconds")
	cmd.Flags().StringVar(&stepper, "stepper", "symplectic_euler", "symplectic_euler or velocity_verlet")
}

func newLogger() logging.Logger {
	return logging.New(logging.Config{Level: logLevel, Format: logFormat})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
