package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/glide/internal/analysis"
	"github.com/san-kum/glide/internal/automation"
	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/dynamo"
	"github.com/san-kum/glide/internal/export"
	"github.com/san-kum/glide/internal/logging"
	"github.com/san-kum/glide/internal/metrics"
	"github.com/san-kum/glide/internal/optim"
	"github.com/san-kum/glide/internal/sim"
	"github.com/san-kum/glide/internal/storage"
	"github.com/san-kum/glide/internal/telemetry"
	"github.com/san-kum/glide/internal/viz"
)

const defaultPreset = "engineering"

// resolveConfig builds the run configuration: preset, then the YAML file,
// then any flag the user actually set.
func resolveConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	name := defaultPreset
	if len(args) > 0 {
		name = args[0]
	}
	cfg, err := config.GetPreset(name)
	if err != nil {
		return config.Config{}, err
	}

	if configFile != "" {
		cfg, err = config.Load(configFile, cfg)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if cmd.Flags().Changed("time") {
		cfg.Duration = duration
	}
	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("stepper") {
		cfg.Stepper = stepper
	}
	return cfg.Normalize(), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	log := newLogger()

	ctx, stop := signalContext()
	defer stop()

	s, err := sim.New(cfg, nil, nil, log)
	if err != nil {
		return err
	}
	for _, m := range metrics.Defaults() {
		s.AddMetric(m)
	}

	if metricsAddr != "" {
		collector, err := telemetry.NewRunCollector(nil)
		if err != nil {
			return err
		}
		s.AddObserver(collector.Observer(cfg.Name))
		srv := telemetry.Serve(metricsAddr, collector, log)
		defer telemetry.Shutdown(srv)
	}

	fmt.Printf("running %s for %.1f s...\n", cfg.Name, cfg.Duration)
	start := time.Now()
	result, runErr := s.Run(ctx)
	elapsed := time.Since(start)
	if result == nil {
		return runErr
	}

	withCSV := cfg.SaveEnergyCSV
	if cmd.Flags().Changed("csv") {
		withCSV = saveCSV
	}
	st := storage.New(dataDir)
	runID, err := st.Save(result, withCSV, runErr)
	if err != nil {
		return errors.Join(runErr, err)
	}

	fmt.Println()
	fmt.Println(viz.RenderSummary(result))
	fmt.Printf("completed in %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("run id: %s\n", runID)

	if shapeFile != "" {
		svg, err := export.TetherSVG(result.Final.Positions(), 800, 600)
		if err != nil {
			return err
		}
		if err := os.WriteFile(shapeFile, []byte(svg), 0o644); err != nil {
			return err
		}
		fmt.Printf("tether shape: %s\n", shapeFile)
	}

	var inst *dynamo.InstabilityError
	if errors.As(runErr, &inst) {
		log.Error(ctx, "simulation diverged",
			logging.Int("step", inst.Step),
			logging.Int("substep", inst.Substep),
			logging.Int("node", inst.Node),
			logging.String("reason", inst.Reason),
		)
	}
	return runErr
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tDT\tNODES\tLENGTH\tGRAVITY\tEDT")
	for _, name := range config.ListPresets() {
		cfg, err := config.GetPreset(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%.4gs\t%d\t%.0fm\t%s\t%s\n",
			name, cfg.Dt, cfg.Tether.N+1, cfg.Tether.L0, cfg.Gravity.Mode, cfg.EDT.Mode)
	}
	return w.Flush()
}

func dumpConfig(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("# segment length %.4g m, k %.4g N/m, c %.4g N·s/m, segment mass %.4g kg\n",
		cfg.SegmentLength(), cfg.Stiffness(), cfg.Damping(), cfg.SegmentMass())
	fmt.Printf("# explicit stability limit %.3g s\n", cfg.StabilityLimit())
	_, err = os.Stdout.Write(data)
	return err
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tDURATION\tDT\tSTEPPER\tRECORDS\tSTATUS")

	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%d\t%s\n",
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.FinalTime,
			run.Dt,
			run.Stepper,
			run.Records,
			status,
		)
	}

	return w.Flush()
}

// loadRun returns the named run, or the latest one when args is empty.
func loadRun(args []string) (*storage.Store, *storage.RunMetadata, []metrics.Record, error) {
	st := storage.New(dataDir)

	var (
		meta *storage.RunMetadata
		err  error
	)
	if len(args) > 0 {
		meta, err = st.Load(args[0])
	} else {
		meta, err = st.Latest()
	}
	if err != nil {
		return nil, nil, nil, err
	}

	records, err := st.LoadRecords(meta.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil, fmt.Errorf("run %s has no records", meta.ID)
	}
	return st, meta, records, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	_, meta, records, err := loadRun(args)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("preset: %s\n", meta.Preset)
	fmt.Printf("samples: %d\n\n", len(records))

	graph, err := viz.PlotEnergy(records, strings.Split(plotSeries, ","), plotWidth, plotHeight)
	if err != nil {
		return err
	}
	fmt.Println(graph)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	_, meta, records, err := loadRun(args)
	if err != nil {
		return err
	}

	data, err := viz.EnergySeries(records, analyzeSeries)
	if err != nil {
		return err
	}
	interval, err := analysis.SampleInterval(records)
	if err != nil {
		return err
	}
	spectrum, err := analysis.Analyze(data, interval)
	if err != nil {
		return err
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("series: %s, %d samples every %.4g s\n\n", analyzeSeries, len(data), interval)

	plotData := spectrum.Power
	if n := len(plotData) / 4; n >= 8 {
		plotData = plotData[:n]
	}
	fmt.Println(asciigraph.Plot(viz.Downsample(plotData, 80),
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("amplitude spectrum (%s)", analyzeSeries)),
	))
	fmt.Println()

	if spectrum.Peak == 0 {
		fmt.Println("no dominant frequency: series is flat")
		return nil
	}
	fmt.Printf("dominant frequency: %.4f hz\n", spectrum.Peak)
	fmt.Printf("period: %.4f s\n", spectrum.Period)
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, _, records, err := loadRun(args)
	if err != nil {
		return err
	}
	return storage.WriteCSV(os.Stdout, records)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	_, meta, records, err := loadRun(args)
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, *meta, records)
}

func exportPNG(cmd *cobra.Command, args []string) error {
	st, meta, records, err := loadRun(args)
	if err != nil {
		return err
	}
	series, err := export.FindSeries(pngSeries)
	if err != nil {
		return err
	}

	p, err := export.EnergyPlot(meta.ID, records, series)
	if err != nil {
		return err
	}
	out := pngOut
	if out == "" {
		out = filepath.Join(st.Dir(), meta.ID, "energy.png")
	}
	if err := export.SavePNG(p, 8, 5, out); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", out)
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	_, _, records, err := loadRun(args)
	if err != nil {
		return err
	}
	series, err := export.FindSeries(svgSeries)
	if err != nil {
		return err
	}

	svg, err := export.EnergySVG(records, series[0].Pick, svgWidth, svgHeight)
	if err != nil {
		return err
	}
	if svgOut == "" {
		_, err = fmt.Print(svg)
		return err
	}
	if err := os.WriteFile(svgOut, []byte(svg), 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", svgOut)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	// the TUI owns the terminal
	return viz.RunLive(cfg, logging.Noop())
}

func compareSteppers(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[:1])
	if err != nil {
		return err
	}
	steppers := args[1:]
	if len(steppers) == 0 {
		steppers = []string{config.StepperSymplecticEuler, config.StepperVelocityVerlet}
	}

	configs := make([]config.Config, len(steppers))
	for i, name := range steppers {
		configs[i] = cfg
		configs[i].Stepper = name
	}

	ctx, stop := signalContext()
	defer stop()

	log := newLogger()
	batch := sim.NewBatch(configs, log)
	batch.SetLimit(parallel)
	batch.OnSetup(func(_ int, s *sim.Simulator) {
		for _, m := range metrics.Defaults() {
			s.AddMetric(m)
		}
	})

	fmt.Printf("comparing steppers for %s (dt=%.4f, duration=%.1fs)\n\n", cfg.Name, cfg.Dt, cfg.Duration)
	start := time.Now()
	results, err := batch.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%-18s  %14s  %12s  %12s  %12s\n", "stepper", "final_total", "max_resid", "drift", "dissipated")
	fmt.Println(strings.Repeat("-", 76))
	for i, res := range results {
		sum := res.Summary
		fmt.Printf("%-18s  %14.6g  %12.3e  %12.3e  %12.6g\n",
			steppers[i], sum.Final.Total, sum.MaxResidual, res.Metrics["energy_drift"], sum.Dissipated)
	}
	fmt.Printf("\n%d runs in %v\n", len(results), time.Since(start).Round(time.Millisecond))
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if len(sweepParams) == 0 {
		return fmt.Errorf("at least one --param is required (available: %s)", strings.Join(optim.ParamNames(), ", "))
	}

	names := make([]string, 0, len(sweepParams))
	ranges := make([][]float64, 0, len(sweepParams))
	for _, p := range sweepParams {
		name, values, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("--param %q: expected name=values", p)
		}
		r, err := optim.ParseRange(values)
		if err != nil {
			return err
		}
		names = append(names, strings.TrimSpace(name))
		ranges = append(ranges, r)
	}

	g, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(parallel)
	g.SetLogger(newLogger())

	ctx, stop := signalContext()
	defer stop()

	fmt.Printf("sweeping %s over %d points (minimize %s)\n\n", cfg.Name, len(g.Points()), sweepMetric)
	start := time.Now()
	best, trials, err := g.Search(ctx, cfg, sweepMetric)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\t"+strings.ToUpper(sweepMetric)+"\tSTATUS")
	for _, t := range trials {
		if t.Params == nil {
			continue
		}
		cols := make([]string, len(names))
		for i, name := range names {
			cols[i] = fmt.Sprintf("%.4g", t.Params[name])
		}
		status := "ok"
		if t.Err != nil {
			status = t.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%.6g\t%s\n", strings.Join(cols, "\t"), t.Value, status)
	}
	if werr := w.Flush(); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nbest %s = %.6g at %v (%v)\n", sweepMetric, best.Value, best.Params, time.Since(start).Round(time.Millisecond))
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Printf("scenario %s: %d steps\n", scenario.Name, len(scenario.Steps))
	if scenario.Description != "" {
		fmt.Println(scenario.Description)
	}
	fmt.Println()

	results, runErr := automation.RunScenario(ctx, scenario, storage.New(dataDir), newLogger())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tRUN ID\tTIME\tE_TOTAL\tSOC\tMAX_RESID")
	for i, sr := range results {
		sum := sr.Result.Summary
		fmt.Fprintf(w, "%d\t%s\t%.2fs\t%.6g\t%.4f\t%.3e\n",
			i+1, sr.RunID, sum.Final.Time, sum.Final.Total, sum.Final.SoC, sum.MaxResidual)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}
