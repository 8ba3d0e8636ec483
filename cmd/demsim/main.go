package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/demsim/internal/compute"
	"github.com/san-kum/demsim/internal/config"
	"github.com/san-kum/demsim/internal/dem"
	"github.com/san-kum/demsim/internal/export"
	"github.com/san-kum/demsim/internal/metrics"
	"github.com/san-kum/demsim/internal/scene"
	"github.com/san-kum/demsim/internal/sim"
	"github.com/san-kum/demsim/internal/storage"
	"github.com/san-kum/demsim/internal/viz"
)

// speedLimit flags a run as unstable once a grain moves faster than this.
const speedLimit = 50.0

var (
	dataDir  string
	logLevel string
	// run flags
	backend    string
	device     string
	steps      int64
	endTime    float64
	workers    int
	configFile string
	live       bool
	noSave     bool
	// output flags
	series    string
	width     int
	height    int
	outFile   string
	particles bool
	// bench flags
	benchSteps int64
	benchSizes []int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "demsim",
		Short:        "discrete element particle simulation",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(lvl)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".demsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a simulation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&backend, "backend", config.BackendCPU, "evaluator (cpu, accel)")
	runCmd.Flags().StringVar(&device, "device", "auto", "accelerator device ("+strings.Join(compute.Names(), ", ")+", auto)")
	runCmd.Flags().Int64Var(&steps, "steps", 1000, "maximum number of steps (0 for unbounded)")
	runCmd.Flags().Float64Var(&endTime, "time", 0, "stop once simulated time reaches this (0 for unbounded)")
	runCmd.Flags().IntVar(&workers, "workers", 1, "contact workers for the cpu evaluator (0 for all cores)")
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().BoolVar(&live, "live", false, "show a live view while running")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run telemetry (latest run by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&series, "series", "energy", "telemetry column to plot")
	plotCmd.Flags().IntVar(&width, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&height, "height", 12, "plot height")

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "draw the final particle positions of a run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().IntVar(&width, "width", 80, "canvas width in cells")
	showCmd.Flags().IntVar(&height, "height", 24, "canvas height in cells")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run telemetry or final particles to CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVar(&outFile, "out", "", "output file (stdout by default)")
	exportCSVCmd.Flags().BoolVar(&particles, "particles", false, "export final particles instead of telemetry")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and telemetry as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVar(&outFile, "out", "", "output file (stdout by default)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render final particles, or a telemetry series, as SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVar(&outFile, "out", "", "output file (stdout by default)")
	exportSVGCmd.Flags().StringVar(&series, "series", "", "telemetry column to draw instead of particles")
	exportSVGCmd.Flags().IntVar(&width, "width", 800, "image width in pixels")
	exportSVGCmd.Flags().IntVar(&height, "height", 300, "image height for series plots")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark the cpu evaluator",
		Args:  cobra.NoArgs,
		RunE:  benchCPU,
	}
	benchCmd.Flags().Int64Var(&benchSteps, "steps", 50, "steps per measurement")
	benchCmd.Flags().IntSliceVar(&benchSizes, "sizes", []int{100, 400, 1600}, "grain counts")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tBACKEND\tSIZE\tDIAMETER\tWALLS")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%s\t%.2fx%.2f\t%.3f\t%v\n",
					name, p.Backend, p.Scene.SizeX, p.Scene.SizeZ, p.Scene.Diameter, p.Scene.Walls)
			}
			return w.Flush()
		},
	}

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "list compiled accelerator devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range compute.Names() {
				d, err := compute.Select(name)
				if err != nil {
					fmt.Printf("%-8s unavailable: %v\n", name, err)
					continue
				}
				fmt.Printf("%-8s %s\n", name, d.Name())
				d.Cleanup()
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, showCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd, benchCmd, presetsCmd, devicesCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) (*config.Config, string, error) {
	var cfg *config.Config
	name := "custom"

	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, "", err
		}
		cfg = c
	case len(args) == 1:
		cfg = config.GetPreset(args[0])
		if cfg == nil {
			return nil, "", fmt.Errorf("unknown preset %q (available: %s)", args[0], strings.Join(config.ListPresets(), ", "))
		}
		name = args[0]
	default:
		cfg = config.DefaultConfig()
		name = "default"
	}

	if cmd.Flags().Changed("backend") {
		cfg.Backend = backend
	}
	if cmd.Flags().Changed("device") {
		cfg.Device = device
	}
	if cmd.Flags().Changed("steps") {
		cfg.Steps = steps
	}
	if cmd.Flags().Changed("time") {
		cfg.EndTime = endTime
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, name, nil
}

// newSimulation builds the evaluator cfg asks for. The returned release func
// frees any device resources.
func newSimulation(cfg *config.Config) (dem.Simulation, string, func(), error) {
	if cfg.Backend == config.BackendCPU {
		c, err := sim.NewCPU(sim.CPUConfig{
			MaxDt:   cfg.MaxDt,
			Gravity: cfg.Gravity.Vector(),
			Drive:   cfg.Drive,
			Courant: cfg.Courant,
			Damping: cfg.Damping,
			Workers: cfg.Workers,
		})
		if err != nil {
			return nil, "", nil, err
		}
		return c, fmt.Sprintf("cpu (%d workers)", c.Workers()), func() {}, nil
	}

	dev, err := compute.Select(cfg.Device)
	if err != nil {
		return nil, "", nil, err
	}
	a, err := sim.NewAccelerator(dev, sim.AccelConfig{
		MaxDt:   cfg.MaxDt,
		Drive:   *cfg.Drive,
		Courant: cfg.Courant,
	})
	if err != nil {
		dev.Cleanup()
		return nil, "", nil, err
	}
	release := func() {
		if err := a.Close(); err != nil {
			logrus.WithError(err).Warn("closing accelerator")
		}
		dev.Cleanup()
	}
	return a, dev.Name(), release, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, name, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	s, devName, release, err := newSimulation(cfg)
	if err != nil {
		return err
	}
	defer release()

	summary, err := scene.Build(cfg.Scene, s)
	if err != nil {
		return err
	}
	fmt.Printf("preset: %s\n", name)
	fmt.Printf("device: %s\n", devName)
	fmt.Printf("particles: %d (%d movable, %d fixed)\n", summary.Total(), summary.Movable, summary.Fixed)

	rec := metrics.NewRecorder(
		metrics.NewEnergy(),
		metrics.NewSettling(),
		metrics.NewStability(speedLimit),
		metrics.NewMaxOverlap(),
	)
	runner := sim.NewRunner(s)
	runner.AddObserver(rec)

	limits := sim.RunConfig{
		MaxSteps:    cfg.Steps,
		EndTime:     cfg.EndTime,
		SampleEvery: cfg.SampleEvery,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result *sim.Result
	var runErr error
	if live {
		job := runner.Start(ctx, limits)
		result, runErr = viz.RunLive(viz.NewLiveModel("demsim: "+name, devName, job, rec, limits))
	} else {
		result, runErr = runner.Run(ctx, limits)
	}
	if result == nil {
		return runErr
	}

	fmt.Printf("steps: %d\n", result.Steps)
	fmt.Printf("t: %.4fs\n", result.T)
	fmt.Printf("elapsed: %v (%.0f steps/sec)\n", result.Elapsed.Round(time.Millisecond), result.StepsPerSecond())
	if result.Stopped {
		fmt.Println("stopped early")
	}
	values := rec.Values()
	for _, m := range []string{"kinetic_energy", "settling", "stability", "max_overlap"} {
		if v, ok := values[m]; ok {
			fmt.Printf("%s: %.6g\n", m, v)
		}
	}

	if noSave {
		return runErr
	}

	st := storage.New(dataDir)
	runID, err := st.Save(&storage.Run{
		Meta: storage.RunMetadata{
			Preset:      name,
			Backend:     cfg.Backend,
			Device:      devName,
			Timestamp:   time.Now(),
			Particles:   s.ParticleCount(),
			Steps:       result.Steps,
			T:           result.T,
			ElapsedSec:  result.Elapsed.Seconds(),
			StepsPerSec: result.StepsPerSecond(),
			Stopped:     result.Stopped,
			Config:      cfg,
			Metrics:     values,
		},
		Telemetry: rec.Samples(),
		Final:     s.GetParticles(),
	})
	if err != nil {
		return errors.Join(runErr, err)
	}
	fmt.Printf("saved: %s\n", runID)
	return runErr
}

func resolveRun(st *storage.Store, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	return st.Latest()
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
	fmt.Fprintln(w, "ID\tPRESET\tBACKEND\tTIME\tPARTICLES\tSTEPS\tT\tSTEPS/SEC")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%.4fs\t%.0f\n",
			run.ID,
			run.Preset,
			run.Backend,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Particles,
			run.Steps,
			run.T,
			run.StepsPerSec,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	if _, ok := viz.Series[series]; !ok {
		return fmt.Errorf("unknown series %q", series)
	}

	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadTelemetry(runID)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no telemetry to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("preset: %s\n", meta.Preset)
	fmt.Printf("samples: %d\n\n", len(samples))
	fmt.Println(viz.Plot(samples, series, width, height))
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	recs, err := st.LoadParticles(runID)
	if err != nil {
		return err
	}

	ps := recordsToParticles(recs, nil)
	c := viz.NewCanvas(width, height)
	c.Scatter(ps, viz.Fit(ps))
	fmt.Printf("run: %s (%d particles)\n", runID, len(ps))
	fmt.Println(c.String())
	return nil
}

// runMaterials rebuilds the scene materials a run was configured with.
func runMaterials(meta *storage.RunMetadata) map[byte]*dem.Material {
	mats := make(map[byte]*dem.Material)
	if meta.Config != nil {
		mats[scene.GrainMaterial] = meta.Config.Scene.Grain.Material(scene.GrainMaterial)
		mats[scene.WallMaterial] = meta.Config.Scene.Wall.Material(scene.WallMaterial)
	}
	return mats
}

// recordsToParticles rebuilds particles from records. Materials missing from
// mats are left nil.
func recordsToParticles(recs []storage.ParticleRecord, mats map[byte]*dem.Material) []dem.Particle {
	ps := make([]dem.Particle, len(recs))
	for i, r := range recs {
		ps[i] = dem.NewParticle(r.ID, r.Diameter, mats[r.MaterialID], r.Kind).At(r.Position)
		ps[i].Velocity = r.Velocity
	}
	return ps
}

func output() (io.Writer, func() error, error) {
	if outFile == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}

	w, closeFn, err := output()
	if err != nil {
		return err
	}

	if particles {
		recs, err := st.LoadParticles(runID)
		if err != nil {
			closeFn()
			return err
		}
		err = storage.WriteParticleRecordsCSV(w, recs)
		return errors.Join(err, closeFn())
	}

	samples, err := st.LoadTelemetry(runID)
	if err != nil {
		closeFn()
		return err
	}
	err = storage.WriteTelemetryCSV(w, samples)
	return errors.Join(err, closeFn())
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadTelemetry(runID)
	if err != nil {
		return err
	}

	w, closeFn, err := output()
	if err != nil {
		return err
	}
	err = storage.ExportJSON(w, meta, samples)
	return errors.Join(err, closeFn())
}

func exportSVG(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}

	var svg string
	if series != "" {
		get, ok := viz.Series[series]
		if !ok {
			return fmt.Errorf("unknown series %q", series)
		}
		samples, err := st.LoadTelemetry(runID)
		if err != nil {
			return err
		}
		ts := make([]float64, len(samples))
		values := make([]float64, len(samples))
		for i, s := range samples {
			ts[i], values[i] = s.T, get(s)
		}
		svg = export.SeriesToSVG(ts, values, width, height, "#00ff00")
	} else {
		meta, err := st.Load(runID)
		if err != nil {
			return err
		}
		recs, err := st.LoadParticles(runID)
		if err != nil {
			return err
		}
		svg = export.ParticlesToSVG(recordsToParticles(recs, runMaterials(meta)), width)
	}
	if svg == "" {
		return fmt.Errorf("nothing to draw for run %s", runID)
	}

	w, closeFn, err := output()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, svg)
	return errors.Join(err, closeFn())
}

// benchScene sizes the default block so it holds roughly n grains.
func benchScene(n int) config.SceneConfig {
	sc := config.DefaultConfig().Scene
	side := sc.Diameter * 1.001
	cols := 1
	for cols*cols < n {
		cols++
	}
	sc.SizeX = float64(cols-1) * side
	sc.SizeZ = float64((n+cols-1)/cols-1) * side
	return sc
}

func benchCPU(cmd *cobra.Command, args []string) error {
	if benchSteps <= 0 {
		return fmt.Errorf("steps must be positive")
	}
	workerCounts := []int{1, 2, 4, 0}

	fmt.Printf("benchmarking cpu evaluator, %d steps\n\n", benchSteps)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARTICLES\tWORKERS\tTIME\tSTEPS/SEC")

	for _, n := range benchSizes {
		for _, wk := range workerCounts {
			cfg := sim.DefaultCPUConfig()
			cfg.Workers = wk
			c, err := sim.NewCPU(cfg)
			if err != nil {
				return err
			}
			if _, err := scene.Build(benchScene(n), c); err != nil {
				return err
			}

			result, err := sim.NewRunner(c).Run(context.Background(), sim.RunConfig{MaxSteps: benchSteps})
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "%d\t%d\t%v\t%.0f\n",
				c.ParticleCount(), c.Workers(), result.Elapsed.Round(time.Microsecond), result.StepsPerSecond())
		}
	}

	return w.Flush()
}
