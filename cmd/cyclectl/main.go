package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/cyclectl/internal/automation"
	"github.com/san-kum/cyclectl/internal/config"
	"github.com/san-kum/cyclectl/internal/hw"
	"github.com/san-kum/cyclectl/internal/integrators"
	"github.com/san-kum/cyclectl/internal/logging"
	"github.com/san-kum/cyclectl/internal/metrics"
	"github.com/san-kum/cyclectl/internal/sim"
	"github.com/san-kum/cyclectl/internal/storage"
	"github.com/san-kum/cyclectl/internal/viz"
)

var (
	dataDir    string
	logLevel   string
	logFormat  string
	logFile    string
	configFile string
	preset     string
	integrator string
	ticks      int
	runAll     bool
	channels   []string
	outFile    string
	theme      string

	log     *slog.Logger
	logSink io.Closer
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cyclectl",
		Short:         "command scheduler and supervisor for a simulated scoring robot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var w io.Writer = os.Stderr
			if logFile != "" {
				f := logging.FileWriter(logFile)
				logSink = f
				w = f
			}
			log = logging.New(logLevel, logFormat, w)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logSink != nil {
				logSink.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".cyclectl", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to a rotated file instead of stderr")

	addConfigFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
		cmd.Flags().StringVar(&preset, "preset", "default", "tuning preset")
		cmd.Flags().StringVar(&integrator, "integrator", "", "plant integrator (rk4, euler)")
	}

	runCmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "replay a scenario against the simulated robot and store the run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScenario,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().IntVar(&ticks, "ticks", 0, "override the number of ticks")
	runCmd.Flags().BoolVar(&runAll, "all", false, "run every built-in scenario concurrently")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot channels of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&channels, "channel", []string{"elbow", "slide", "heading", "load"}, "channels to plot")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			if outFile == "" {
				return st.Export(os.Stdout, args[0])
			}
			if err := st.ExportFile(outFile, args[0]); err != nil {
				return err
			}
			fmt.Printf("exported %s to %s\n", args[0], outFile)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "drive the simulated robot from the keyboard",
		RunE:  runLive,
	}
	addConfigFlags(liveCmd)
	liveCmd.Flags().StringVar(&theme, "theme", "field", "colour theme")

	benchCmd := &cobra.Command{
		Use:   "bench [scenario]",
		Short: "measure scheduler and plant throughput per integrator",
		Long:  "bench replays a scenario for the configured loop duration with each integrator and period.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchScenario,
	}
	addConfigFlags(benchCmd)
	benchCmd.Flags().IntVar(&ticks, "ticks", 0, "override the number of ticks")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list tuning presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
		},
	}

	scenariosCmd := &cobra.Command{
		Use:   "scenarios",
		Short: "list built-in scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDURATION\tSTEPS\tDESCRIPTION")
			for _, name := range automation.Builtins() {
				s, err := automation.Builtin(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%.1fs\t%d\t%s\n", s.Name, s.Duration, len(s.Steps), s.Description)
			}
			return w.Flush()
		},
	}

	tableCmd := &cobra.Command{
		Use:   "table",
		Short: "print the supervisor transition tables",
		RunE:  printTables,
	}

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write the resolved configuration as yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}
	addConfigFlags(configCmd)

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, liveCmd, benchCmd, presetsCmd, scenariosCmd, tableCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves preset, then config file, then the integrator flag.
func loadConfig() (*config.Config, error) {
	cfg := config.GetPreset(preset)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if integrator != "" {
		cfg.Loop.Integrator = integrator
	}
	return cfg, cfg.Validate()
}

// newRig builds a rig replaying s, with the standard metrics attached.
func newRig(cfg *config.Config, s *automation.Scenario) (*sim.Rig, error) {
	integ, err := integrators.ByName(cfg.Loop.Integrator)
	if err != nil {
		return nil, err
	}
	clock := hw.NewTickClock(cfg.Period())
	rig, err := sim.NewRig(cfg, integ, clock, automation.NewPlayer(s, clock), log.With("scenario", s.Name))
	if err != nil {
		return nil, err
	}
	for _, m := range metrics.Standard(cfg) {
		rig.Loop.AddMetric(m)
	}
	rig.Loop.AddObserver(sim.NewPhaseLogger(log.With("scenario", s.Name)))
	return rig, nil
}

func scenarioTicks(cfg *config.Config, s *automation.Scenario) int {
	if ticks > 0 {
		return ticks
	}
	return int(s.Duration/cfg.Loop.Period + 0.5)
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var scenarios []*automation.Scenario
	switch {
	case runAll:
		for _, name := range automation.Builtins() {
			s, _ := automation.Builtin(name)
			scenarios = append(scenarios, s)
		}
	case len(args) == 1:
		s, err := automation.Resolve(args[0])
		if err != nil {
			return err
		}
		scenarios = append(scenarios, s)
	default:
		s, _ := automation.Builtin("full-cycle")
		scenarios = append(scenarios, s)
	}

	jobs := make([]sim.Job, len(scenarios))
	for i, s := range scenarios {
		jobs[i] = sim.Job{
			Name:  s.Name,
			Ticks: scenarioTicks(cfg, s),
			Setup: func() (*sim.Loop, error) {
				rig, err := newRig(cfg, s)
				if err != nil {
					return nil, err
				}
				return rig.Loop, nil
			},
		}
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %d scenario(s)...\n", len(jobs))
	start := time.Now()
	results, err := sim.RunBatch(ctx, jobs)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	for i, result := range results {
		s := scenarios[i]
		runID, err := st.Save(storage.RunMetadata{
			Scenario:   s.Name,
			Preset:     preset,
			Period:     cfg.Loop.Period,
			Integrator: cfg.Loop.Integrator,
		}, result)
		if err != nil {
			return err
		}

		final := result.Final()
		fmt.Printf("\nrun id: %s\n", runID)
		fmt.Printf("ticks: %d (%.2fs simulated)\n", len(result.Samples), final.Time)
		fmt.Printf("final: cycle=%s maneuver=%s level=%s\n", final.Phases["cycle"], final.Phases["maneuver"], final.Phases["level"])
		fmt.Printf("scheduler: accepted=%d rejected=%d interrupted=%d finished=%d canceled=%d faults=%d\n",
			result.Stats.Accepted, result.Stats.Rejected, result.Stats.Interrupted,
			result.Stats.Finished, result.Stats.Canceled, result.Stats.Faults)
		fmt.Println("metrics:")
		for _, name := range slices.Sorted(maps.Keys(result.Metrics)) {
			fmt.Printf("  %s: %.6f\n", name, result.Metrics[name])
		}
	}
	fmt.Printf("\ncompleted in %v\n", elapsed)
	return nil
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
	fmt.Fprintln(w, "ID\tSCENARIO\tPRESET\tTIME\tTICKS\tPERIOD\tINTEG\tFINAL\tFAULTS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.3fs\t%s\t%s\t%d\n",
			run.ID,
			run.Scenario,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Ticks,
			run.Period,
			run.Integrator,
			run.Final["cycle"],
			run.Stats.Faults,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	tr, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}

	if len(tr.Times) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("samples: %d\n\n", len(tr.Times))

	for _, name := range channels {
		data, ok := tr.Series[name]
		if !ok {
			return fmt.Errorf("unknown channel %q (available: %s)", name, strings.Join(tr.Columns, ", "))
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(name+" vs time"),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	if cycle := tr.Phases["cycle"]; len(cycle) > 0 {
		fmt.Println("cycle phases:")
		prev := ""
		for i, p := range cycle {
			if p != prev {
				fmt.Printf("  %7.2fs  %s\n", tr.Times[i], p)
				prev = p
			}
		}
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	integ, err := integrators.ByName(cfg.Loop.Integrator)
	if err != nil {
		return err
	}

	// The terminal belongs to the view, so logs go to the file or nowhere.
	runLog := log
	if logFile == "" {
		runLog = logging.Discard()
	}

	input := automation.NewManual()
	clock := hw.NewTickClock(cfg.Period())
	rig, err := sim.NewRig(cfg, integ, clock, input, runLog)
	if err != nil {
		return err
	}
	rig.Loop.AddObserver(sim.NewPhaseLogger(runLog))
	return viz.Run(viz.NewModel(rig, input, theme))
}

func benchScenario(cmd *cobra.Command, args []string) error {
	name := "full-cycle"
	if len(args) == 1 {
		name = args[0]
	}
	s, err := automation.Resolve(name)
	if err != nil {
		return err
	}
	base, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("benchmarking %s\n\n", s.Name)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEG\tPERIOD\tTICKS\tTIME\tTICKS/SEC\tWORST/BUDGET")

	for _, integ := range []string{"euler", "rk4"} {
		for _, period := range []float64{0.005, 0.01, 0.02} {
			cfg := *base
			cfg.Loop.Integrator = integ
			cfg.Loop.Period = period

			rig, err := newRig(&cfg, s)
			if err != nil {
				return err
			}
			n := cfg.Ticks()
			if ticks > 0 || n <= 0 {
				n = scenarioTicks(&cfg, s)
			}

			start := time.Now()
			result, err := rig.Loop.Run(context.Background(), n)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			fmt.Fprintf(w, "%s\t%.3fs\t%d\t%v\t%.0f\t%.3f\n",
				integ, period, n, elapsed, float64(n)/elapsed.Seconds(), result.Metrics["tick_budget"])
		}
	}

	return w.Flush()
}

func printTables(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	integ, err := integrators.ByName(cfg.Loop.Integrator)
	if err != nil {
		return err
	}
	rig, err := sim.NewRig(cfg, integ, hw.NewTickClock(cfg.Period()), nil, logging.Discard())
	if err != nil {
		return err
	}

	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	for _, m := range rig.Robot.Machines() {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
			Headers("FROM", "EVENT", "TO", "GUARD")
		for _, tr := range m.Transitions() {
			guard := ""
			if tr.Guard != nil {
				guard = "yes"
			}
			t.Row(string(tr.From), string(tr.Event), string(tr.To), guard)
		}
		fmt.Println(header.Render(fmt.Sprintf("%s (safe: %s)", m.Name(), m.Safe())))
		fmt.Println(t.Render())
		fmt.Println()
	}
	return nil
}
