// Package main provides CMA-ES tuning of a system's numeric settings so that
// it emits a target number of points.
//
// Usage: go run ./cmd/tune -project scatter.toml -system grass -target 5000
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pthm-cable/scatter/config"
	"github.com/pthm-cable/scatter/pipeline"
	"github.com/pthm-cable/scatter/project"
	"github.com/pthm-cable/scatter/settings"
)

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	// CLI flags
	projectPath := flag.String("project", project.DefaultFile, "Project file")
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	systemID := flag.String("system", "", "System to tune (empty = the project's active system)")
	target := flag.Int("target", 0, "Target point count")
	tolerance := flag.Float64("tolerance", 0.02, "Accepted relative count error")
	maxEvals := flag.Int("max-evals", 60, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	stateName := flag.String("state", "", "Evaluation state (empty = from config)")
	outputDir := flag.String("output", "", "Output directory for the evaluation log and best preset")
	save := flag.Bool("save", false, "Write the best values back into the project")
	var params paramFlag
	flag.Var(&params, "param", "Setting to tune as key, key=max or key=min:max (repeatable, default s_distribution_density)")
	flag.Parse()

	if *target <= 0 {
		log.Fatal("--target is required")
	}
	if len(params) == 0 {
		params = paramFlag{{Key: "s_distribution_density"}}
	}

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Cfg()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Derived.LogLevel})))

	proj, err := project.Load(*projectPath)
	if err != nil {
		log.Fatalf("failed to load project: %v", err)
	}
	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatalf("invalid pipeline config: %v", err)
	}
	if *stateName != "" {
		if opts.State, err = pipeline.ParseState(*stateName); err != nil {
			log.Fatal(err)
		}
	}
	em, rep, err := proj.Open(opts)
	if err != nil {
		log.Fatalf("failed to open project: %v", err)
	}
	if !rep.Empty() {
		slog.Warn("project", "report", rep)
	}

	id := *systemID
	if id == "" {
		id = proj.Active
	}
	sys, ok := em.System(id)
	if !ok {
		log.Fatalf("system %q not found (use -system)", id)
	}
	pv, err := NewParamVector(sys, params)
	if err != nil {
		log.Fatal(err)
	}

	// Upstream systems are computed once; only the tuned system reruns.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := em.ComputeAll(ctx, opts.State); err != nil {
		slog.Warn("initial compute", "error", err)
	}

	evaluator, err := NewEvaluator(ctx, em, id, opts.State, pv, *target)
	if err != nil {
		log.Fatal(err)
	}

	// Evaluation log
	var logWriter *csv.Writer
	if *outputDir != "" {
		if err := os.MkdirAll(*outputDir, 0755); err != nil {
			log.Fatalf("failed to create output directory: %v", err)
		}
		logFile, err := os.Create(filepath.Join(*outputDir, "tune_log.csv"))
		if err != nil {
			log.Fatalf("failed to create log file: %v", err)
		}
		defer logFile.Close()
		logWriter = csv.NewWriter(logFile)
		defer logWriter.Flush()

		header := []string{"eval", "points", "objective"}
		for _, spec := range pv.Specs {
			header = append(header, spec.Key)
		}
		logWriter.Write(header)
	}

	startTime := time.Now()
	onEval := func(e Evaluation) {
		if logWriter != nil {
			row := []string{strconv.Itoa(e.N), strconv.Itoa(e.Points), fmt.Sprintf("%.6f", e.Objective)}
			for _, v := range e.Values {
				row = append(row, fmt.Sprintf("%.6f", v))
			}
			logWriter.Write(row)
			logWriter.Flush()
		}
		if e.Err != nil {
			slog.Warn("evaluation failed", "eval", e.N, "error", e.Err)
		}

		elapsed := time.Since(startTime)
		remaining := time.Duration(*maxEvals-e.N) * (elapsed / time.Duration(e.N))
		fmt.Printf("Eval %d/%d: points=%d objective=%.5f (best=%d) | elapsed: %s, ETA: %s\n",
			e.N, *maxEvals, e.Points, e.Objective, evaluator.Best().Points,
			formatDuration(elapsed), formatDuration(remaining))
	}

	fmt.Printf("Tuning %s with %d parameters toward %d points, max_evals=%d\n", id, pv.Dim(), *target, *maxEvals)
	best, status, err := Tune(evaluator, TuneOptions{
		MaxEvals:   *maxEvals,
		Population: *population,
		Tolerance:  *tolerance,
	}, onEval)
	if err != nil {
		slog.Warn("tuning ended", "error", err)
	}
	if best.Values == nil {
		log.Fatal("no evaluation completed")
	}

	fmt.Printf("\nTuning finished (%s) after %d evaluations in %s\n", status, evaluator.Evals(), formatDuration(time.Since(startTime)))
	fmt.Printf("Best: %d points (target %d)\n", best.Points, *target)
	for i, spec := range pv.Specs {
		fmt.Printf("  %s: %v\n", spec.Key, pv.Values(best.Values)[i])
	}

	// Leave the system at the best values, not the last ones tried.
	if err := evaluator.Apply(best.Values); err != nil {
		log.Fatalf("applying best values: %v", err)
	}

	if *outputDir != "" {
		sys, _ := em.System(id)
		path, err := settings.SavePreset(*outputDir, settings.NewPreset(sys, id+"_tuned", nil), nil)
		if err != nil {
			slog.Warn("failed to write preset", "error", err)
		} else {
			fmt.Printf("\nBest preset saved to: %s\n", path)
		}
	}
	if *save {
		proj.Capture(em)
		if err := proj.Save(); err != nil {
			log.Fatalf("saving project: %v", err)
		}
		fmt.Printf("Project saved to: %s\n", proj.Path())
	}
}
