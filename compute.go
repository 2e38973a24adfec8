package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/pthm-cable/scatter/pipeline"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/telemetry"
)

// SystemSummary is the per-system part of the compute report.
type SystemSummary struct {
	System string   `json:"system"`
	State  string   `json:"state"`
	Epoch  uint64   `json:"epoch"`
	Points int      `json:"points"`
	Stale  bool     `json:"stale,omitempty"`
	Error  string   `json:"error,omitempty"`
	Report []string `json:"report,omitempty"`
}

// Summary is the report printed after a compute.
type Summary struct {
	State      scatter.EvalState `json:"state"`
	Order      []string          `json:"order"`
	Cycles     [][]string        `json:"cycles,omitempty"`
	Systems    []SystemSummary   `json:"systems"`
	DurationMS int64             `json:"duration_ms"`
}

func newComputeCmd(a *app) *cobra.Command {
	var stateName, out string
	var csv, asJSON bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "compute [ID...]",
		Short: "Compute systems (default all) in dependency order",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.perf = telemetry.NewPerfCollector(0)
			if err := a.open(); err != nil {
				return err
			}
			state, err := a.evalState(stateName)
			if err != nil {
				return err
			}
			csv = csv || a.cfg.Output.CSV
			if out == "" && (csv || a.cfg.Output.PerfCSV) {
				out = a.cfg.Output.Dir
			}
			om, err := telemetry.NewOutputManager(out)
			if err != nil {
				return err
			}
			defer om.Close()
			if err := om.WriteConfig(a.cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			start := time.Now()
			computeErr := a.compute(ctx, args, state, om, csv)
			sum := a.summarize(state, time.Since(start))
			a.perf.Stats().LogStats()

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(sum); err != nil {
					return err
				}
			} else {
				printSummary(cmd.OutOrStdout(), sum)
			}
			if dir := om.Dir(); dir != "" {
				a.log.Info("output written", "dir", dir)
			}
			return computeErr
		},
	}
	f := cmd.Flags()
	f.StringVar(&stateName, "state", "", "Evaluation state: viewport, shaded or render (default from config)")
	f.StringVar(&out, "out", "", "Output directory for CSV files (default from config when writing CSV)")
	f.BoolVar(&csv, "csv", false, "Write every point stream as CSV")
	f.BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	f.DurationVar(&timeout, "timeout", 0, "Cancel computes after this long")
	return cmd
}

func (a *app) evalState(name string) (scatter.EvalState, error) {
	if name == "" {
		name = a.cfg.Pipeline.EvaluationState
	}
	return pipeline.ParseState(name)
}

// compute runs ids (every system when empty) in dependency order. Each
// finished stream is summarized and, when csv is set, written out.
func (a *app) compute(ctx context.Context, ids []string, state scatter.EvalState, om *telemetry.OutputManager, csv bool) error {
	unsubscribe := a.em.Subscribe(func(ev telemetry.Event) {
		switch ev.Type {
		case telemetry.EventFailed:
			a.log.Warn("compute failed", "system", ev.System, "error", ev.Err)
			return
		case telemetry.EventComputed:
		default:
			return
		}
		n := a.perf.Computes()
		stream := a.em.Stream(ev.System)
		stats := telemetry.Summarize(n, stream, a.em.Report(ev.System))
		a.log.Info("computed", "stats", stats)
		if err := om.WriteStats(stats); err != nil {
			a.log.Warn("writing stats", "error", err)
		}
		if a.perf != nil {
			if err := om.WritePerf(a.perf.Last(), n); err != nil {
				a.log.Warn("writing perf", "error", err)
			}
		}
		if csv {
			if err := om.WriteStream(stream); err != nil {
				a.log.Warn("writing stream", "error", err)
			}
		}
	})
	defer unsubscribe()

	if len(ids) == 0 {
		return a.em.ComputeAll(ctx, state)
	}
	for _, id := range ids {
		if _, ok := a.em.System(id); !ok {
			return fmt.Errorf("system %q not found", id)
		}
	}
	var errs []error
	for _, id := range a.em.Order() {
		if !slices.Contains(ids, id) {
			continue
		}
		if _, err := a.em.Compute(ctx, id, state); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) summarize(state scatter.EvalState, took time.Duration) Summary {
	sum := Summary{
		State:      state,
		Order:      a.em.Order(),
		Cycles:     a.em.Cycles(),
		DurationMS: took.Milliseconds(),
	}
	for _, id := range sum.Order {
		st, _ := a.em.Status(id)
		s := SystemSummary{System: id, State: st.State.String(), Epoch: st.Epoch, Points: st.Points, Stale: st.Stale}
		if st.Err != nil {
			s.Error = st.Err.Error()
		}
		for _, e := range a.em.Report(id).Entries() {
			s.Report = append(s.Report, e.Error())
		}
		sum.Systems = append(sum.Systems, s)
	}
	return sum
}

func printSummary(w io.Writer, sum Summary) {
	st := newStyle(w)
	for _, s := range sum.Systems {
		line := fmt.Sprintf("%-20s %s %8d points  epoch %d", s.System, st.state(fmt.Sprintf("%-9s", s.State)), s.Points, s.Epoch)
		if s.Stale {
			line += st.warn("  stale")
		}
		fmt.Fprintln(w, line)
		if s.Error != "" {
			fmt.Fprintln(w, "  "+st.warn(s.Error))
		}
		for _, r := range s.Report {
			fmt.Fprintln(w, "  "+st.faint(r))
		}
	}
	for _, c := range sum.Cycles {
		fmt.Fprintf(w, "%s %v\n", st.warn("cycle:"), c)
	}
	fmt.Fprintf(w, "%s state in %dms\n", sum.State, sum.DurationMS)
}

func newWatchCmd(a *app) *cobra.Command {
	var stateName string
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Recompute every system whenever the project, scene or config file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.perf = telemetry.NewPerfCollector(0)
			if err := a.open(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("creating watcher: %w", err)
			}
			defer watcher.Close()

			run := func() {
				state, err := a.evalState(stateName)
				if err != nil {
					a.log.Error("watch", "error", err)
					return
				}
				start := time.Now()
				if err := a.compute(ctx, nil, state, nil, false); err != nil && ctx.Err() == nil {
					a.log.Warn("compute", "error", err)
				}
				printSummary(cmd.OutOrStdout(), a.summarize(state, time.Since(start)))
			}

			files, err := a.watch(watcher)
			if err != nil {
				return err
			}
			run()

			var fire <-chan time.Time
			configChanged := false
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					name := filepath.Clean(ev.Name)
					if !files[name] || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
						continue
					}
					a.log.Debug("file changed", "path", name, "op", ev.Op.String())
					configChanged = configChanged || (a.configPath != "" && name == abs(a.configPath))
					fire = time.After(debounce)
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					a.log.Warn("watch", "error", err)
				case <-fire:
					fire = nil
					if configChanged {
						configChanged = false
						if err := a.setup(); err != nil {
							a.log.Error("reloading config", "error", err)
							continue
						}
					}
					if err := a.open(); err != nil {
						a.log.Error("reloading project", "error", err)
						continue
					}
					if files, err = a.watch(watcher); err != nil {
						return err
					}
					run()
				}
			}
		},
	}
	cmd.Flags().StringVar(&stateName, "state", "", "Evaluation state (default from config)")
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "Wait this long after the last change")
	return cmd
}

// watch adds the directories of the watched files to w and returns the
// file set. Directories are watched so atomic replaces are seen.
func (a *app) watch(w *fsnotify.Watcher) (map[string]bool, error) {
	files := map[string]bool{abs(a.proj.Path()): true}
	if scene, err := a.proj.ScenePath(); err == nil && scene != "" {
		files[abs(scene)] = true
	}
	if a.configPath != "" {
		files[abs(a.configPath)] = true
	}
	for f := range files {
		if err := w.Add(filepath.Dir(f)); err != nil {
			return nil, fmt.Errorf("watching %s: %w", filepath.Dir(f), err)
		}
	}
	return files, nil
}

func abs(path string) string {
	if p, err := filepath.Abs(path); err == nil {
		return p
	}
	return filepath.Clean(path)
}
