package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/scatter/config"
	"github.com/pthm-cable/scatter/pipeline"
	"github.com/pthm-cable/scatter/project"
	"github.com/pthm-cable/scatter/telemetry"
)

// app carries what every command needs: runtime config, the project file
// and the emitter rebuilt from it.
type app struct {
	projectPath string
	configPath  string
	logLevel    string

	cfg  *config.Config
	log  *slog.Logger
	proj *project.Project
	em   *pipeline.Emitter
	perf *telemetry.PerfCollector // nil unless a command times computes
}

func main() {
	if err := newRootCmd(&app{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "scatter",
		Short:         "Procedural point scattering over scene surfaces",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	f := root.PersistentFlags()
	f.StringVarP(&a.projectPath, "project", "p", project.DefaultFile, "Project file")
	f.StringVar(&a.configPath, "config", "", "Path to config.yaml (empty = use defaults)")
	f.StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		newInitCmd(a),
		newAddSystemCmd(a),
		newRemoveSystemCmd(a),
		newSetCmd(a),
		newShowCmd(a),
		newListCmd(a),
		newSelectCmd(a),
		newActiveCmd(a),
		newLockCmd(a, true),
		newLockCmd(a, false),
		newApplyPresetCmd(a),
		newSavePresetCmd(a),
		newBiomeCmd(a),
		newCopyCategoryCmd(a),
		newPasteCategoryCmd(a),
		newCopySystemsCmd(a),
		newPasteSystemsCmd(a),
		newDescribeCmd(a),
		newStagesCmd(a),
		newSyncCmd(a),
		newGroupCmd(a),
		newComputeCmd(a),
		newWatchCmd(a),
	)
	return root
}

// setup loads the runtime config and installs the default logger.
func (a *app) setup() error {
	if err := config.Init(a.configPath); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = config.Cfg()

	level := a.cfg.Derived.LogLevel
	if a.logLevel != "" {
		level = config.ParseLevel(a.logLevel)
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewJSONHandler(os.Stderr, opts)
	if a.cfg.Logging.Format == "text" {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	a.log = slog.New(h)
	slog.SetDefault(a.log)
	return nil
}

// open loads the project and rebuilds its emitter.
func (a *app) open() error {
	p, err := project.Load(a.projectPath)
	if err != nil {
		return err
	}
	opts, err := pipeline.OptionsFromConfig(a.cfg)
	if err != nil {
		return err
	}
	opts.Logger = a.log
	opts.Perf = a.perf
	e, rep, err := p.Open(opts)
	if err != nil {
		return fmt.Errorf("opening project: %w", err)
	}
	for _, entry := range rep.Entries() {
		a.log.Warn("project", "error", entry)
	}
	a.proj, a.em = p, e
	return nil
}

// save captures the emitter back into the project file.
func (a *app) save() error {
	a.proj.Capture(a.em)
	if err := a.proj.Save(); err != nil {
		return err
	}
	a.log.Debug("project saved", "path", a.proj.Path(), "systems", len(a.proj.Systems))
	return nil
}

// edit opens the project, runs fn and saves the result.
func (a *app) edit(fn func() error) error {
	if err := a.open(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return a.save()
}

// active returns the active system, failing when there is none.
func (a *app) active() (string, error) {
	if a.proj.Active == "" {
		return "", fmt.Errorf("no active system (use: scatter active <id>)")
	}
	if _, ok := a.em.System(a.proj.Active); !ok {
		return "", fmt.Errorf("active system %q not found", a.proj.Active)
	}
	return a.proj.Active, nil
}

// targets resolves the --target flag: "active" or "selection".
func (a *app) targets(target string) ([]string, error) {
	switch target {
	case "active":
		id, err := a.active()
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	case "selection", "":
		ids := a.em.Selected()
		if len(ids) == 0 {
			return nil, fmt.Errorf("no systems selected")
		}
		return ids, nil
	}
	return nil, fmt.Errorf("unknown target %q (want selection or active)", target)
}
