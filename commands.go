package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/cobra"

	"github.com/pthm-cable/scatter/project"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/settings"
)

func newInitCmd(a *app) *cobra.Command {
	var scene, presets string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty project file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if project.Exists(a.projectPath) && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", a.projectPath)
			}
			p, err := project.New(a.projectPath, scene)
			if err != nil {
				return err
			}
			p.PresetDir = presets
			if _, err := p.LoadScene(); err != nil {
				return err
			}
			if err := p.Save(); err != nil {
				return err
			}
			a.log.Info("project created", "path", p.Path(), "scene", scene)
			return nil
		},
	}
	cmd.Flags().StringVar(&scene, "scene", "", "Scene snapshot JSON, relative to the project file")
	cmd.Flags().StringVar(&presets, "preset-dir", "", "Preset directory (default ~/.scatter/presets)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing project")
	return cmd
}

func newAddSystemCmd(a *app) *cobra.Command {
	var id, color, preset, group string
	var surfaces, instances []string
	cmd := &cobra.Command{
		Use:   "add-system NAME",
		Short: "Add a scatter system and make it active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.edit(func() error {
				name := args[0]
				if id == "" {
					id = systemID(name)
				}
				sys := scatter.NewSystem(id, name)
				sys.Surfaces = surfaces
				if color != "" {
					c, err := colorful.Hex(color)
					if err != nil {
						return fmt.Errorf("--color: %w", err)
					}
					sys.Color = [3]float64{c.R, c.G, c.B}
				}
				if group != "" {
					a.em.AddGroup(group)
					sys.Group = group
				}
				if err := a.bindInstances(sys, instances); err != nil {
					return err
				}
				if preset != "" {
					p, err := a.loadPreset(preset)
					if err != nil {
						return err
					}
					res, err := settings.ApplyPreset(sys, p)
					if err != nil {
						return err
					}
					if len(res.Ignored) > 0 {
						a.log.Warn("preset keys ignored", "system", id, "keys", res.Ignored)
					}
				}
				if err := a.em.AddSystem(sys); err != nil {
					return err
				}
				a.proj.Active = id
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&id, "id", "", "System id (default derived from NAME)")
	f.StringVar(&color, "color", "", "Display color as #rrggbb")
	f.StringSliceVar(&surfaces, "surfaces", nil, "Surface objects to scatter on")
	f.StringSliceVar(&instances, "instances", nil, "Instance collection, or a list of instance objects")
	f.StringVar(&preset, "preset", "", "Preset to apply, a path or a name in the preset directory")
	f.StringVar(&group, "group", "", "Group to join, created if missing")
	return cmd
}

// systemID derives an id from a display name.
func systemID(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '/' || r == '\\':
			return '_'
		case r < ' ':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(name)))
}

// bindInstances points sys at its instances. A single name that is a scene
// collection is used as is; otherwise the objects are collected into a new
// project collection "<id>.instances".
func (a *app) bindInstances(sys *scatter.System, names []string) error {
	if len(names) == 0 {
		return nil
	}
	sc := a.em.Scene()
	if len(names) == 1 {
		if _, ok := sc.Collections[names[0]]; ok {
			sys.Instances.CollPtr = names[0]
			return nil
		}
	}
	for _, n := range names {
		if _, ok := sc.Object(n); !ok {
			return scatter.Errorf(scatter.KindInvalidReference, sys.ID, "s_instances_coll_ptr", "instance %q not in scene", n)
		}
	}
	coll := sys.ID + ".instances"
	if a.proj.Collections == nil {
		a.proj.Collections = map[string][]string{}
	}
	a.proj.Collections[coll] = slices.Clone(names)
	sc.Collections[coll] = slices.Clone(names)
	sys.Instances.CollPtr = coll
	return nil
}

// loadPreset reads a preset by path, falling back to the preset directory.
func (a *app) loadPreset(name string) (*settings.Preset, error) {
	if _, err := os.Stat(name); err == nil {
		return settings.LoadPreset(name)
	}
	dir, err := a.proj.Presets()
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(name, ".preset") {
		name += ".preset"
	}
	return settings.LoadPreset(filepath.Join(dir, name))
}

func newRemoveSystemCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-system ID...",
		Short: "Remove systems",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.edit(func() error {
				for _, id := range args {
					if err := a.em.RemoveSystem(id); err != nil {
						return err
					}
					delete(a.proj.Collections, id+".instances")
				}
				return nil
			})
		},
	}
}

// parseValue reads a command-line value as JSON, falling back to a plain
// string so enum values need no quoting.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func newSetCmd(a *app) *cobra.Command {
	var system string
	var mods scatter.Modifiers
	var noSync bool
	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Write one property, e.g. set s_distribution_density 4",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.edit(func() error {
				id := system
				if id == "" {
					var err error
					if id, err = a.active(); err != nil {
						return err
					}
				}
				rec, err := scatter.NewChange(id, args[0], parseValue(args[1]))
				if err != nil {
					return err
				}
				mods.Sync = !noSync
				rec.Modifiers = mods
				if err := a.em.Set(rec); err != nil {
					return err
				}
				a.log.Info("property set", "change", rec.String(), "alt", mods.Alt, "sync", mods.Sync)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&system, "system", "", "Target system (default active)")
	f.BoolVar(&mods.Alt, "alt", false, "Also write every selected system")
	f.BoolVar(&noSync, "nosync", false, "Do not mirror through sync channels")
	f.BoolVar(&mods.Delay, "delay", false, "Defer recomputation")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var cats []string
	var full bool
	cmd := &cobra.Command{
		Use:   "show [ID]",
		Short: "Print the properties of a system",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			} else {
				var err error
				if id, err = a.active(); err != nil {
					return err
				}
			}
			sys, ok := a.em.System(id)
			if !ok {
				return fmt.Errorf("system %q not found", id)
			}
			opts := settings.Options{Full: full}
			for _, c := range cats {
				cat, err := scatter.ParseCategory(c)
				if err != nil {
					return err
				}
				opts.Categories = append(opts.Categories, cat)
			}
			out := newStyle(cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", out.swatch(sys.Color), sys.ID, sys.Name)
			printKeys(cmd.OutOrStdout(), out, settings.Flatten(sys, opts))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&cats, "category", nil, "Limit to categories")
	cmd.Flags().BoolVar(&full, "full", false, "Include defaults of disabled features")
	return cmd
}

func printKeys(w io.Writer, st style, d map[string]any) {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s = %v\n", st.faint(k), d[k])
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List systems in compute order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			st := newStyle(w)
			for _, id := range a.em.Order() {
				sys, _ := a.em.System(id)
				mark := " "
				if id == a.proj.Active {
					mark = st.bold("*")
				}
				var flags []string
				if sys.Selected {
					flags = append(flags, "selected")
				}
				if sys.Group != "" {
					flags = append(flags, "group="+sys.Group)
				}
				var locked []string
				for _, c := range scatter.Categories() {
					if sys.Locked(c) {
						locked = append(locked, c.String())
					}
				}
				if len(locked) > 0 {
					flags = append(flags, "locked="+strings.Join(locked, ","))
				}
				if ptrs := sys.EcosystemPtrs(); len(ptrs) > 0 {
					flags = append(flags, "after="+strings.Join(ptrs, ","))
				}
				fmt.Fprintf(w, "%s %s %-20s %-20s %s\n", mark, st.swatch(sys.Color), id, sys.Name, st.faint(strings.Join(flags, " ")))
			}
			for _, c := range a.em.Cycles() {
				fmt.Fprintln(w, st.warn("cycle: "+strings.Join(c, " -> ")))
			}
			return nil
		},
	}
}

func newSelectCmd(a *app) *cobra.Command {
	var off, only bool
	cmd := &cobra.Command{
		Use:   "select ID...",
		Short: "Select or deselect systems",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.edit(func() error {
				if only {
					for _, id := range a.em.Selected() {
						if err := a.em.Select(id, false); err != nil {
							return err
						}
					}
				}
				for _, id := range args {
					if err := a.em.Select(id, !off); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "Deselect instead")
	cmd.Flags().BoolVar(&only, "only", false, "Clear the selection first")
	return cmd
}

func newActiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "active ID",
		Short: "Set the active system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.edit(func() error {
				if _, ok := a.em.System(args[0]); !ok {
					return fmt.Errorf("system %q not found", args[0])
				}
				a.proj.Active = args[0]
				return nil
			})
		},
	}
}

func newLockCmd(a *app, lock bool) *cobra.Command {
	use, short := "lock", "Lock categories of a system against writes"
	if !lock {
		use, short = "unlock", "Unlock categories of a system"
	}
	return &cobra.Command{
		Use:   use + " ID CATEGORY...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := parseCategories(args[1:])
			if err != nil {
				return err
			}
			return a.edit(func() error {
				for _, c := range cats {
					var err error
					if lock {
						err = a.em.Lock(args[0], c)
					} else {
						err = a.em.Unlock(args[0], c)
					}
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func parseCategories(names []string) ([]scatter.Category, error) {
	cats := make([]scatter.Category, 0, len(names))
	for _, n := range names {
		c, err := scatter.ParseCategory(n)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, nil
}

func newApplyPresetCmd(a *app) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "apply-preset PRESET",
		Short: "Apply a preset to the selection or the active system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.edit(func() error {
				p, err := a.loadPreset(args[0])
				if err != nil {
					return err
				}
				ids, err := a.targets(target)
				if err != nil {
					return err
				}
				return a.em.ApplyPreset(p, ids...)
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", "selection", "selection or active")
	return cmd
}

func newSavePresetCmd(a *app) *cobra.Command {
	var system, category, dir string
	cmd := &cobra.Command{
		Use:   "save-preset NAME",
		Short: "Save a system, or one of its categories, as a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			id := system
			if id == "" {
				var err error
				if id, err = a.active(); err != nil {
					return err
				}
			}
			sys, ok := a.em.System(id)
			if !ok {
				return fmt.Errorf("system %q not found", id)
			}
			var cats []scatter.Category
			var cat *scatter.Category
			if category != "" {
				c, err := scatter.ParseCategory(category)
				if err != nil {
					return err
				}
				cats, cat = []scatter.Category{c}, &c
			}
			if dir == "" {
				var err error
				if dir, err = a.proj.Presets(); err != nil {
					return err
				}
			}
			path, err := settings.SavePreset(dir, settings.NewPreset(sys, args[0], cats), cat)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&system, "system", "", "Source system (default active)")
	f.StringVar(&category, "category", "", "Save only this category")
	f.StringVar(&dir, "dir", "", "Preset directory (default from project)")
	return cmd
}

func newBiomeCmd(a *app) *cobra.Command {
	var surfaces []string
	cmd := &cobra.Command{
		Use:   "biome FILE",
		Short: "Add one system per biome layer, grouped under the biome name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.edit(func() error {
				b, err := settings.ReadBiome(args[0])
				if err != nil {
					return err
				}
				sc := a.em.Scene()
				rep := &scatter.Report{}
				systems, group, err := settings.BindBiome(b, sc, surfaces, rep)
				if err != nil {
					return err
				}
				for _, entry := range rep.Entries() {
					a.log.Warn("biome", "error", entry)
				}
				a.em.AddGroup(group.Name)
				if a.proj.Collections == nil {
					a.proj.Collections = map[string][]string{}
				}
				for _, sys := range systems {
					a.proj.Collections[sys.Instances.CollPtr] = sc.Collections[sys.Instances.CollPtr]
					if err := a.em.AddSystem(sys); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), sys.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&surfaces, "surfaces", nil, "Surface objects to scatter on")
	return cmd
}

func newCopyCategoryCmd(a *app) *cobra.Command {
	var system string
	cmd := &cobra.Command{
		Use:   "copy-category CATEGORY",
		Short: "Copy one category of a system to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := scatter.ParseCategory(args[0])
			if err != nil {
				return err
			}
			return a.edit(func() error {
				id := system
				if id == "" {
					var err error
					if id, err = a.active(); err != nil {
						return err
					}
				}
				return a.em.CopyCategory(id, c)
			})
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "Source system (default active)")
	return cmd
}

func newPasteCategoryCmd(a *app) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "paste-category [ID...]",
		Short: "Paste the clipboard category onto systems",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.edit(func() error {
				ids := args
				if len(ids) == 0 {
					var err error
					if ids, err = a.targets(target); err != nil {
						return err
					}
				}
				return a.em.PasteCategory(ids...)
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", "selection", "selection or active, when no ids are given")
	return cmd
}

func newCopySystemsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "copy-systems [ID...]",
		Short: "Copy systems (default the selection) to the clipboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.edit(func() error { return a.em.CopySystems(args...) })
		},
	}
}

func newPasteSystemsCmd(a *app) *cobra.Command {
	var sync bool
	cmd := &cobra.Command{
		Use:   "paste-systems",
		Short: "Add copies of the clipboard systems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.edit(func() error {
				added, err := a.em.PasteSystems(sync)
				if err != nil {
					return err
				}
				for _, id := range added {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&sync, "sync", false, "Keep each copy synchronized with its source")
	return cmd
}

func newDescribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Print the clipboard contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			desc := a.em.Clipboard().Describe()
			if desc == "" {
				desc = "clipboard is empty\n"
			}
			fmt.Fprint(cmd.OutOrStdout(), desc)
			return nil
		},
	}
}

func newStagesCmd(a *app) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List the compute stages and the categories they read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			reg := a.em.Stages()
			stages := reg.All()
			if category != "" {
				cats, err := parseCategories([]string{category})
				if err != nil {
					return err
				}
				stages = reg.Reading(cats[0])
			}
			w := cmd.OutOrStdout()
			st := newStyle(w)
			for _, info := range stages {
				reads := make([]string, len(info.Reads))
				for i, c := range info.Reads {
					reads[i] = c.String()
				}
				fmt.Fprintf(w, "%-12s %-10s %s\n", st.bold(info.ID), info.Name, st.faint(strings.Join(reads, ",")))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only stages reading this category")
	return cmd
}

func newSyncCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Manage sync channels",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add NAME",
			Short: "Create a channel",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.edit(func() error { return a.em.AddSyncChannel(args[0]) })
			},
		},
		&cobra.Command{
			Use:   "remove NAME",
			Short: "Delete a channel",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.edit(func() error { return a.em.RemoveSyncChannel(args[0]) })
			},
		},
		&cobra.Command{
			Use:   "join NAME SYSTEM [CATEGORY...]",
			Short: "Add categories of a system (default all) to a channel",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cats, err := parseCategories(args[2:])
				if err != nil {
					return err
				}
				return a.edit(func() error { return a.em.SyncJoin(args[0], args[1], cats...) })
			},
		},
		&cobra.Command{
			Use:   "leave NAME SYSTEM [CATEGORY...]",
			Short: "Remove categories of a system (default all) from a channel",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cats, err := parseCategories(args[2:])
				if err != nil {
					return err
				}
				return a.edit(func() error { return a.em.SyncLeave(args[0], args[1], cats...) })
			},
		},
		&cobra.Command{
			Use:   "enable NAME",
			Short: "Turn mirroring on",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.edit(func() error { return a.em.SetSyncEnabled(args[0], true) })
			},
		},
		&cobra.Command{
			Use:   "disable NAME",
			Short: "Turn mirroring off",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.edit(func() error { return a.em.SetSyncEnabled(args[0], false) })
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List channels and their members",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.open(); err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				st := newStyle(w)
				for _, ch := range a.em.SyncChannels() {
					name := st.bold(ch.Name)
					if !ch.Enabled {
						name += st.faint(" (disabled)")
					}
					fmt.Fprintln(w, name)
					bySystem := map[string][]string{}
					var order []string
					for _, m := range ch.Members {
						if _, ok := bySystem[m.System]; !ok {
							order = append(order, m.System)
						}
						bySystem[m.System] = append(bySystem[m.System], m.Category.String())
					}
					for _, id := range order {
						fmt.Fprintf(w, "  %-20s %s\n", id, st.faint(strings.Join(bySystem[id], ",")))
					}
				}
				return nil
			},
		},
	)
	return cmd
}

func newGroupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage system groups",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add NAME",
			Short: "Create a group",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.edit(func() error {
					a.em.AddGroup(args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "join SYSTEM GROUP",
			Short: "Move a system into a group (empty GROUP leaves)",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.edit(func() error { return a.em.JoinGroup(args[0], args[1]) })
			},
		},
		&cobra.Command{
			Use:   "set GROUP KEY VALUE",
			Short: "Write one s_gr_ property of a group",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.edit(func() error { return a.em.SetGroup(args[0], args[1], parseValue(args[2])) })
			},
		},
	)
	return cmd
}
