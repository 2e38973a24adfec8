// Scatter preview tool - top-down view of a project's point streams with
// sliders for the active system.
//
// Usage: go run ./cmd/scatterpreview -project scatter.toml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/chewxy/math32"
	rl "github.com/gen2brain/raylib-go/raylib"
	gui "github.com/gen2brain/raylib-go/raygui"

	"github.com/pthm-cable/scatter/camera"
	"github.com/pthm-cable/scatter/components"
	"github.com/pthm-cable/scatter/config"
	"github.com/pthm-cable/scatter/pipeline"
	"github.com/pthm-cable/scatter/project"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/settings"
	"github.com/pthm-cable/scatter/telemetry"
)

const panelWidth = 340

// slider binds one numeric property of the active system to a slider.
type slider struct {
	Label    string
	Key      string
	Min, Max float32
	Format   string
	Int      bool
}

var sliders = []slider{
	{Label: "Density (points per m²)", Key: "s_distribution_density", Min: 0, Max: 50, Format: "%.1f"},
	{Label: "Seed", Key: "s_distribution_seed", Min: 0, Max: 999, Format: "%.0f", Int: true},
	{Label: "Limit distance", Key: "s_distribution_limit_distance", Min: 0, Max: 2, Format: "%.2f"},
	{Label: "Scale multiplier", Key: "s_scale_default_multiplier", Min: 0.05, Max: 5, Format: "%.2f"},
	{Label: "Master seed", Key: scatter.MasterSeedKey, Min: 0, Max: 999, Format: "%.0f", Int: true},
}

func main() {
	projectPath := flag.String("project", project.DefaultFile, "Project file")
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Derived.LogLevel})))

	proj, err := project.Load(*projectPath)
	if err != nil {
		slog.Error("failed to load project", "error", err)
		os.Exit(1)
	}
	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		slog.Error("invalid pipeline config", "error", err)
		os.Exit(1)
	}
	em, rep, err := proj.Open(opts)
	if err != nil {
		slog.Error("failed to open project", "error", err)
		os.Exit(1)
	}
	if !rep.Empty() {
		slog.Warn("project", "report", rep)
	}

	width, height := int32(cfg.Preview.Width), int32(cfg.Preview.Height)
	rl.InitWindow(width, height, "Scatter Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Preview.TargetFPS))

	viewW := float32(width - panelWidth)
	view := camera.NewViewport(viewW, float32(height), -10, -10, 10, 10)
	state := opts.State
	active := proj.Active
	if active == "" && len(em.IDs()) > 0 {
		active = em.IDs()[0]
	}
	fitted := false
	status := ""

	// Writes come from this goroutine, so the flag needs no locking.
	needsCompute := true
	em.Subscribe(func(ev telemetry.Event) {
		if ev.Type == telemetry.EventDirty {
			needsCompute = true
		}
	})

	for !rl.WindowShouldClose() {
		// Recompute whatever a slider dirtied.
		if needsCompute {
			needsCompute = false
			if err := em.ComputeAll(context.Background(), state); err != nil {
				status = err.Error()
			} else {
				status = ""
			}
			if !fitted {
				fitView(view, em)
				fitted = true
			}
		}

		// Navigation
		mouse := rl.GetMousePosition()
		if mouse.X < viewW {
			if wheel := rl.GetMouseWheelMove(); wheel != 0 {
				view.ZoomBy(math32.Pow(1.1, wheel))
			}
			if rl.IsMouseButtonDown(rl.MouseButtonRight) {
				d := rl.GetMouseDelta()
				view.Pan(d.X, d.Y)
			}
		}
		if rl.IsKeyPressed(rl.KeyF) {
			fitView(view, em)
		}
		if rl.IsKeyPressed(rl.KeyS) {
			proj.Active = active
			proj.Capture(em)
			if err := proj.Save(); err != nil {
				status = err.Error()
			} else {
				status = "saved " + proj.Path()
			}
		}
		if rl.IsKeyPressed(rl.KeyC) {
			rl.SetClipboardText(em.Clipboard().Describe())
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		drawStreams(em, view, cfg.Preview.PointRadius, active)
		rl.DrawRectangle(int32(viewW), 0, panelWidth, height, rl.NewColor(245, 245, 245, 255))
		active = drawPanel(em, viewW+10, active)

		if status != "" {
			rl.DrawText(status, 10, height-24, 14, rl.Maroon)
		}
		rl.DrawText("Wheel: zoom  RMB: pan  F: fit  S: save  C: copy clipboard", 10, 10, 12, rl.Gray)
		rl.EndDrawing()
	}
}

// fitView frames every computed point.
func fitView(v *camera.Viewport, em *pipeline.Emitter) {
	var xs, ys []float32
	for _, id := range em.IDs() {
		s := em.Stream(id)
		if s == nil {
			continue
		}
		for _, p := range s.Points {
			xs = append(xs, float32(p.Pos.X))
			ys = append(ys, float32(p.Pos.Y))
		}
	}
	v.FitPoints(xs, ys, 1)
}

func drawStreams(em *pipeline.Emitter, v *camera.Viewport, radius float32, active string) {
	for _, id := range em.Order() {
		s := em.Stream(id)
		if s == nil {
			continue
		}
		col := toColor(s.Color, 255)
		if id != active {
			col = toColor(s.Color, 110)
		}
		for _, p := range s.Points {
			wx, wy := float32(p.Pos.X), float32(p.Pos.Y)
			if !v.IsVisible(wx, wy, radius/v.Zoom) {
				continue
			}
			sx, sy := v.WorldToScreen(wx, wy)
			r := radius * math32.Max(0.5, float32(p.Scale.X))
			rl.DrawCircleV(rl.Vector2{X: sx, Y: sy}, r, col)
		}
	}
}

// drawPanel draws the system list, the sliders of the active system and its
// output fields. It returns the possibly changed active system.
func drawPanel(em *pipeline.Emitter, x float32, active string) string {
	y := float32(10)
	rl.DrawText("Systems", int32(x), int32(y), 20, rl.DarkGray)
	y += 30
	for _, id := range em.Order() {
		sys, _ := em.System(id)
		st := em.State(id)
		rl.DrawRectangle(int32(x), int32(y+4), 12, 12, toColor(sys.Color, 255))
		label := fmt.Sprintf("%s  [%s]", id, st)
		if id == active {
			label = "> " + label
		}
		if gui.Button(rl.Rectangle{X: x + 18, Y: y, Width: panelWidth - 40, Height: 20}, label) {
			active = id
		}
		y += 24
	}

	sys, ok := em.System(active)
	if !ok {
		return active
	}
	y += 10
	rl.DrawLine(int32(x), int32(y), int32(x)+panelWidth-20, int32(y), rl.LightGray)
	y += 10
	rl.DrawText(sys.Name, int32(x), int32(y), 18, rl.DarkGray)
	y += 28

	for _, s := range sliders {
		cur := currentValue(sys, s.Key)
		rl.DrawText(s.Label, int32(x), int32(y), 14, rl.Gray)
		y += 18
		next := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: panelWidth - 90, Height: 20}, "", "", cur, s.Min, s.Max)
		rl.DrawText(fmt.Sprintf(s.Format, cur), int32(x+panelWidth-80), int32(y+2), 16, rl.DarkGray)
		if next != cur && (!s.Int || int(next) != int(cur)) {
			var value any = float64(next)
			if s.Int {
				value = int(next)
			}
			if err := em.Write(active, s.Key, value); err != nil {
				slog.Warn("write failed", "system", active, "key", s.Key, "error", err)
			}
		}
		y += 30
	}

	y += 10
	rl.DrawText("Output", int32(x), int32(y), 18, rl.DarkGray)
	y += 26
	out := output(em, active)
	for _, f := range components.OutputFieldDescriptors() {
		v := components.GetOutputValue(out, f.ID)
		rl.DrawText(f.Label, int32(x), int32(y), 14, rl.Gray)
		if f.IsBar {
			frac := math32.Max(0, math32.Min(1, (v-f.Min)/(f.Max-f.Min)))
			rl.DrawRectangle(int32(x+110), int32(y), int32(frac*150), 14, rl.Orange)
			rl.DrawRectangleLines(int32(x+110), int32(y), 150, 14, rl.LightGray)
		} else {
			rl.DrawText(fmt.Sprintf(f.Format, v), int32(x+110), int32(y), 14, rl.DarkGray)
		}
		y += 20
	}
	return active
}

// output assembles the Output component view of a system for the field
// descriptors.
func output(em *pipeline.Emitter, id string) *components.Output {
	st, ok := em.Status(id)
	if !ok {
		return nil
	}
	return &components.Output{Stream: em.Stream(id), Report: em.Report(id), Epoch: st.Epoch, Stale: st.Stale}
}

func currentValue(sys *scatter.System, key string) float32 {
	v, ok := settings.Get(sys, key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return float32(n)
	case int:
		return float32(n)
	}
	return 0
}

func toColor(c [3]float64, alpha uint8) rl.Color {
	ch := func(f float64) uint8 { return uint8(math32.Max(0, math32.Min(1, float32(f))) * 255) }
	return rl.NewColor(ch(c[0]), ch(c[1]), ch(c[2]), alpha)
}
