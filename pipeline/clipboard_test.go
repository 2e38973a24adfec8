package pipeline

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/pthm-cable/scatter/components"
	"github.com/pthm-cable/scatter/scatter"
)

func TestCopyPasteCategory(t *testing.T) {
	e := newEmitter(t, DefaultOptions(), "a", "b", "c")
	if err := e.PasteCategory("b"); !errors.Is(err, scatter.ErrInvalidConfig) {
		t.Errorf("paste of empty clipboard err = %v", err)
	}
	if err := e.Write("a", "s_distribution_density", 4.0); err != nil {
		t.Fatal(err)
	}
	if err := e.CopyCategory("a", scatter.CatDistribution); err != nil {
		t.Fatal(err)
	}
	cat, src, ok := e.Clipboard().Category()
	if !ok || cat != scatter.CatDistribution || src != "a" {
		t.Fatalf("Category() = %v, %q, %v", cat, src, ok)
	}
	if desc := e.Clipboard().Describe(); !strings.Contains(desc, "s_distribution_density = 4\n") {
		t.Errorf("Describe missing density:\n%s", desc)
	}

	// Later writes to the source do not reach the clipboard.
	if err := e.Write("a", "s_distribution_density", 9.0); err != nil {
		t.Fatal(err)
	}
	if err := e.Lock("c", scatter.CatDistribution); err != nil {
		t.Fatal(err)
	}
	if err := e.PasteCategory("b", "c"); !errors.Is(err, ErrLocked) {
		t.Fatalf("paste onto locked err = %v", err)
	}
	if d := density(t, e, "b"); d != 1 {
		t.Errorf("b density after aborted paste = %v, want 1", d)
	}

	if err := e.Select("b", true); err != nil {
		t.Fatal(err)
	}
	if err := e.PasteCategory(); err != nil {
		t.Fatal(err)
	}
	if d := density(t, e, "b"); d != 4 {
		t.Errorf("b density = %v, want 4", d)
	}
	if got := e.State("b"); got != components.StateDirty {
		t.Errorf("pasted system = %v, want DIRTY", got)
	}
}

func TestCopyPasteSystems(t *testing.T) {
	e := newEmitter(t, DefaultOptions(), "a", "b")
	if _, err := e.PasteSystems(false); err == nil {
		t.Error("paste of empty clipboard succeeded")
	}
	if err := e.CopySystems(); err == nil {
		t.Error("copy with no selection succeeded")
	}
	if err := e.Write("a", "s_distribution_density", 2.0); err != nil {
		t.Fatal(err)
	}
	if err := e.CopySystems("a"); err != nil {
		t.Fatal(err)
	}
	if got := e.Clipboard().Systems(); !slices.Equal(got, []string{"a"}) {
		t.Fatalf("clipboard systems = %v", got)
	}

	added, err := e.PasteSystems(true)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(added, []string{"a.001"}) {
		t.Fatalf("added = %v", added)
	}
	if added, _ = e.PasteSystems(true); !slices.Equal(added, []string{"a.002"}) {
		t.Fatalf("second paste added %v", added)
	}
	cp, _ := e.System("a.001")
	if cp.Name != "a.001" || cp.Distribution.Density != 2 {
		t.Errorf("copy = %s density %v", cp.Name, cp.Distribution.Density)
	}

	chs := e.SyncChannels()
	if len(chs) != 1 || chs[0].Name != "sync.a" {
		t.Fatalf("channels = %+v", chs)
	}
	if n := len(chs[0].Members); n != 3*len(scatter.Categories()) {
		t.Errorf("channel members = %d", n)
	}
	if err := e.Write("a", "s_distribution_density", 6.0); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"a.001", "a.002"} {
		if d := density(t, e, id); d != 6 {
			t.Errorf("%s density = %v, want 6", id, d)
		}
	}
	if d := density(t, e, "b"); d != 1 {
		t.Errorf("b density = %v, want 1", d)
	}
}

func TestNewClipboard(t *testing.T) {
	buf := scatter.NewSystem("x", "x")
	buf.Scale.Master = true
	cat := scatter.CatScale
	e := newEmitter(t, DefaultOptions(), "a")
	e.SetClipboard(NewClipboard(&cat, "x", buf, nil))
	if err := e.PasteCategory("a"); err != nil {
		t.Fatal(err)
	}
	if a, _ := e.System("a"); !a.Scale.Master {
		t.Error("restored clipboard category not pasted")
	}
	if c := NewClipboard(nil, "", nil, nil); len(c.Systems()) != 0 || c.CategoryBuffer() != nil {
		t.Error("empty clipboard not empty")
	}
}
