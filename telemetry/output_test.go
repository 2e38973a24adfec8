package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
)

func TestOutputManager_Disabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil {
		t.Fatal(err)
	}
	if om != nil {
		t.Fatal("expected nil manager for empty dir")
	}
	if err := om.WriteStats(StreamStats{}); err != nil {
		t.Errorf("nil WriteStats: %v", err)
	}
	if err := om.WriteStream(&scatter.PointStream{}); err != nil {
		t.Errorf("nil WriteStream: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestOutputManager_StreamRoundTrip(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer om.Close()

	s := &scatter.PointStream{System: "forest"}
	for i := 0; i < 3; i++ {
		p := scatter.NewPoint(uint64(i), geom.V(float64(i), 2, 0.5), geom.AxisZ)
		p.Instance = i
		p.Surface = 4
		s.Points = append(s.Points, p)
	}
	if err := om.WriteStream(s); err != nil {
		t.Fatal(err)
	}

	recs, err := ReadStream(om.StreamPath("forest"))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("len = %d, want 3", len(recs))
	}
	for i, r := range recs {
		if r.PX != float32(i) || r.PY != 2 || r.PZ != 0.5 {
			t.Errorf("record %d position = (%v, %v, %v)", i, r.PX, r.PY, r.PZ)
		}
		if r.Instance != uint32(i) || r.Surface != 4 {
			t.Errorf("record %d instance/surface = %d/%d", i, r.Instance, r.Surface)
		}
		if r.QW != 1 || r.NZ != 1 {
			t.Errorf("record %d rotation/normal = %v/%v", i, r.QW, r.NZ)
		}
	}
}

func TestOutputManager_HeadersOnce(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := om.WriteStats(StreamStats{Compute: i, System: "forest"}); err != nil {
			t.Fatal(err)
		}
		sample := PerfSample{System: "forest", Duration: time.Millisecond}
		if err := om.WritePerf(sample, i); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"streams.csv", "perf.csv"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 4 {
			t.Errorf("%s has %d lines, want header plus 3 rows", name, len(lines))
		}
		if !strings.HasPrefix(lines[0], "compute,system") {
			t.Errorf("%s header = %q", name, lines[0])
		}
	}
}
