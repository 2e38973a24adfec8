package components

import (
	"testing"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateClean, "CLEAN"},
		{StateDirty, "DIRTY"},
		{StateComputing, "COMPUTING"},
		{StateReady, "READY"},
		{StateFailed, "FAILED"},
		{State(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
	if StateCount() != 5 {
		t.Errorf("StateCount() = %d, want 5", StateCount())
	}
}

func TestGetOutputValue(t *testing.T) {
	var empty *Output
	if empty.Ready() {
		t.Error("nil output reported ready")
	}
	if got := GetOutputValue(empty, "points"); got != 0 {
		t.Errorf("nil points = %v", got)
	}

	rep := &scatter.Report{}
	rep.Add(scatter.Errorf(scatter.KindStaleDependency, "a", "s_ecosystem", "no stream"))
	o := &Output{
		Stream: &scatter.PointStream{Points: []scatter.Point{
			scatter.NewPoint(1, geom.Zero, geom.AxisZ),
			scatter.NewPoint(2, geom.Zero, geom.AxisZ),
		}},
		Report: rep,
		Epoch:  3,
		Stale:  true,
	}
	if !o.Ready() {
		t.Error("expected ready output")
	}
	for _, fd := range OutputFieldDescriptors() {
		want := map[string]float32{"points": 2, "epoch": 3, "errors": 1, "stale": 1}[fd.ID]
		if got := GetOutputValue(o, fd.ID); got != want {
			t.Errorf("%s = %v, want %v", fd.ID, got, want)
		}
	}
}
