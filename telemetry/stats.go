package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
)

// StreamStats summarizes one computed point stream.
type StreamStats struct {
	Compute int    `csv:"compute"`
	System  string `csv:"system"`
	Epoch   uint64 `csv:"epoch"`
	Points  int    `csv:"points"`
	Errors  int    `csv:"errors"`

	// Instance usage
	Instances int `csv:"instances"`

	// Scale distribution (largest axis)
	ScaleMean float64 `csv:"scale_mean"`
	ScaleStd  float64 `csv:"scale_std"`
	ScaleP10  float64 `csv:"scale_p10"`
	ScaleP50  float64 `csv:"scale_p50"`
	ScaleP90  float64 `csv:"scale_p90"`

	// Bounds
	MinZ float64 `csv:"min_z"`
	MaxZ float64 `csv:"max_z"`
}

// Percentile returns the nearest-rank p-th quantile of sorted, p in
// [0, 1]. Returns 0 for an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// ComputeScaleStats returns mean, standard deviation and the 10th, 50th and
// 90th percentiles of values. values is sorted in place.
func ComputeScaleStats(values []float64) (mean, std, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0, 0
	}
	slices.Sort(values)
	mean, std = stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		std = 0
	}
	return mean, std, Percentile(values, 0.1), Percentile(values, 0.5), Percentile(values, 0.9)
}

// Summarize computes the stats of s. rep may be nil.
func Summarize(compute int, s *scatter.PointStream, rep *scatter.Report) StreamStats {
	st := StreamStats{Compute: compute, Errors: len(rep.Entries())}
	if s == nil {
		return st
	}
	st.System, st.Epoch, st.Points = s.System, s.Epoch, len(s.Points)
	if len(s.Points) == 0 {
		return st
	}

	scales := make([]float64, len(s.Points))
	used := map[int]bool{}
	st.MinZ, st.MaxZ = s.Points[0].Pos.Z, s.Points[0].Pos.Z
	for i, p := range s.Points {
		scales[i] = geom.MaxAbs(p.Scale)
		used[p.Instance] = true
		st.MinZ = min(st.MinZ, p.Pos.Z)
		st.MaxZ = max(st.MaxZ, p.Pos.Z)
	}
	st.Instances = len(used)
	st.ScaleMean, st.ScaleStd, st.ScaleP10, st.ScaleP50, st.ScaleP90 = ComputeScaleStats(scales)
	return st
}

// LogValue implements slog.LogValuer.
func (s StreamStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("system", s.System),
		slog.Uint64("epoch", s.Epoch),
		slog.Int("points", s.Points),
		slog.Int("errors", s.Errors),
		slog.Int("instances", s.Instances),
		slog.Float64("scale_mean", s.ScaleMean),
		slog.Float64("scale_p50", s.ScaleP50),
	)
}
