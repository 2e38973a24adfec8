package telemetry

import (
	"log/slog"
	"time"
)

// Stage names of one system compute, in pipeline order.
const (
	StageSample     = "sample"
	StageTransfer   = "transfer"
	StageFields     = "fields"
	StageInfluence  = "influence"
	StageTransform  = "transform"
	StageVisibility = "visibility"
	StageInstances  = "instances"
	StageFinalize   = "finalize"
)

// Stages lists the stage names in pipeline order.
var Stages = []string{
	StageSample, StageTransfer, StageFields, StageInfluence,
	StageTransform, StageVisibility, StageInstances, StageFinalize,
}

// PerfSample holds timing data for a single compute.
type PerfSample struct {
	System   string
	Points   int
	Duration time.Duration
	Stages   map[string]time.Duration
}

// PerfCollector tracks compute timings over a rolling window. It is not
// safe for concurrent use; the emitter serializes computes.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentStages map[string]time.Duration
	computeStart  time.Time
	stageStart    time.Time
	lastStage     string
	system        string
	computes      int
	now           func() time.Time
}

// NewPerfCollector creates a new performance collector averaging over the
// last windowSize computes.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 32
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentStages: make(map[string]time.Duration),
		now:           time.Now,
	}
}

// StartCompute begins timing a compute of system.
func (p *PerfCollector) StartCompute(system string) {
	if p == nil {
		return
	}
	p.computeStart = p.now()
	p.currentStages = make(map[string]time.Duration)
	p.lastStage = ""
	p.system = system
}

// StartStage begins timing a stage, ending the previous one.
func (p *PerfCollector) StartStage(stage string) {
	if p == nil {
		return
	}
	now := p.now()
	if p.lastStage != "" {
		p.currentStages[p.lastStage] += now.Sub(p.stageStart)
	}
	p.stageStart = now
	p.lastStage = stage
}

// EndCompute finishes timing the current compute and records the sample.
func (p *PerfCollector) EndCompute(points int) PerfSample {
	if p == nil {
		return PerfSample{}
	}
	now := p.now()
	if p.lastStage != "" {
		p.currentStages[p.lastStage] += now.Sub(p.stageStart)
	}
	sample := PerfSample{
		System:   p.system,
		Points:   points,
		Duration: now.Sub(p.computeStart),
		Stages:   p.currentStages,
	}
	p.samples[p.writeIndex] = sample
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	p.computes++
	p.lastStage = ""
	return sample
}

// Computes is the number of computes recorded since creation.
func (p *PerfCollector) Computes() int {
	if p == nil {
		return 0
	}
	return p.computes
}

// Last returns the most recent sample.
func (p *PerfCollector) Last() PerfSample {
	if p == nil || p.sampleCount == 0 {
		return PerfSample{}
	}
	return p.samples[(p.writeIndex+p.windowSize-1)%p.windowSize]
}

// LogValue implements slog.LogValuer.
func (s PerfSample) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("system", s.System),
		slog.Int("points", s.Points),
		slog.Int64("duration_us", s.Duration.Microseconds()),
	}
	for _, stage := range Stages {
		if d, ok := s.Stages[stage]; ok {
			attrs = append(attrs, slog.Int64(stage+"_us", d.Microseconds()))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgDuration time.Duration
	MinDuration time.Duration
	MaxDuration time.Duration

	// StageAvg is the mean duration per stage.
	StageAvg map[string]time.Duration
	// StagePct is each stage's share of the mean compute time.
	StagePct map[string]float64

	// PointsPerSecond is the output throughput.
	PointsPerSecond float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p == nil || p.sampleCount == 0 {
		return PerfStats{
			StageAvg: make(map[string]time.Duration),
			StagePct: make(map[string]float64),
		}
	}

	var total time.Duration
	var minD, maxD time.Duration
	points := 0
	stageSum := make(map[string]time.Duration)
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.Duration
		points += s.Points
		if i == 0 || s.Duration < minD {
			minD = s.Duration
		}
		if s.Duration > maxD {
			maxD = s.Duration
		}
		for stage, d := range s.Stages {
			stageSum[stage] += d
		}
	}

	avg := total / time.Duration(p.sampleCount)
	stageAvg := make(map[string]time.Duration)
	stagePct := make(map[string]float64)
	for stage, sum := range stageSum {
		stageAvg[stage] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			stagePct[stage] = float64(stageAvg[stage]) / float64(avg) * 100
		}
	}

	var pps float64
	if total > 0 {
		pps = float64(points) / total.Seconds()
	}

	return PerfStats{
		AvgDuration:     avg,
		MinDuration:     minD,
		MaxDuration:     maxD,
		StageAvg:        stageAvg,
		StagePct:        stagePct,
		PointsPerSecond: pps,
	}
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_compute_us", s.AvgDuration.Microseconds(),
		"min_compute_us", s.MinDuration.Microseconds(),
		"max_compute_us", s.MaxDuration.Microseconds(),
		"points_per_sec", int(s.PointsPerSecond),
	}
	for _, stage := range Stages {
		if pct, ok := s.StagePct[stage]; ok && pct > 0.1 {
			attrs = append(attrs, stage+"_pct", int(pct*10)/10.0)
		}
	}
	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_compute_us", s.AvgDuration.Microseconds()),
		slog.Int64("min_compute_us", s.MinDuration.Microseconds()),
		slog.Int64("max_compute_us", s.MaxDuration.Microseconds()),
		slog.Float64("points_per_sec", s.PointsPerSecond),
	}
	for _, stage := range Stages {
		if pct, ok := s.StagePct[stage]; ok {
			attrs = append(attrs, slog.Float64(stage+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfCSV is a flat record of one compute for CSV export.
type PerfCSV struct {
	Compute      int    `csv:"compute"`
	System       string `csv:"system"`
	Points       int    `csv:"points"`
	DurationUS   int64  `csv:"duration_us"`
	SampleUS     int64  `csv:"sample_us"`
	TransferUS   int64  `csv:"transfer_us"`
	FieldsUS     int64  `csv:"fields_us"`
	InfluenceUS  int64  `csv:"influence_us"`
	TransformUS  int64  `csv:"transform_us"`
	VisibilityUS int64  `csv:"visibility_us"`
	InstancesUS  int64  `csv:"instances_us"`
	FinalizeUS   int64  `csv:"finalize_us"`
}

// ToCSV converts the sample to a flat CSV-friendly struct.
func (s PerfSample) ToCSV(compute int) PerfCSV {
	us := func(stage string) int64 { return s.Stages[stage].Microseconds() }
	return PerfCSV{
		Compute:      compute,
		System:       s.System,
		Points:       s.Points,
		DurationUS:   s.Duration.Microseconds(),
		SampleUS:     us(StageSample),
		TransferUS:   us(StageTransfer),
		FieldsUS:     us(StageFields),
		InfluenceUS:  us(StageInfluence),
		TransformUS:  us(StageTransform),
		VisibilityUS: us(StageVisibility),
		InstancesUS:  us(StageInstances),
		FinalizeUS:   us(StageFinalize),
	}
}
