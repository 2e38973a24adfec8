package pipeline

import (
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/telemetry"
)

// StageInfo describes one compute stage for listings and the preview.
type StageInfo struct {
	ID          string             // Internal identifier (used for perf tracking)
	Name        string             // Display name
	Description string             // What this stage does
	Reads       []scatter.Category // Categories whose settings the stage consumes
}

// StageRegistry holds metadata about all stages, in compute order.
// This centralizes stage naming so listings and the perf tracker stay in sync.
type StageRegistry struct {
	stages []StageInfo
	byID   map[string]StageInfo
}

// NewStageRegistry creates a registry with all known stages.
func NewStageRegistry() *StageRegistry {
	reg := &StageRegistry{
		byID: make(map[string]StageInfo),
	}
	reg.registerDefaults()
	return reg
}

// registerDefaults adds all known stages to the registry.
// Update this when adding new stages.
func (r *StageRegistry) registerDefaults() {
	r.Register(StageInfo{ID: telemetry.StageSample, Name: "Sample", Description: "Emits candidate points from surfaces, curves or empties",
		Reads: []scatter.Category{scatter.CatDistribution}})
	r.Register(StageInfo{ID: telemetry.StageTransfer, Name: "Masks", Description: "Resolves surface attributes and prepares category masks",
		Reads: []scatter.Category{scatter.CatMask}})
	r.Register(StageInfo{ID: telemetry.StageFields, Name: "Fields", Description: "Prepares pattern, abiotic, proximity and ecosystem features",
		Reads: []scatter.Category{scatter.CatPattern, scatter.CatAbiotic, scatter.CatProximity, scatter.CatEcosystem}})
	r.Register(StageInfo{ID: telemetry.StageInfluence, Name: "Influence", Description: "Folds masks and fields into density and scale, then thins points",
		Reads: []scatter.Category{scatter.CatMask, scatter.CatPattern, scatter.CatAbiotic, scatter.CatProximity, scatter.CatEcosystem}})
	r.Register(StageInfo{ID: telemetry.StageTransform, Name: "Transform", Description: "Applies scale, rotation, push and wind",
		Reads: []scatter.Category{scatter.CatScale, scatter.CatRotation, scatter.CatPush, scatter.CatWind}})
	r.Register(StageInfo{ID: telemetry.StageVisibility, Name: "Visibility", Description: "Culls by face preview, percentage, camera and max load",
		Reads: []scatter.Category{scatter.CatVisibility}})
	r.Register(StageInfo{ID: telemetry.StageInstances, Name: "Instances", Description: "Assigns an instance index to every point",
		Reads: []scatter.Category{scatter.CatInstances}})
	r.Register(StageInfo{ID: telemetry.StageFinalize, Name: "Finalize", Description: "Orders points by stable id and fills attribute columns",
		Reads: []scatter.Category{scatter.CatDisplay}})
}

// Register adds a stage to the registry.
func (r *StageRegistry) Register(info StageInfo) {
	r.stages = append(r.stages, info)
	r.byID[info.ID] = info
}

// Get returns stage info by ID.
func (r *StageRegistry) Get(id string) (StageInfo, bool) {
	info, ok := r.byID[id]
	return info, ok
}

// GetName returns the display name for a stage ID.
// Falls back to the ID itself if not found.
func (r *StageRegistry) GetName(id string) string {
	if info, ok := r.byID[id]; ok {
		return info.Name
	}
	return id
}

// All returns all registered stages.
func (r *StageRegistry) All() []StageInfo {
	return r.stages
}

// Reading returns the stages that consume category c.
func (r *StageRegistry) Reading(c scatter.Category) []StageInfo {
	var result []StageInfo
	for _, info := range r.stages {
		for _, rc := range info.Reads {
			if rc == c {
				result = append(result, info)
				break
			}
		}
	}
	return result
}

// IDs returns all stage IDs in compute order.
func (r *StageRegistry) IDs() []string {
	ids := make([]string, len(r.stages))
	for i, info := range r.stages {
		ids[i] = info.ID
	}
	return ids
}
