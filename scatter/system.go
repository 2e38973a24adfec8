package scatter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pthm-cable/scatter/geom"
)

// MasterSeedKey is the property key of System.MasterSeed.
const MasterSeedKey = "s_master_seed"

// System is one scatter configuration. Category fields carry `prop` tags
// used by the settings codec; everything else is identity and bookkeeping.
type System struct {
	ID       string
	Name     string
	Color    [3]float64
	Surfaces []string
	Group    string
	Selected bool

	// MasterSeed is mixed into every feature seed.
	MasterSeed int `prop:"s_master_seed"`

	Distribution Distribution       `prop:"distribution,category"`
	Mask         MaskCategory       `prop:"mask,category"`
	Scale        ScaleCategory      `prop:"scale,category"`
	Rotation     RotationCategory   `prop:"rot,category"`
	Pattern      PatternCategory    `prop:"pattern,category"`
	Abiotic      AbioticCategory    `prop:"abiotic,category"`
	Proximity    ProximityCategory  `prop:"proximity,category"`
	Ecosystem    EcosystemCategory  `prop:"ecosystem,category"`
	Push         PushCategory       `prop:"push,category"`
	Wind         WindCategory       `prop:"wind,category"`
	Visibility   VisibilityCategory `prop:"visibility,category"`
	Instances    InstancesCategory  `prop:"instances,category"`
	Display      DisplayCategory    `prop:"display,category"`

	locks [numCategories]bool
}

// NewSystem returns a system with default settings and every optional
// category disabled.
func NewSystem(id, name string) *System {
	return &System{
		ID:           id,
		Name:         name,
		Color:        [3]float64{0.2, 0.6, 0.3},
		Distribution: DefaultDistribution(),
		Mask:         DefaultMaskCategory(),
		Scale:        DefaultScaleCategory(),
		Rotation:     DefaultRotationCategory(),
		Pattern:      DefaultPatternCategory(),
		Abiotic:      DefaultAbioticCategory(),
		Proximity:    DefaultProximityCategory(),
		Ecosystem:    DefaultEcosystemCategory(),
		Push:         DefaultPushCategory(),
		Wind:         DefaultWindCategory(),
		Visibility:   DefaultVisibilityCategory(),
		Instances:    DefaultInstancesCategory(),
		Display:      DefaultDisplayCategory(),
	}
}

// Category returns a pointer to the record of category c.
func (s *System) Category(c Category) any {
	switch c {
	case CatDistribution:
		return &s.Distribution
	case CatMask:
		return &s.Mask
	case CatScale:
		return &s.Scale
	case CatRotation:
		return &s.Rotation
	case CatPattern:
		return &s.Pattern
	case CatAbiotic:
		return &s.Abiotic
	case CatProximity:
		return &s.Proximity
	case CatEcosystem:
		return &s.Ecosystem
	case CatPush:
		return &s.Push
	case CatWind:
		return &s.Wind
	case CatVisibility:
		return &s.Visibility
	case CatInstances:
		return &s.Instances
	case CatDisplay:
		return &s.Display
	}
	return nil
}

// ResetCategory restores category c to its defaults.
func (s *System) ResetCategory(c Category) {
	d := NewSystem("", "")
	switch c {
	case CatDistribution:
		s.Distribution = d.Distribution
	case CatMask:
		s.Mask = d.Mask
	case CatScale:
		s.Scale = d.Scale
	case CatRotation:
		s.Rotation = d.Rotation
	case CatPattern:
		s.Pattern = d.Pattern
	case CatAbiotic:
		s.Abiotic = d.Abiotic
	case CatProximity:
		s.Proximity = d.Proximity
	case CatEcosystem:
		s.Ecosystem = d.Ecosystem
	case CatPush:
		s.Push = d.Push
	case CatWind:
		s.Wind = d.Wind
	case CatVisibility:
		s.Visibility = d.Visibility
	case CatInstances:
		s.Instances = d.Instances
	case CatDisplay:
		s.Display = d.Display
	}
}

// Enabled reports the master toggle of c. Categories without a toggle are
// always enabled.
func (s *System) Enabled(c Category) bool {
	switch c {
	case CatMask:
		return s.Mask.Master
	case CatScale:
		return s.Scale.Master
	case CatRotation:
		return s.Rotation.Master
	case CatPattern:
		return s.Pattern.Master
	case CatAbiotic:
		return s.Abiotic.Master
	case CatProximity:
		return s.Proximity.Master
	case CatEcosystem:
		return s.Ecosystem.Master
	case CatPush:
		return s.Push.Master
	case CatWind:
		return s.Wind.Master
	case CatVisibility:
		return s.Visibility.Master
	case CatDisplay:
		return s.Display.Master
	}
	return true
}

// SetEnabled sets the master toggle of c.
func (s *System) SetEnabled(c Category, on bool) {
	switch c {
	case CatMask:
		s.Mask.Master = on
	case CatScale:
		s.Scale.Master = on
	case CatRotation:
		s.Rotation.Master = on
	case CatPattern:
		s.Pattern.Master = on
	case CatAbiotic:
		s.Abiotic.Master = on
	case CatProximity:
		s.Proximity.Master = on
	case CatEcosystem:
		s.Ecosystem.Master = on
	case CatPush:
		s.Push.Master = on
	case CatWind:
		s.Wind.Master = on
	case CatVisibility:
		s.Visibility.Master = on
	case CatDisplay:
		s.Display.Master = on
	}
}

// Locked reports whether category c refuses mutation.
func (s *System) Locked(c Category) bool {
	if c < 0 || c >= numCategories {
		return false
	}
	return s.locks[c]
}

// SetLocked locks or unlocks category c.
func (s *System) SetLocked(c Category, locked bool) {
	if c >= 0 && c < numCategories {
		s.locks[c] = locked
	}
}

// Seed mixes a feature's seed with the feature name and the master seed,
// so features sharing a seed value still draw independent numbers.
func (s *System) Seed(feature string, seed int) uint64 {
	return geom.MixSeed(geom.StringSeed(feature), uint64(int64(seed)), uint64(int64(s.MasterSeed)))
}

// EcosystemPtrs returns the systems this system depends on.
func (s *System) EcosystemPtrs() []string { return s.Ecosystem.Ptrs() }

// Validate checks settings that no evaluation could recover from. Every
// problem is returned joined, each one a *Error of kind invalid_config.
func (s *System) Validate() error {
	var errs []error
	bad := func(feature, format string, args ...any) {
		errs = append(errs, Errorf(KindInvalidConfig, s.ID, feature, format, args...))
	}
	if strings.TrimSpace(s.ID) == "" {
		bad("", "empty system id")
	}
	d := &s.Distribution
	if !validGenerator(d.Method) {
		bad("s_distribution_method", "unknown generator %q", d.Method)
	}
	if d.Density < 0 || d.Stable.Density < 0 || d.Clump.Density < 0 || d.Clump.ChildrenDensity < 0 {
		bad("s_distribution_density", "negative density")
	}
	if d.Count < 0 || d.Stable.Count < 0 || d.Volume.Count < 0 || d.ProjBezLine.Count < 0 {
		bad("s_distribution_count", "negative count")
	}
	if d.LimitMode != LimitStable && d.LimitMode != LimitFast {
		bad("s_distribution_limit_mode", "unknown limit mode %q", d.LimitMode)
	}
	if d.Method == GenClumping && d.Clump.MaxDistance <= 0 {
		bad("s_distribution_clump_max_distance", "clump radius must be positive")
	}
	if d.Method == GenVolume && d.Volume.VoxelSize <= 0 {
		bad("s_distribution_volume_voxelsize", "voxel size must be positive")
	}
	if s.Ecosystem.Density.Allow && s.Ecosystem.Density.VoxelSize <= 0 {
		bad("s_ecosystem_density_voxelsize", "voxel size must be positive")
	}
	for _, ptr := range s.EcosystemPtrs() {
		if ptr == s.ID || ptr == s.Name {
			bad("s_ecosystem", "system references itself")
		}
	}
	if p := s.Visibility.View.Percentage; p < 0 || p > 100 {
		bad("s_visibility_view_percentage", "percentage %v out of [0,100]", p)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("validate %s: %w", s.ID, errors.Join(errs...))
}

func validGenerator(g Generator) bool {
	for _, v := range Generators {
		if v == g {
			return true
		}
	}
	return false
}
