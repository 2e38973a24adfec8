// Package scatter defines the scatter data model: systems, groups, the
// per-category feature records, points and point streams, and the error
// kinds reported by the pipeline.
package scatter

import (
	"fmt"
	"strings"
)

// Category is a family of features that can be toggled, locked, copied and
// synchronized as a unit.
type Category int

const (
	CatDistribution Category = iota
	CatMask
	CatScale
	CatRotation
	CatPattern
	CatAbiotic
	CatProximity
	CatEcosystem
	CatPush
	CatWind
	CatVisibility
	CatInstances
	CatDisplay

	numCategories
)

var categoryNames = [numCategories]string{
	"distribution", "mask", "scale", "rot", "pattern", "abiotic", "proximity",
	"ecosystem", "push", "wind", "visibility", "instances", "display",
}

// Categories returns every category in pipeline order.
func Categories() []Category {
	out := make([]Category, numCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// String returns the short category name (e.g. "rot").
func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// Prefix returns the property-name prefix (e.g. "s_rot").
func (c Category) Prefix() string { return "s_" + c.String() }

// GroupPrefix returns the group-level prefix (e.g. "s_gr_mask").
func (c Category) GroupPrefix() string { return "s_gr_" + c.String() }

// HasMaster reports whether the category has a master toggle.
func (c Category) HasMaster() bool { return c != CatDistribution && c != CatInstances }

// ParseCategory accepts a category name ("scale") or prefix ("s_scale").
func ParseCategory(s string) (Category, error) {
	s = strings.TrimPrefix(s, "s_")
	for i, n := range categoryNames {
		if n == s {
			return Category(i), nil
		}
	}
	if s == "rotation" {
		return CatRotation, nil
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// CategoryOfKey returns the category a property key belongs to, if any.
// Numbered slots attach their number to the prefix (s_pattern2_allow).
func CategoryOfKey(key string) (Category, bool) {
	for i := range categoryNames {
		c := Category(i)
		rest, ok := strings.CutPrefix(key, c.Prefix())
		if !ok {
			continue
		}
		if slots := attachedSlots[c]; slots > 0 && rest != "" && rest[0] >= '1' && rest[0] <= byte('0'+slots) {
			rest = rest[1:]
		}
		if rest == "" || rest[0] == '_' {
			return c, true
		}
	}
	return 0, false
}

// attachedSlots is the number of numbered slots of the categories that
// have them.
var attachedSlots = map[Category]int{CatPattern: 3}

// MarshalText encodes the category as its name.
func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText decodes a category name or prefix.
func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
