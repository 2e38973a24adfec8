package scatter

import "fmt"

// Modifiers change how a write is applied. Delay defers recomputation to
// an explicit compute, Sync mirrors the write through sync channels and
// Alt applies it to every selected system.
type Modifiers struct {
	Delay bool `json:"delay,omitempty"`
	Sync  bool `json:"sync,omitempty"`
	Alt   bool `json:"alt,omitempty"`
}

// ChangeRecord is the single notification produced by every mutation.
type ChangeRecord struct {
	System    string    `json:"system"`
	Category  Category  `json:"category"`
	Property  string    `json:"property"`
	Value     any       `json:"value"`
	Modifiers Modifiers `json:"modifiers"`
}

// NewChange builds a record for a property key, deriving its category.
func NewChange(system, property string, value any) (ChangeRecord, error) {
	cat, ok := CategoryOfKey(property)
	if property == MasterSeedKey {
		cat, ok = CatDistribution, true
	}
	if !ok {
		return ChangeRecord{}, Errorf(KindInvalidConfig, system, property, "property has no category")
	}
	return ChangeRecord{System: system, Category: cat, Property: property, Value: value}, nil
}

func (c ChangeRecord) String() string {
	return fmt.Sprintf("%s.%s=%v", c.System, c.Property, c.Value)
}
