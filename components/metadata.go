package components

// FieldDescriptor describes a component field for UI display.
type FieldDescriptor struct {
	ID     string  // Unique identifier
	Label  string  // Display name
	Format string  // Printf format (e.g., "%.2f")
	Min    float32 // Minimum value (for bars)
	Max    float32 // Maximum value (for bars)
	IsBar  bool    // True to render as progress bar
	Group  string  // Logical grouping
}

// String returns the display name for a State.
func (s State) String() string {
	names := StateNames()
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// StateNames returns the display names for all states.
// The order matches the State constants.
func StateNames() []string {
	return []string{"CLEAN", "DIRTY", "COMPUTING", "READY", "FAILED"}
}

// StateCount returns the number of states.
func StateCount() int {
	return len(StateNames())
}

// OutputFieldDescriptors returns metadata for Output fields.
func OutputFieldDescriptors() []FieldDescriptor {
	return []FieldDescriptor{
		{ID: "points", Label: "Points", Format: "%.0f", Group: "stream"},
		{ID: "epoch", Label: "Epoch", Format: "%.0f", Group: "stream"},
		{ID: "errors", Label: "Errors", Format: "%.0f", Group: "report"},
		{ID: "stale", Label: "Stale", Format: "%.0f", Min: 0, Max: 1, IsBar: true, Group: "report"},
	}
}

// OutputGroups returns the logical groupings for output fields.
func OutputGroups() []string {
	return []string{"stream", "report"}
}

// GetOutputValue extracts an output field value by ID.
func GetOutputValue(o *Output, fieldID string) float32 {
	if o == nil {
		return 0
	}
	switch fieldID {
	case "points":
		return float32(o.Stream.Len())
	case "epoch":
		return float32(o.Epoch)
	case "errors":
		return float32(len(o.Report.Entries()))
	case "stale":
		if o.Stale {
			return 1
		}
		return 0
	default:
		return 0
	}
}
