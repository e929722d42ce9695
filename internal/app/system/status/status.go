// Package status provides the ninja status values a user can carry.
//
// The values are plain strings (not a custom type) because they are stored
// verbatim as user_meta values and posted verbatim by the admin form.
package status

// MetaKey is the user_meta key the ninja status is stored under.
const MetaKey = "ninja_status"

// Ninja status values.
const (
	Active   = "active_ninja"
	Inactive = "inactive_ninja"
	Pending  = "pending_ninja"
)

// Option is one entry of the status selector.
type Option struct {
	Value string
	Label string
}

var options = []Option{
	{Value: Active, Label: "Active Ninja"},
	{Value: Inactive, Label: "Inactive Ninja"},
	{Value: Pending, Label: "Pending Ninja"},
}

// All returns the selector options in display order.
func All() []Option {
	out := make([]Option, len(options))
	copy(out, options)
	return out
}

// IsValid returns true if s is a recognized status value.
// The comparison is exact: submitted values are never case-folded.
func IsValid(s string) bool {
	for _, o := range options {
		if o.Value == s {
			return true
		}
	}
	return false
}

// Default returns the status shown and seeded for users without one.
func Default() string {
	return Pending
}

// OrDefault returns s when it is a recognized status, otherwise Default().
func OrDefault(s string) string {
	if IsValid(s) {
		return s
	}
	return Default()
}

// Label returns the display label for s, or s itself when unrecognized.
func Label(s string) string {
	for _, o := range options {
		if o.Value == s {
			return o.Label
		}
	}
	return s
}
