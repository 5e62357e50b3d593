package logo

import (
	"sort"
	"strings"
)

// Variables is the single flat variable store of an interpreter. Names are
// case-insensitive and stored uppercased.
type Variables struct {
	values map[string]Value
}

// NewVariables creates an empty store.
func NewVariables() *Variables {
	return &Variables{values: make(map[string]Value)}
}

// Get returns the last value assigned to name.
func (vs *Variables) Get(name string) (Value, bool) {
	v, ok := vs.values[strings.ToUpper(name)]
	return v, ok
}

// Set overwrites name with v.
func (vs *Variables) Set(name string, v Value) {
	vs.values[strings.ToUpper(name)] = v
}

// Names returns all variable names in sorted order.
func (vs *Variables) Names() []string {
	names := make([]string, 0, len(vs.values))
	for name := range vs.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of variables.
func (vs *Variables) Len() int {
	return len(vs.values)
}
