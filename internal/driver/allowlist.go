package driver

import (
	"slices"
	"strings"
)

// AllowList is the closed set of driver names that may be installed. It is
// built once at start-up and never modified afterwards.
type AllowList struct {
	names map[string]struct{}
}

// NewAllowList returns an allow-list holding the uppercased names.
func NewAllowList(names ...string) *AllowList {
	a := &AllowList{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		a.names[Normalize(n)] = struct{}{}
	}
	return a
}

// Normalize returns the canonical form of a driver name.
func Normalize(name string) string {
	return strings.ToUpper(name)
}

func (a *AllowList) Contains(name string) bool {
	_, ok := a.names[Normalize(name)]
	return ok
}

// Names returns the allowed names in sorted order.
func (a *AllowList) Names() []string {
	names := make([]string, 0, len(a.names))
	for n := range a.names {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Filter normalizes the requested names and keeps the allowed ones, in input
// order. Unknown names are dropped silently. Duplicates are kept: installing
// the same driver twice gives the same result as installing it once.
func (a *AllowList) Filter(requested []string) []string {
	var valid []string
	for _, r := range requested {
		if n := Normalize(r); a.Contains(n) {
			valid = append(valid, n)
		}
	}
	return valid
}
