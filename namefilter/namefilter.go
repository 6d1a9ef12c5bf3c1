// Package namefilter implements the harness's benchmark name filter:
// a single substring pattern that selects which registered benchmarks
// run.
package namefilter

import "strings"

// Filter matches benchmark names containing a configured substring.
// The zero value matches every name (equivalent to an empty pattern).
type Filter struct {
	substring string
}

// New builds a Filter for the given substring pattern. An empty
// pattern matches every name.
func New(substring string) *Filter {
	return &Filter{substring: substring}
}

// Matches reports whether name contains the filter's substring.
func (f *Filter) Matches(name string) bool {
	return strings.Contains(name, f.substring)
}
