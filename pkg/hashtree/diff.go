package hashtree

import (
	"fmt"
	"strings"
)

// Changes between two listings
type Changes struct {
	Added   []string `json:"added,omitempty" yaml:"added,omitempty"`
	Removed []string `json:"removed,omitempty" yaml:"removed,omitempty"`
	Changed []string `json:"changed,omitempty" yaml:"changed,omitempty"`
}

// Empty tells if there is no change
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// String summarizes the changes, with a few example paths
func (c Changes) String() string {
	const maxExamples = 3
	var parts []string
	summarize := func(verb string, paths []string) {
		if len(paths) == 0 {
			return
		}
		examples := paths
		if len(examples) > maxExamples {
			examples = examples[:maxExamples]
		}
		more := ""
		if len(paths) > maxExamples {
			more = ", ..."
		}
		parts = append(parts, fmt.Sprintf("%d %s (%s%s)", len(paths), verb, strings.Join(examples, ", "), more))
	}
	summarize("added", c.Added)
	summarize("removed", c.Removed)
	summarize("changed", c.Changed)
	if len(parts) == 0 {
		return "no change"
	}
	return strings.Join(parts, "; ")
}

// Diff compares two sorted listings. The listings are expected to use the same mode.
func Diff(from, to *Tree) Changes {
	var c Changes
	i, j := 0, 0
	for i < len(from.Entries) || j < len(to.Entries) {
		switch {
		case j >= len(to.Entries):
			c.Removed = append(c.Removed, from.Entries[i].Path)
			i++
		case i >= len(from.Entries):
			c.Added = append(c.Added, to.Entries[j].Path)
			j++
		case from.Entries[i].Path < to.Entries[j].Path:
			c.Removed = append(c.Removed, from.Entries[i].Path)
			i++
		case from.Entries[i].Path > to.Entries[j].Path:
			c.Added = append(c.Added, to.Entries[j].Path)
			j++
		default:
			if from.Entries[i].value(from.Mode) != to.Entries[j].value(to.Mode) {
				c.Changed = append(c.Changed, from.Entries[i].Path)
			}
			i++
			j++
		}
	}
	return c
}
