package hashtree

import (
	"path"
	"strings"
)

// IgnoreRules exclude files and directories from a fingerprint.
//
// All paths are slash-separated and relative to the root of the tree.
//
// Patterns use glob syntax with ** for recursive matching:
//   - * matches any sequence of non-separator characters
//   - ** matches any sequence of characters including separators
//   - ? matches any single non-separator character
//   - [abc] matches one of the characters in brackets
//
// A pattern without any separator also matches base names.
type IgnoreRules struct {
	// Names excludes files and whole directories with this exact base name
	Names []string `json:"names,omitempty" yaml:"names,omitempty"`

	// Patterns excludes files and whole directories matching a glob
	Patterns []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`

	// Paths excludes these exact relative paths, and everything below them
	Paths []string `json:"paths,omitempty" yaml:"paths,omitempty"`
}

// ParseIgnore splits a list of user-provided rules into names and patterns
func ParseIgnore(rules []string) IgnoreRules {
	var ir IgnoreRules
	for _, r := range rules {
		if strings.ContainsAny(r, "*?[/") {
			ir.Patterns = append(ir.Patterns, strings.TrimPrefix(r, "/"))
			continue
		}
		ir.Names = append(ir.Names, r)
	}
	return ir
}

// With returns a copy of the rules, excluding some more relative paths
func (r IgnoreRules) With(paths ...string) IgnoreRules {
	cp := IgnoreRules{
		Names:    append([]string(nil), r.Names...),
		Patterns: append([]string(nil), r.Patterns...),
		Paths:    append([]string(nil), r.Paths...),
	}
	for _, p := range paths {
		p = strings.Trim(path.Clean("/"+p), "/")
		if p != "" {
			cp.Paths = append(cp.Paths, p)
		}
	}
	return cp
}

// Ignored tells if a relative path is excluded
func (r IgnoreRules) Ignored(rel string) bool {
	base := path.Base(rel)
	for _, name := range r.Names {
		if base == name {
			return true
		}
	}
	for _, p := range r.Paths {
		if rel == p || strings.HasPrefix(rel, p+"/") {
			return true
		}
	}
	for _, pattern := range r.Patterns {
		if matchGlob(pattern, rel) {
			return true
		}
	}
	return false
}

func matchGlob(pattern, rel string) bool {
	if strings.Contains(pattern, "**") {
		return matchDoublestar(pattern, rel)
	}

	if matched, _ := path.Match(pattern, rel); matched {
		return true
	}

	if !strings.Contains(pattern, "/") {
		matched, _ := path.Match(pattern, path.Base(rel))
		return matched
	}
	return false
}

// matchDoublestar handles ** recursive patterns.
func matchDoublestar(pattern, rel string) bool {
	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")

	if prefix != "" {
		if rel != prefix && !strings.HasPrefix(rel, prefix+"/") {
			// the prefix itself may hold wildcards
			components := strings.Split(rel, "/")
			n := len(strings.Split(prefix, "/"))
			if len(components) < n {
				return false
			}
			if matched, _ := path.Match(prefix, strings.Join(components[:n], "/")); !matched {
				return false
			}
			rel = strings.Join(components[n:], "/")
		} else {
			rel = strings.TrimPrefix(strings.TrimPrefix(rel, prefix), "/")
		}
	}

	if suffix == "" {
		return true
	}

	// the suffix may match any trailing part of the remaining path
	components := strings.Split(rel, "/")
	for i := range components {
		if matchGlob(suffix, strings.Join(components[i:], "/")) {
			return true
		}
	}
	return false
}
