package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Role of a resource in a workspace
type Role string

// Known roles
const (
	RoleSourceData       Role = "source-data"
	RoleCode             Role = "code"
	RoleIntermediateData Role = "intermediate-data"
	RoleResults          Role = "results"
)

// Roles lists all valid roles
func Roles() []Role {
	return []Role{RoleSourceData, RoleCode, RoleIntermediateData, RoleResults}
}

// ParseRole validates a role name
func ParseRole(s string) (Role, error) {
	for _, r := range Roles() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid role %q, expected one of %v", s, Roles())
}

// IsResults tells if a role designates results
func (r Role) IsResults() bool {
	return r == RoleResults
}

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]*$`)

// ValidateName checks that a resource or workspace name is usable as a file name and a ref
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid name %q: must start with a letter or digit and contain only letters, digits, '.', '_' or '-'", name)
	}
	return nil
}

// WorkspaceConfig holds the replicated configuration of a workspace
type WorkspaceConfig struct {
	Name         string                 `json:"name" yaml:"name"`
	ToolVersion  uint64                 `json:"dws-version" yaml:"dws-version"`
	GlobalParams map[string]interface{} `json:"global_params" yaml:"global_params"`

	// LastSnapshotNumber is the highest snapshot number ever allocated, deleted snapshots included
	LastSnapshotNumber int `json:"last_snapshot_number,omitempty" yaml:"last_snapshot_number,omitempty"`
	_                  struct{}
}

// LocalParams are parameters specific to one installation of a workspace, never replicated
type LocalParams map[string]interface{}

// Keys of well known local parameters
const (
	LocalParamHostname = "hostname"
)

// Hostname recorded in the local parameters
func (l LocalParams) Hostname() string {
	h, _ := l[LocalParamHostname].(string)
	return h
}

// ResourceParams hold the replicated parameters of a resource.
//
// Type-specific fields are optional and only set for the types which need them.
type ResourceParams struct {
	Name string `json:"name" yaml:"name"`
	Role Role   `json:"role" yaml:"role"`
	Type string `json:"resource_type" yaml:"resource_type"`

	// RemoteOrigin is the URL of the origin repository of a git resource
	RemoteOrigin string `json:"remote_origin_url,omitempty" yaml:"remote_origin_url,omitempty"`

	// Branch followed by a git resource
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`

	// RelativePath of a resource stored within the workspace directory
	RelativePath string `json:"relative_path,omitempty" yaml:"relative_path,omitempty"`

	// ComputeHash selects content hashing instead of size-based fingerprints
	ComputeHash bool `json:"compute_hash,omitempty" yaml:"compute_hash,omitempty"`

	// Ignore lists names or glob patterns excluded from fingerprints
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`

	// RemoteURL of the remote copy mirrored by this resource
	RemoteURL string `json:"remote_url,omitempty" yaml:"remote_url,omitempty"`

	_ struct{}
}

// ResourceLocalParams hold the parameters of a resource which are specific to an installation
type ResourceLocalParams struct {
	Name      string `json:"name" yaml:"name"`
	LocalPath string `json:"local_path,omitempty" yaml:"local_path,omitempty"`
	_         struct{}
}

// ResourceRef points to a resource, or some path within a resource
type ResourceRef struct {
	Name    string `json:"name" yaml:"name"`
	Subpath string `json:"subpath,omitempty" yaml:"subpath,omitempty"`
}

// NewRef builds a normalized reference
func NewRef(name, subpath string) ResourceRef {
	return ResourceRef{Name: name, Subpath: cleanSubpath(subpath)}
}

func cleanSubpath(subpath string) string {
	s := strings.Trim(strings.ReplaceAll(subpath, "\\", "/"), "/")
	if s == "." {
		return ""
	}
	return s
}

// ParseRef parses a reference of the form "name" or "name:subpath"
func ParseRef(s string) (ResourceRef, error) {
	parts := strings.SplitN(s, ":", 2)
	if err := ValidateName(parts[0]); err != nil {
		return ResourceRef{}, err
	}
	if len(parts) == 1 {
		return ResourceRef{Name: parts[0]}, nil
	}
	return NewRef(parts[0], parts[1]), nil
}

func (r ResourceRef) String() string {
	if r.Subpath == "" {
		return r.Name
	}
	return r.Name + ":" + r.Subpath
}

// Contains tells if other is the same location as r or nested below it
func (r ResourceRef) Contains(other ResourceRef) bool {
	if r.Name != other.Name {
		return false
	}
	if r.Subpath == "" || r.Subpath == other.Subpath {
		return true
	}
	return strings.HasPrefix(other.Subpath, r.Subpath+"/")
}

// Overlaps tells if r and other designate overlapping locations
func (r ResourceRef) Overlaps(other ResourceRef) bool {
	return r.Contains(other) || other.Contains(r)
}

// SortRefs sorts references by name, then subpath
func SortRefs(refs []ResourceRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Name != refs[j].Name {
			return refs[i].Name < refs[j].Name
		}
		return refs[i].Subpath < refs[j].Subpath
	})
}
