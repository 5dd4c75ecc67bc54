package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// MinHashPrefix is the shortest hash prefix accepted to designate a snapshot
const MinHashPrefix = 7

var (
	hashLike = regexp.MustCompile(`^[0-9a-fA-F]{` + fmt.Sprint(MinHashPrefix) + `,}$`)
	numeric  = regexp.MustCompile(`^[0-9]+$`)
)

// IsHashLike tells if a string may be confused with a (possibly abbreviated) snapshot hash.
//
// Such strings are not accepted as tags.
func IsHashLike(s string) bool {
	return hashLike.MatchString(s)
}

// ValidateTag checks that a tag is usable
func ValidateTag(tag string) error {
	if strings.TrimSpace(tag) == "" {
		return fmt.Errorf("empty tag")
	}
	if strings.ContainsAny(tag, "/\\:") {
		return fmt.Errorf("tag %q may not contain '/', '\\' or ':'", tag)
	}
	if IsHashLike(tag) {
		return fmt.Errorf("tag %q looks like a snapshot hash", tag)
	}
	if numeric.MatchString(tag) {
		// numbers name untagged snapshots
		return fmt.Errorf("tag %q may not be a number", tag)
	}
	return nil
}

// Snapshot is an entry in the snapshot history of a workspace
type Snapshot struct {
	Number        int                    `json:"number" yaml:"number"`
	Hash          string                 `json:"hash" yaml:"hash"`
	Tags          []string               `json:"tags" yaml:"tags"`
	Timestamp     time.Time              `json:"timestamp" yaml:"timestamp"`
	Message       string                 `json:"message" yaml:"message"`
	Hostname      string                 `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	RestoreHashes map[string]string      `json:"restore_hashes" yaml:"restore_hashes"`
	RemoteRefs    map[string]string      `json:"remote_refs,omitempty" yaml:"remote_refs,omitempty"`
	Metrics       map[string]interface{} `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	ResultsDir    string                 `json:"results_dir,omitempty" yaml:"results_dir,omitempty"`
	_             struct{}
}

// HasTag tells if the snapshot carries a tag
func (s Snapshot) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Name of the snapshot for display: the first tag, or its number.
//
// Results are archived under the name the snapshot had when it was taken, recorded as ResultsDir.
func (s Snapshot) Name() string {
	if len(s.Tags) > 0 {
		return s.Tags[0]
	}
	return fmt.Sprintf("%d", s.Number)
}

// SnapshotHistory is the ordered, append-only list of snapshots of a workspace
type SnapshotHistory []Snapshot

// NextNumber yields the number of the next snapshot.
//
// Numbers are stored with each entry and never reused, even after deletions.
func (h SnapshotHistory) NextNumber(lastNumber int) int {
	next := lastNumber
	for _, s := range h {
		if s.Number > next {
			next = s.Number
		}
	}
	return next + 1
}

// FindTag returns the index of the snapshot with a tag, or -1
func (h SnapshotHistory) FindTag(tag string) int {
	for i, s := range h {
		if s.HasTag(tag) {
			return i
		}
	}
	return -1
}

// FindHash returns the index of the snapshot with an exact hash, or -1
func (h SnapshotHistory) FindHash(hash string) int {
	for i, s := range h {
		if s.Hash == hash {
			return i
		}
	}
	return -1
}

// Find a snapshot by tag, full hash or unambiguous hash prefix. It returns -1 if no snapshot matches.
func (h SnapshotHistory) Find(hashOrTag string) (int, error) {
	if i := h.FindTag(hashOrTag); i >= 0 {
		return i, nil
	}
	if i := h.FindHash(strings.ToLower(hashOrTag)); i >= 0 {
		return i, nil
	}
	if !IsHashLike(hashOrTag) {
		return -1, nil
	}
	found := -1
	prefix := strings.ToLower(hashOrTag)
	for i, s := range h {
		if strings.HasPrefix(s.Hash, prefix) {
			if found >= 0 {
				return -1, fmt.Errorf("hash prefix %q is ambiguous", hashOrTag)
			}
			found = i
		}
	}
	return found, nil
}

// Tags returns all tags in use, sorted
func (h SnapshotHistory) Tags() []string {
	var tags []string
	for _, s := range h {
		tags = append(tags, s.Tags...)
	}
	sort.Strings(tags)
	return tags
}

// Validate checks the invariants of a history: strictly increasing numbers,
// unique hashes and tags unique across all entries.
func (h SnapshotHistory) Validate() error {
	tags := make(map[string]int, len(h))
	hashes := make(map[string]struct{}, len(h))
	last := 0
	for _, s := range h {
		if s.Number <= last {
			return fmt.Errorf("snapshot numbers are not strictly increasing at snapshot %d", s.Number)
		}
		last = s.Number
		if s.Hash == "" {
			return fmt.Errorf("snapshot %d has no hash", s.Number)
		}
		if _, ok := hashes[s.Hash]; ok {
			return fmt.Errorf("duplicate snapshot hash %s", s.Hash)
		}
		hashes[s.Hash] = struct{}{}
		for _, tag := range s.Tags {
			if n, ok := tags[tag]; ok {
				return fmt.Errorf("tag %q is used by snapshots %d and %d", tag, n, s.Number)
			}
			tags[tag] = s.Number
		}
	}
	return nil
}

// References tells how many snapshots record some restore hash for a resource
func (h SnapshotHistory) References(resource, restoreHash string) int {
	count := 0
	for _, s := range h {
		if s.RestoreHashes[resource] == restoreHash {
			count++
		}
	}
	return count
}
