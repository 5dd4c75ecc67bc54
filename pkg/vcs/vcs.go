// Package vcs drives the version control tool which stores code resources and workspace metadata.
//
// Only git is supported, invoked as a subprocess.
package vcs

import (
	"context"

	"github.com/kisdma/data-workspaces-core/pkg/errors"
)

var (
	// ErrCommand indicates that a version control command failed
	ErrCommand = errors.New("version control command failed")

	// ErrNotRepository indicates that a directory is not under version control
	ErrNotRepository = errors.New("not a version controlled directory")

	// ErrNoVCS indicates an operation which needs version control, on a directory without it
	ErrNoVCS = errors.New("no version control for this workspace")
)

// EmptyTree is the hash of the empty git tree. Git knows this object without storing it.
const EmptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// Repository is what the core expects from a version control tool: atomic commits of
// a subset of the working tree, and checkouts of a ref.
type Repository interface {
	// Dir is the top level directory of the working tree
	Dir() string

	// Add stages changes (including deletions) below some paths, relative to Dir
	Add(ctx context.Context, paths ...string) error

	// Commit commits all staged and unstaged changes below some paths, or the whole tree when no path is given.
	// It returns false when there was nothing to commit.
	Commit(ctx context.Context, message string, paths ...string) (bool, error)

	// HeadCommit is the hash of the current commit
	HeadCommit(ctx context.Context) (string, error)

	// IsDirty tells if there are uncommitted or untracked changes below a path (the whole tree if empty)
	IsDirty(ctx context.Context, path string) (bool, error)

	// TreeHash is the hash of the tree at path in some commit. It yields EmptyTree for a path with no tracked file.
	TreeHash(ctx context.Context, ref, path string) (string, error)

	// ObjectType tells the type of an object (commit, tree, blob), or an error if it does not exist
	ObjectType(ctx context.Context, hash string) (string, error)

	// ResetHard checks out a commit, discarding local changes
	ResetHard(ctx context.Context, commit string) error

	// ReplaceSubtree replaces the content of a directory, in the index and the working tree, by a tree object
	ReplaceSubtree(ctx context.Context, path, tree string) error

	// Push the current branch to its remote
	Push(ctx context.Context) error

	// Pull the current branch from its remote
	Pull(ctx context.Context) error

	// RemoteURL of the origin remote, empty when there is none
	RemoteURL(ctx context.Context) (string, error)
}
