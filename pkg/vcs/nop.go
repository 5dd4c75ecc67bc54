package vcs

import "context"

var _ Repository = Nop{}

// Nop is the Repository of a workspace without version control.
//
// Commits are silently skipped, checkouts fail with ErrNoVCS.
type Nop struct {
	Root string
}

// Dir of the workspace
func (n Nop) Dir() string { return n.Root }

// Add does nothing
func (Nop) Add(context.Context, ...string) error { return nil }

// Commit does nothing and reports that nothing was committed
func (Nop) Commit(context.Context, string, ...string) (bool, error) { return false, nil }

// HeadCommit fails with ErrNoVCS
func (Nop) HeadCommit(context.Context) (string, error) { return "", ErrNoVCS }

// IsDirty is always false
func (Nop) IsDirty(context.Context, string) (bool, error) { return false, nil }

// TreeHash fails with ErrNoVCS
func (Nop) TreeHash(context.Context, string, string) (string, error) { return "", ErrNoVCS }

// ObjectType fails with ErrNoVCS
func (Nop) ObjectType(context.Context, string) (string, error) { return "", ErrNoVCS }

// ResetHard fails with ErrNoVCS
func (Nop) ResetHard(context.Context, string) error { return ErrNoVCS }

// ReplaceSubtree fails with ErrNoVCS
func (Nop) ReplaceSubtree(context.Context, string, string) error { return ErrNoVCS }

// Push does nothing
func (Nop) Push(context.Context) error { return nil }

// Pull does nothing
func (Nop) Pull(context.Context) error { return nil }

// RemoteURL is always empty
func (Nop) RemoteURL(context.Context) (string, error) { return "", nil }
