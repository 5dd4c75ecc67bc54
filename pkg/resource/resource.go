package resource

import (
	"context"

	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/vcs"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Resource is the contract common to all resource types
type Resource interface {
	Name() string
	Role() model.Role
	Type() string

	// Params are the replicated parameters of the resource
	Params() model.ResourceParams

	// LocalParams are the parameters specific to this installation
	LocalParams() model.ResourceLocalParams

	// SnapshotPrecheck validates that a snapshot may be taken, without mutating anything
	SnapshotPrecheck(ctx context.Context) error

	// Snapshot captures the current state, and returns the hash to restore it, with an optional remote reference
	Snapshot(ctx context.Context) (restoreHash string, remoteRef string, err error)

	// RestorePrecheck validates that the state recorded by some restore hash can be restored, without mutating anything
	RestorePrecheck(ctx context.Context, restoreHash string) error

	// Restore the state recorded by a restore hash. It is only called after all prechecks passed.
	Restore(ctx context.Context, restoreHash string) error

	// DeleteSnapshot garbage-collects artifacts of a deleted snapshot which no remaining snapshot references
	DeleteSnapshot(ctx context.Context, deleted model.Snapshot, remaining model.SnapshotHistory) error

	String() string
}

// LocalState is implemented by resources with a materialized local directory
type LocalState interface {
	LocalPath() string
}

// Syncer is implemented by resources which push and pull their content to and from a remote.
//
// Push and pull are black-box calls: they either succeed or fail.
type Syncer interface {
	PullPrecheck(ctx context.Context) error
	Pull(ctx context.Context) error
	PushPrecheck(ctx context.Context) error
	Push(ctx context.Context) error
}

// Move records the relocation of a file or directory, so it can be undone.
//
// A created move records a directory made to hold relocations: undoing it removes the directory
// with whatever was added to it since.
type Move struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Created bool   `json:"created,omitempty"`
}

// Results is implemented by resources holding results, which are archived at each snapshot
type Results interface {
	// MoveCurrentFiles relocates the current results under a directory relative to the resource.
	// Previous archives are left in place.
	MoveCurrentFiles(ctx context.Context, archiveDir string) ([]Move, error)

	// UndoMove reverts relocations, and removes the archive directory with any file added to it
	UndoMove(ctx context.Context, moves []Move) error

	// AddResultsFile writes a JSON document at a path relative to the resource
	AddResultsFile(ctx context.Context, relPath string, data interface{}) error

	// ReadResultsFile reads a JSON document at a path relative to the resource
	ReadResultsFile(ctx context.Context, relPath string, data interface{}) error
}

// Fingerprinter is implemented by resources which can certify their current content,
// or the content at some subpath. It is used to certify lineage inputs.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, subpath string) (string, error)
}

// Stater is implemented by resources which can tell the restore hash of their current state.
// It is used to roll back a partially failed restore.
type Stater interface {
	CurrentRestoreHash(ctx context.Context) (string, error)
}

// Env is the workspace environment in which resources live
type Env interface {
	// Dir is the root directory of the workspace
	Dir() string

	// VCS is the version control of the workspace directory
	VCS() vcs.Repository

	// Hostname identifies this installation
	Hostname() string

	// StateDir is the directory where a resource keeps its own state, like hash caches.
	// It is replicated with the workspace metadata.
	StateDir(role model.Role, name string) string

	// Fs is the file system of the workspace
	Fs() afero.Fs

	// Logger for resources
	Logger() *zap.Logger
}

// Spec describes a resource to be added to a workspace
type Spec struct {
	Type        string
	Name        string
	Role        model.Role
	LocalPath   string
	RemoteURL   string
	Branch      string
	ComputeHash bool
	Ignore      []string
}
