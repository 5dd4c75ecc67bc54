// Copyright © 2018 One Concern

// Package status declares the errors returned by workspaces, resources, lineage and snapshots.
//
// Callers classify failures with errors.Is against these sentinels.
package status

import "github.com/kisdma/data-workspaces-core/pkg/errors"

var (
	// ErrConfiguration indicates malformed or missing persisted metadata. It is fatal and never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidArgument indicates a bad workspace path or parameter, detected before any mutation
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrContentMismatch indicates that a restore-time fingerprint check failed
	ErrContentMismatch = errors.New("content does not match the recorded hash")

	// ErrStepFailed marks a step which failed inside a lineage session
	ErrStepFailed = errors.New("step failed")

	// ErrSnapshotNotFound indicates that no snapshot matches a hash or tag
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrTagExists indicates that a tag is already used by another snapshot
	ErrTagExists = errors.New("tag already used")

	// ErrSnapshotInProgress indicates that another snapshot is being taken by this process
	ErrSnapshotInProgress = errors.New("a snapshot is already in progress")

	// ErrPrecheckFailed indicates that some resources failed their precheck: nothing was mutated
	ErrPrecheckFailed = errors.New("precheck failed")

	// ErrResourceNotFound indicates an unknown resource name
	ErrResourceNotFound = errors.New("resource not found")

	// ErrNotSupported indicates that a resource does not support an operation
	ErrNotSupported = errors.New("not supported")

	// ErrRestoreFailed indicates that a restore failed after all prechecks passed
	ErrRestoreFailed = errors.New("restore failed")

	// ErrNotWorkspace indicates that no workspace was found at or above a directory
	ErrNotWorkspace = errors.New("not a data workspace")
)
