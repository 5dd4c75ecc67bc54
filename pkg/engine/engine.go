// Package engine takes and restores snapshots of a workspace.
//
// Multi-resource operations are staged: every resource is prechecked before any is mutated.
// A snapshot is committed by appending to the snapshot history, last.
package engine

import (
	"context"
	"time"

	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/resource"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/kisdma/data-workspaces-core/pkg/workspace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Engine runs snapshot operations on a workspace
type Engine struct {
	ws         *workspace.Workspace
	resources  func() ([]resource.Resource, error)
	inProgress *atomic.Bool
	now        func() time.Time
	l          *zap.Logger
}

// Option for the engine
type Option func(*Engine)

// Logger for the engine. Defaults to the workspace logger.
func Logger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.l = l
		}
	}
}

// Clock overrides the time source of snapshot timestamps
func Clock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New snapshot engine for a workspace
func New(ws *workspace.Workspace, opts ...Option) *Engine {
	e := &Engine{
		ws:         ws,
		resources:  ws.Resources,
		inProgress: atomic.NewBool(false),
		now:        time.Now,
		l:          ws.Logger(),
	}
	for _, apply := range opts {
		apply(e)
	}
	return e
}

// Workspace operated by the engine
func (e *Engine) Workspace() *workspace.Workspace {
	return e.ws
}

// History of snapshots
func (e *Engine) History() model.SnapshotHistory {
	return e.ws.History()
}

// Find a snapshot by tag, hash or unambiguous hash prefix
func (e *Engine) Find(hashOrTag string) (model.Snapshot, error) {
	history := e.ws.History()
	i, err := history.Find(hashOrTag)
	if err != nil {
		return model.Snapshot{}, status.ErrSnapshotNotFound.Wrap(err)
	}
	if i < 0 {
		return model.Snapshot{}, status.ErrSnapshotNotFound.WrapMessage("no snapshot with hash or tag %q", hashOrTag)
	}
	return history[i], nil
}

// Manifest of the lineage saved with a snapshot
func (e *Engine) Manifest(ctx context.Context, hashOrTag string) (model.LineageFile, error) {
	snap, err := e.Find(hashOrTag)
	if err != nil {
		return model.LineageFile{}, err
	}
	return e.ws.Lineage().SnapshotManifest(ctx, snap.Hash)
}

// selectResources filters resources by name: only the listed ones, or all but the left ones
func (e *Engine) selectResources(only, leave []string) ([]resource.Resource, error) {
	if len(only) > 0 && len(leave) > 0 {
		return nil, status.ErrInvalidArgument.WrapMessage("cannot both select and leave resources")
	}
	all, err := e.resources()
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(all))
	for _, r := range all {
		known[r.Name()] = struct{}{}
	}
	names := make(map[string]struct{}, len(only)+len(leave))
	for _, n := range append(append([]string{}, only...), leave...) {
		if _, ok := known[n]; !ok {
			return nil, status.ErrResourceNotFound.WrapMessage("%q", n)
		}
		names[n] = struct{}{}
	}
	selected := make([]resource.Resource, 0, len(all))
	for _, r := range all {
		_, listed := names[r.Name()]
		switch {
		case len(only) > 0 && !listed:
		case len(leave) > 0 && listed:
		default:
			selected = append(selected, r)
		}
	}
	return selected, nil
}
