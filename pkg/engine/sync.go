package engine

import (
	"context"
	"fmt"

	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/resource"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/kisdma/data-workspaces-core/pkg/vcs"
	"go.uber.org/zap"
)

// SyncOptions select the resources to push or pull. Only and Skip are exclusive.
type SyncOptions struct {
	Only []string
	Skip []string

	// MetadataOnly only syncs the workspace metadata
	MetadataOnly bool
}

func (e *Engine) syncers(opts SyncOptions) ([]resource.Resource, error) {
	if opts.MetadataOnly {
		return nil, nil
	}
	selected, err := e.selectResources(opts.Only, opts.Skip)
	if err != nil {
		return nil, err
	}
	syncers := make([]resource.Resource, 0, len(selected))
	for _, r := range selected {
		if _, ok := r.(resource.Syncer); ok {
			syncers = append(syncers, r)
		}
	}
	return syncers, nil
}

// Push resources to their remotes, then the workspace itself
func (e *Engine) Push(ctx context.Context, opts SyncOptions) error {
	syncers, err := e.syncers(opts)
	if err != nil {
		return err
	}
	if err := precheck(ctx, syncers, func(ctx context.Context, r resource.Resource) error {
		return r.(resource.Syncer).PushPrecheck(ctx)
	}); err != nil {
		return err
	}
	for _, r := range syncers {
		if err := r.(resource.Syncer).Push(ctx); err != nil {
			return fmt.Errorf("push of resource %s: %w", r.Name(), err)
		}
		e.l.Info("pushed resource", zap.String("resource", r.Name()))
	}
	if err := e.ws.Save(ctx, "Push workspace"); err != nil {
		return err
	}
	return e.syncWorkspace(ctx, e.ws.VCS().Push)
}

// Pull the workspace, then resources from their remotes.
//
// Current lineage is invalidated, since pulled content was produced elsewhere.
func (e *Engine) Pull(ctx context.Context, opts SyncOptions) error {
	if err := e.syncWorkspace(ctx, e.ws.VCS().Pull); err != nil {
		return err
	}
	if err := e.ws.Reload(ctx); err != nil {
		return err
	}
	syncers, err := e.syncers(opts)
	if err != nil {
		return err
	}
	if err := precheck(ctx, syncers, func(ctx context.Context, r resource.Resource) error {
		return r.(resource.Syncer).PullPrecheck(ctx)
	}); err != nil {
		return err
	}
	for _, r := range syncers {
		if err := r.(resource.Syncer).Pull(ctx); err != nil {
			return fmt.Errorf("pull of resource %s: %w", r.Name(), err)
		}
		e.l.Info("pulled resource", zap.String("resource", r.Name()))
	}
	return e.ws.Lineage().Invalidate(ctx)
}

func (e *Engine) syncWorkspace(ctx context.Context, sync func(context.Context) error) error {
	origin, err := e.ws.VCS().RemoteURL(ctx)
	switch {
	case errors.Is(err, vcs.ErrNoVCS):
		e.l.Debug("workspace is not version controlled, skipping sync")
		return nil
	case err != nil:
		return err
	case origin == "":
		e.l.Info("workspace has no origin, skipping sync")
		return nil
	}
	if err := sync(ctx); err != nil {
		return status.ErrConfiguration.Wrap(err)
	}
	return nil
}
