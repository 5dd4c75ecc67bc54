package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/resource"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RestoreOptions select the resources to restore. Only and Leave are exclusive.
type RestoreOptions struct {
	// Only restores these resources
	Only []string

	// Leave these resources as they are
	Leave []string

	// NoNewSnapshot skips the snapshot of the resulting state when some resources are left
	NoNewSnapshot bool
}

// Restored is the outcome of a restore
type Restored struct {
	// Snapshot restored
	Snapshot model.Snapshot

	// Resources restored, sorted
	Resources []string

	// Left are the resources kept as they were, in declaration order
	Left []string

	// Revised is the snapshot of the resulting state, when it differs from the restored snapshot
	Revised *model.Snapshot
}

type restoreTarget struct {
	r        resource.Resource
	hash     string
	previous string
}

// Restore the resources of a workspace to the state of a snapshot.
//
// Results resources are never restored. Resources added after the snapshot are left as they are.
// All resources are prechecked before any is restored: if a precheck fails, nothing is changed.
// If a restore fails, resources already restored are rolled back when they can tell their prior state.
//
// When data or code resources are left, the resulting state is a new one: it is snapshotted and
// appended to the history, unless NoNewSnapshot is set.
func (e *Engine) Restore(ctx context.Context, hashOrTag string, opts RestoreOptions) (Restored, error) {
	if err := e.begin(); err != nil {
		return Restored{}, err
	}
	defer e.end()

	snap, err := e.Find(hashOrTag)
	if err != nil {
		return Restored{}, err
	}
	all, err := e.resources()
	if err != nil {
		return Restored{}, err
	}
	selected, err := e.selectResources(opts.Only, opts.Leave)
	if err != nil {
		return Restored{}, err
	}

	out := Restored{Snapshot: snap}
	chosen := make(map[string]*restoreTarget, len(selected))
	targets := make([]*restoreTarget, 0, len(selected))
	for _, r := range selected {
		if r.Role() == model.RoleResults {
			if len(opts.Only) > 0 {
				return Restored{}, status.ErrInvalidArgument.WrapMessage("resource %s holds results, which are never restored", r.Name())
			}
			continue
		}
		hash, ok := snap.RestoreHashes[r.Name()]
		if !ok {
			e.l.Info("resource is not part of the snapshot, leaving it", zap.String("resource", r.Name()))
			continue
		}
		t := &restoreTarget{r: r, hash: hash}
		chosen[r.Name()] = t
		targets = append(targets, t)
	}

	revise := false
	var left []resource.Resource
	for _, r := range all {
		if _, ok := chosen[r.Name()]; ok {
			continue
		}
		left = append(left, r)
		out.Left = append(out.Left, r.Name())
		if r.Role() != model.RoleResults {
			revise = !opts.NoNewSnapshot
		}
	}

	errs := e.restorePrecheck(ctx, targets)
	if revise {
		for _, r := range left {
			if err := r.SnapshotPrecheck(ctx); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("resource %s: %w", r.Name(), err))
			}
		}
	}
	if errs != nil {
		return Restored{}, status.ErrPrecheckFailed.Wrap(errs)
	}

	e.l.Info("restoring snapshot", zap.Int("number", snap.Number), zap.String("hash", snap.Hash), zap.Int("resources", len(targets)))
	for i, t := range targets {
		if err := t.r.Restore(ctx, t.hash); err != nil {
			rollbackErr := e.rollback(ctx, targets[:i])
			return Restored{}, status.ErrRestoreFailed.Wrap(
				multierr.Append(fmt.Errorf("resource %s: %w", t.r.Name(), err), rollbackErr))
		}
	}

	out.Resources = make([]string, 0, len(targets))
	restoreHashes := make(map[string]string, len(targets))
	for _, t := range targets {
		out.Resources = append(out.Resources, t.r.Name())
		restoreHashes[t.r.Name()] = t.hash
	}
	sort.Strings(out.Resources)
	if err := e.ws.Lineage().RestoreFromSnapshot(ctx, snap.Hash, out.Resources); err != nil {
		return out, err
	}

	message := fmt.Sprintf("Restore snapshot %s", snap.Name())
	if revise {
		revised, err := e.reviseSnapshot(ctx, snap, all, restoreHashes)
		if err != nil {
			return out, err
		}
		if revised.Hash != snap.Hash {
			out.Revised = &revised
			message = fmt.Sprintf("Partial restore of snapshot %s, resulting in snapshot %d", snap.Name(), revised.Number)
		}
	}
	if err := e.ws.Save(ctx, message); err != nil {
		return out, err
	}
	return out, nil
}

// reviseSnapshot records the state after a partial restore: restored resources keep the hash of the
// restored snapshot, the others are snapshotted. A state already in the history is not recorded twice.
func (e *Engine) reviseSnapshot(ctx context.Context, restored model.Snapshot, resources []resource.Resource, restoreHashes map[string]string) (model.Snapshot, error) {
	revised := model.Snapshot{
		Tags:          []string{},
		Timestamp:     e.now().UTC(),
		Message:       fmt.Sprintf("Partial restore of snapshot %s", restored.Name()),
		Hostname:      e.ws.Hostname(),
		RestoreHashes: make(map[string]string, len(resources)),
		RemoteRefs:    make(map[string]string),
		Metrics:       make(map[string]interface{}),
	}
	for name := range restoreHashes {
		if ref, ok := restored.RemoteRefs[name]; ok {
			revised.RemoteRefs[name] = ref
		}
	}
	if err := e.snapshotResources(ctx, resources, &revised, restoreHashes); err != nil {
		return model.Snapshot{}, err
	}

	history := e.ws.History()
	if i := history.FindHash(revised.Hash); i >= 0 {
		e.l.Info("restored state matches an existing snapshot", zap.Int("number", history[i].Number))
		return history[i], nil
	}
	revised.Number = history.NextNumber(e.ws.Config().LastSnapshotNumber)
	if err := e.commitSnapshot(ctx, revised); err != nil {
		return model.Snapshot{}, err
	}
	e.l.Info("revised snapshot taken", zap.Int("number", revised.Number), zap.String("hash", revised.Hash))
	return revised, nil
}

// restorePrecheck checks all targets, and records the state to roll back to
func (e *Engine) restorePrecheck(ctx context.Context, targets []*restoreTarget) error {
	var errs error
	for _, t := range targets {
		if err := t.r.RestorePrecheck(ctx, t.hash); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("resource %s: %w", t.r.Name(), err))
			continue
		}
		if st, ok := t.r.(resource.Stater); ok {
			previous, err := st.CurrentRestoreHash(ctx)
			if err != nil {
				e.l.Warn("cannot tell current state, no rollback possible", zap.String("resource", t.r.Name()), zap.Error(err))
				continue
			}
			t.previous = previous
		}
	}
	return errs
}

// rollback restored resources, in reverse order
func (e *Engine) rollback(ctx context.Context, restored []*restoreTarget) error {
	var errs error
	for i := len(restored) - 1; i >= 0; i-- {
		t := restored[i]
		if t.previous == "" || t.previous == t.hash {
			continue
		}
		e.l.Warn("rolling back resource", zap.String("resource", t.r.Name()), zap.String("hash", t.previous))
		if err := t.r.Restore(ctx, t.previous); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("rollback of resource %s: %w", t.r.Name(), err))
		}
	}
	return errs
}
