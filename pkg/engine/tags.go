package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/resource"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// AddTag to an existing snapshot. Tags are unique across the history.
func (e *Engine) AddTag(ctx context.Context, hashOrTag, tag string) (model.Snapshot, error) {
	if err := model.ValidateTag(tag); err != nil {
		return model.Snapshot{}, status.ErrInvalidArgument.Wrap(err)
	}
	snap, err := e.Find(hashOrTag)
	if err != nil {
		return model.Snapshot{}, err
	}
	history := e.ws.History()
	if i := history.FindTag(tag); i >= 0 {
		if history[i].Hash == snap.Hash {
			return snap, nil
		}
		return model.Snapshot{}, status.ErrTagExists.WrapMessage("tag %q is used by snapshot %d", tag, history[i].Number)
	}
	i := history.FindHash(snap.Hash)
	snap.Tags = append(append([]string{}, snap.Tags...), tag)
	history[i] = snap

	txn := e.ws.Begin()
	txn.SetHistory(history)
	if err := txn.Commit(ctx); err != nil {
		return model.Snapshot{}, err
	}
	return snap, e.ws.Save(ctx, fmt.Sprintf("Tag snapshot %d as %s", snap.Number, tag))
}

// DeleteSnapshot removes a snapshot from the history. Artifacts only referenced by this snapshot are
// garbage-collected by their resources. With removeResults, archived results of the snapshot are deleted too.
//
// Snapshot numbers are not reused afterwards.
func (e *Engine) DeleteSnapshot(ctx context.Context, hashOrTag string, removeResults bool) (model.Snapshot, error) {
	if err := e.begin(); err != nil {
		return model.Snapshot{}, err
	}
	defer e.end()

	snap, err := e.Find(hashOrTag)
	if err != nil {
		return model.Snapshot{}, err
	}
	history := e.ws.History()
	i := history.FindHash(snap.Hash)
	remaining := append(append(model.SnapshotHistory{}, history[:i]...), history[i+1:]...)

	txn := e.ws.Begin()
	cfg := txn.Config()
	if snap.Number > cfg.LastSnapshotNumber {
		cfg.LastSnapshotNumber = snap.Number
		txn.SetConfig(cfg)
	}
	txn.SetHistory(remaining)
	if err := txn.Commit(ctx); err != nil {
		return model.Snapshot{}, err
	}
	e.l.Info("deleted snapshot", zap.Int("number", snap.Number), zap.String("hash", snap.Hash))

	resources, err := e.resources()
	if err != nil {
		return snap, err
	}
	for _, r := range resources {
		if _, ok := snap.RestoreHashes[r.Name()]; !ok {
			continue
		}
		if err := r.DeleteSnapshot(ctx, snap, remaining); err != nil {
			e.l.Warn("cannot collect snapshot artifacts", zap.String("resource", r.Name()), zap.Error(err))
		}
		if removeResults && r.Role() == model.RoleResults {
			e.removeArchive(r, snap)
		}
	}
	if err := e.ws.Lineage().DeleteSnapshotCopy(ctx, snap.Hash); err != nil {
		e.l.Warn("cannot delete snapshot lineage", zap.Error(err))
	}
	return snap, e.ws.Save(ctx, fmt.Sprintf("Delete snapshot %s", snap.Name()))
}

// removeArchive deletes the results archived when the snapshot was taken. Tags added later do not rename it.
func (e *Engine) removeArchive(r resource.Resource, snap model.Snapshot) {
	ls, ok := r.(resource.LocalState)
	if !ok || snap.ResultsDir == "" {
		return
	}
	dir := filepath.Join(ls.LocalPath(), filepath.FromSlash(snap.ResultsDir))
	exists, err := afero.DirExists(e.ws.Fs(), dir)
	if err != nil || !exists {
		return
	}
	if err := e.ws.Fs().RemoveAll(dir); err != nil {
		e.l.Warn("cannot remove archived results", zap.String("dir", dir), zap.Error(err))
		return
	}
	e.l.Info("removed archived results", zap.String("dir", dir))
}
