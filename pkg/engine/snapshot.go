package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/resource"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// archived results of a snapshot in progress, to undo on failure
type archived struct {
	r     resource.Results
	name  string
	moves []resource.Move
}

func (e *Engine) begin() error {
	if !e.inProgress.CompareAndSwap(false, true) {
		return status.ErrSnapshotInProgress
	}
	return nil
}

func (e *Engine) end() {
	e.inProgress.Store(false)
}

// precheck all resources, reporting every failure
func precheck(ctx context.Context, resources []resource.Resource, check func(context.Context, resource.Resource) error) error {
	var errs error
	for _, r := range resources {
		if err := check(ctx, r); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("resource %s: %w", r.Name(), err))
		}
	}
	if errs != nil {
		return status.ErrPrecheckFailed.Wrap(errs)
	}
	return nil
}

// TakeSnapshot captures the state of all resources, and records it in the snapshot history.
//
// Results are archived under a directory named after the tag (or the snapshot number), along with
// the lineage manifest at this point. When the resulting state matches an existing snapshot,
// the archive is undone and the tag, if any, is added to the existing snapshot.
func (e *Engine) TakeSnapshot(ctx context.Context, tag, message string) (model.Snapshot, error) {
	if err := e.begin(); err != nil {
		return model.Snapshot{}, err
	}
	defer e.end()

	history := e.ws.History()
	if tag != "" {
		if err := model.ValidateTag(tag); err != nil {
			return model.Snapshot{}, status.ErrInvalidArgument.Wrap(err)
		}
		if i := history.FindTag(tag); i >= 0 {
			return model.Snapshot{}, status.ErrTagExists.WrapMessage("tag %q is used by snapshot %d", tag, history[i].Number)
		}
	}

	resources, err := e.resources()
	if err != nil {
		return model.Snapshot{}, err
	}
	if err := precheck(ctx, resources, func(ctx context.Context, r resource.Resource) error {
		return r.SnapshotPrecheck(ctx)
	}); err != nil {
		return model.Snapshot{}, err
	}

	number := history.NextNumber(e.ws.Config().LastSnapshotNumber)
	name := snapshotName(tag, number)
	snap := model.Snapshot{
		Number:        number,
		Tags:          tagList(tag),
		Timestamp:     e.now().UTC(),
		Message:       message,
		Hostname:      e.ws.Hostname(),
		RestoreHashes: make(map[string]string, len(resources)),
		RemoteRefs:    make(map[string]string),
		Metrics:       make(map[string]interface{}),
	}
	e.l.Info("taking snapshot", zap.Int("number", number), zap.String("tag", tag), zap.Int("resources", len(resources)))

	moved, err := e.archiveResults(ctx, resources, name, snap.Metrics)
	if err != nil {
		return model.Snapshot{}, err
	}
	committed := false
	defer func() {
		if !committed {
			e.undoArchive(ctx, moved)
		}
	}()
	if len(moved) > 0 {
		snap.ResultsDir = model.GetResultsSnapshotDir(snap.Hostname, name)
	}

	if err := e.snapshotResources(ctx, resources, &snap, nil); err != nil {
		return model.Snapshot{}, err
	}

	if i := history.FindHash(snap.Hash); i >= 0 {
		existing, err := e.mergeDuplicate(ctx, history, i, tag)
		if err != nil {
			return model.Snapshot{}, err
		}
		// nothing new was archived
		return existing, nil
	}

	if err := e.commitSnapshot(ctx, snap); err != nil {
		return model.Snapshot{}, err
	}
	committed = true

	if len(moved) > 0 {
		results := make([]string, 0, len(moved))
		for _, a := range moved {
			results = append(results, a.name)
		}
		if err := e.ws.Lineage().Clear(ctx, results); err != nil {
			e.l.Warn("cannot clear lineage of results", zap.Error(err))
		}
	}
	if err := e.ws.Save(ctx, fmt.Sprintf("Snapshot %s", name)); err != nil {
		return snap, err
	}
	e.l.Info("snapshot taken", zap.Int("number", snap.Number), zap.String("hash", snap.Hash))
	return snap, nil
}

// snapshotResources records the restore hash of every resource, in declaration order, and computes the overall hash.
// Resources with a known restore hash are not snapshotted again.
func (e *Engine) snapshotResources(ctx context.Context, resources []resource.Resource, snap *model.Snapshot, known map[string]string) error {
	names := make([]string, 0, len(resources))
	for _, r := range resources {
		names = append(names, r.Name())
		if hash, ok := known[r.Name()]; ok {
			snap.RestoreHashes[r.Name()] = hash
			continue
		}
		restoreHash, remoteRef, err := r.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("snapshot of resource %s: %w", r.Name(), err)
		}
		snap.RestoreHashes[r.Name()] = restoreHash
		if remoteRef != "" {
			snap.RemoteRefs[r.Name()] = remoteRef
		}
		e.l.Debug("resource snapshot", zap.String("resource", r.Name()), zap.String("hash", restoreHash))
	}
	snap.Hash = snapshotHash(names, snap.RestoreHashes)
	return nil
}

// commitSnapshot saves the lineage of a snapshot, then appends it to the history
func (e *Engine) commitSnapshot(ctx context.Context, snap model.Snapshot) error {
	if err := e.ws.Lineage().SaveSnapshotCopy(ctx, snap.Hash); err != nil {
		return err
	}
	txn := e.ws.Begin()
	cfg := txn.Config()
	cfg.LastSnapshotNumber = snap.Number
	txn.SetConfig(cfg)
	txn.AppendSnapshot(snap)
	if err := txn.Commit(ctx); err != nil {
		_ = e.ws.Lineage().DeleteSnapshotCopy(ctx, snap.Hash)
		return err
	}
	return nil
}

// archiveResults moves the current results aside, harvests their metrics and writes the lineage manifest beside them
func (e *Engine) archiveResults(ctx context.Context, resources []resource.Resource, name string, metrics map[string]interface{}) ([]archived, error) {
	var moved []archived
	var manifest *model.LineageFile
	host := e.ws.Hostname()
	for _, r := range resources {
		res, ok := r.(resource.Results)
		if !ok || r.Role() != model.RoleResults {
			continue
		}
		if manifest == nil {
			m, err := e.ws.Lineage().Manifest(ctx)
			if err != nil {
				e.undoArchive(ctx, moved)
				return nil, err
			}
			manifest = &m
		}
		e.harvestMetrics(ctx, res, metrics)
		moves, err := res.MoveCurrentFiles(ctx, model.GetResultsSnapshotDir(host, name))
		if err != nil {
			e.undoArchive(ctx, moved)
			if errors.Is(err, os.ErrExist) {
				return nil, status.ErrTagExists.WrapMessage("results of a snapshot named %q are already archived in resource %s", name, r.Name())
			}
			return nil, fmt.Errorf("archive of results %s: %w", r.Name(), err)
		}
		moved = append(moved, archived{r: res, name: r.Name(), moves: moves})
		if err := res.AddResultsFile(ctx, model.GetResultsLineageManifest(host, name), manifest); err != nil {
			e.undoArchive(ctx, moved)
			return nil, err
		}
	}
	return moved, nil
}

func (e *Engine) undoArchive(ctx context.Context, moved []archived) {
	for i := len(moved) - 1; i >= 0; i-- {
		if err := moved[i].r.UndoMove(ctx, moved[i].moves); err != nil {
			e.l.Error("cannot undo archive of results", zap.String("resource", moved[i].name), zap.Error(err))
		}
	}
}

// mergeDuplicate adds a tag to an existing snapshot with the same state
func (e *Engine) mergeDuplicate(ctx context.Context, history model.SnapshotHistory, i int, tag string) (model.Snapshot, error) {
	existing := history[i]
	e.l.Info("state matches an existing snapshot", zap.Int("number", existing.Number), zap.String("hash", existing.Hash))
	if tag == "" {
		return existing, nil
	}
	existing.Tags = append(append([]string{}, existing.Tags...), tag)
	updated := append(model.SnapshotHistory{}, history...)
	updated[i] = existing
	txn := e.ws.Begin()
	txn.SetHistory(updated)
	if err := txn.Commit(ctx); err != nil {
		return model.Snapshot{}, err
	}
	if err := e.ws.Save(ctx, fmt.Sprintf("Tag snapshot %d as %s", existing.Number, tag)); err != nil {
		return existing, err
	}
	return existing, nil
}
