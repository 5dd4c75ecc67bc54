package engine

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/lineage"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/kisdma/data-workspaces-core/pkg/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fullHash = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestTakeSnapshot(t *testing.T) {
	ctx := context.Background()
	e, dir := newFileWorkspace(t)

	snap, err := e.TakeSnapshot(ctx, "v1", "first")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Number)
	assert.Regexp(t, fullHash, snap.Hash)
	assert.Equal(t, []string{"v1"}, snap.Tags)
	assert.Equal(t, "first", snap.Message)
	assert.Equal(t, "testhost", snap.Hostname)
	assert.Equal(t, fixedClock()(), snap.Timestamp)
	assert.Len(t, snap.RestoreHashes, 3)
	assert.EqualValues(t, 0.9, snap.Metrics["accuracy"])
	assert.EqualValues(t, 0.1, snap.Metrics["loss.train"])

	archive := filepath.Join(dir, "results", "snapshots", "testhost-v1")
	assert.FileExists(t, filepath.Join(archive, "results.json"))
	assert.FileExists(t, filepath.Join(archive, "lineage.json"))
	assert.NoFileExists(t, filepath.Join(dir, "results", "results.json"))

	reopened, err := workspace.Open(ctx, dir)
	require.NoError(t, err)
	require.Len(t, reopened.History(), 1)
	assert.Equal(t, snap.Hash, reopened.History()[0].Hash)
	assert.Equal(t, 1, reopened.Config().LastSnapshotNumber)

	found, err := e.Find(snap.Hash[:8])
	require.NoError(t, err)
	assert.Equal(t, snap.Number, found.Number)
	found, err = e.Find("v1")
	require.NoError(t, err)
	assert.Equal(t, snap.Hash, found.Hash)
	_, err = e.Find("v2")
	assert.True(t, errors.Is(err, status.ErrSnapshotNotFound))
}

func TestTagRules(t *testing.T) {
	ctx := context.Background()
	e, dir := newFileWorkspace(t)

	_, err := e.TakeSnapshot(ctx, "deadbeef", "")
	assert.True(t, errors.Is(err, status.ErrInvalidArgument), "hash-like tag")
	_, err = e.TakeSnapshot(ctx, "a/b", "")
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))

	first, err := e.TakeSnapshot(ctx, "v1", "")
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "data", "train.csv"), "changed")
	_, err = e.TakeSnapshot(ctx, "v1", "")
	assert.True(t, errors.Is(err, status.ErrTagExists))
	assert.Len(t, e.History(), 1, "history is unchanged")

	second, err := e.TakeSnapshot(ctx, "", "untagged")
	require.NoError(t, err)
	assert.Empty(t, second.Tags)
	assert.DirExists(t, filepath.Join(dir, "results", "snapshots", "testhost-2"))

	tagged, err := e.AddTag(ctx, second.Hash, "v2")
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, tagged.Tags)
	_, err = e.AddTag(ctx, first.Hash, "v2")
	assert.True(t, errors.Is(err, status.ErrTagExists))
	_, err = e.AddTag(ctx, "v1", "v1")
	require.NoError(t, err, "tagging again is idempotent")
	assert.Equal(t, []string{"v1", "v2"}, e.History().Tags())
}

func TestSnapshotNumbers(t *testing.T) {
	ctx := context.Background()
	e, dir := newFileWorkspace(t)

	s1, err := e.TakeSnapshot(ctx, "", "")
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "data", "train.csv"), "v2")
	s2, err := e.TakeSnapshot(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, s1.Number)
	assert.Equal(t, 2, s2.Number)

	deleted, err := e.DeleteSnapshot(ctx, "2", false)
	assert.True(t, errors.Is(err, status.ErrSnapshotNotFound), "numbers are not tags")
	assert.Empty(t, deleted.Hash)

	deleted, err = e.DeleteSnapshot(ctx, s2.Hash, true)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted.Number)
	assert.Len(t, e.History(), 1)
	assert.NoDirExists(t, filepath.Join(dir, "results", "snapshots", "testhost-2"))
	assert.DirExists(t, filepath.Join(dir, "results", "snapshots", "testhost-1"))

	writeFile(t, filepath.Join(dir, "data", "train.csv"), "v3")
	s3, err := e.TakeSnapshot(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, 3, s3.Number, "numbers are never reused")
	require.NoError(t, e.History().Validate())
}

func TestSnapshotInProgress(t *testing.T) {
	ctx := context.Background()
	e, _ := newFileWorkspace(t)

	e.inProgress.Store(true)
	_, err := e.TakeSnapshot(ctx, "", "")
	assert.True(t, errors.Is(err, status.ErrSnapshotInProgress))
	_, err = e.Restore(ctx, "v1", RestoreOptions{})
	assert.True(t, errors.Is(err, status.ErrSnapshotInProgress))
	e.inProgress.Store(false)

	_, err = e.TakeSnapshot(ctx, "", "")
	require.NoError(t, err)
	assert.False(t, e.inProgress.Load())
}

func TestPrecheckFailure(t *testing.T) {
	ctx := context.Background()
	e, dir := newFileWorkspace(t)
	require.NoError(t, e.Workspace().Fs().RemoveAll(filepath.Join(dir, "features")))

	_, err := e.TakeSnapshot(ctx, "v1", "")
	require.True(t, errors.Is(err, status.ErrPrecheckFailed))
	assert.Empty(t, e.History())
	assert.FileExists(t, filepath.Join(dir, "results", "results.json"), "results are not archived")
	assert.NoDirExists(t, filepath.Join(dir, "results", "snapshots"))
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	e, dir := newFileWorkspace(t)
	trainFile := filepath.Join(dir, "data", "train.csv")

	v1, err := e.TakeSnapshot(ctx, "v1", "")
	require.NoError(t, err)
	writeFile(t, trainFile, "changed")
	_, err = e.TakeSnapshot(ctx, "v2", "")
	require.NoError(t, err)

	_, err = e.Restore(ctx, "v1", RestoreOptions{})
	require.True(t, errors.Is(err, status.ErrPrecheckFailed), "file resources cannot recreate content")
	assert.Contains(t, err.Error(), "data")
	assert.Equal(t, "changed", readFile(t, trainFile))

	restored, err := e.Restore(ctx, "v1", RestoreOptions{Leave: []string{"data"}})
	require.NoError(t, err)
	assert.Equal(t, v1.Hash, restored.Snapshot.Hash)
	assert.Equal(t, []string{"data", "results"}, restored.Left)

	writeFile(t, trainFile, "1,2\n3,4\n")
	_, err = e.Restore(ctx, v1.Hash[:10], RestoreOptions{})
	require.NoError(t, err)

	_, err = e.Restore(ctx, "v1", RestoreOptions{Only: []string{"data"}, Leave: []string{"features"}})
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))
	_, err = e.Restore(ctx, "v1", RestoreOptions{Only: []string{"nope"}})
	assert.True(t, errors.Is(err, status.ErrResourceNotFound))
	_, err = e.Restore(ctx, "v9", RestoreOptions{})
	assert.True(t, errors.Is(err, status.ErrSnapshotNotFound))
}

func TestSnapshotLineage(t *testing.T) {
	ctx := context.Background()
	e, dir := newFileWorkspace(t)
	store := e.Workspace().Lineage()

	prep := lineage.StepOptions{
		Name:    "prep",
		Inputs:  []model.ResourceRef{model.NewRef("data", "")},
		Outputs: []model.ResourceRef{model.NewRef("features", "")},
	}
	train := lineage.StepOptions{
		Name:    "train",
		Inputs:  []model.ResourceRef{model.NewRef("features", "")},
		Outputs: []model.ResourceRef{model.NewRef("results", "")},
	}
	noop := func(*lineage.Session) error { return nil }
	require.NoError(t, store.Capture(ctx, prep, noop))
	require.NoError(t, store.Capture(ctx, train, noop))

	s1, err := e.TakeSnapshot(ctx, "v1", "")
	require.NoError(t, err)
	m1, err := e.Manifest(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, m1.Lineages, 3)

	var archived model.LineageFile
	require.NoError(t, readJSONFile(filepath.Join(dir, "results", "snapshots", "testhost-v1", "lineage.json"), &archived))
	assert.Len(t, archived.Lineages, 3)

	records, err := store.Load(ctx, "results")
	require.NoError(t, err)
	assert.Empty(t, records, "results lineage is cleared once archived")

	writeFile(t, filepath.Join(dir, "results", "results.json"), `{"metrics": {"accuracy": 0.95}}`)
	require.NoError(t, store.Capture(ctx, train, noop))
	s2, err := e.TakeSnapshot(ctx, "v2", "")
	require.NoError(t, err)
	assert.NotEqual(t, s1.Hash, s2.Hash)
	m2, err := e.Manifest(ctx, "v2")
	require.NoError(t, err)
	assert.Len(t, m2.Lineages, 3)
	assert.EqualValues(t, 0.95, s2.Metrics["accuracy"])

	count, err := store.Validate(ctx, []model.ResourceRef{model.NewRef("results", "")}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// restoring v1 brings back its lineage
	require.NoError(t, store.Capture(ctx, lineage.StepOptions{Name: "prep2", Outputs: []model.ResourceRef{model.NewRef("features", "")}}, noop))
	_, err = e.Restore(ctx, "v1", RestoreOptions{Only: []string{"features"}})
	require.NoError(t, err)
	rec, err := store.Get(ctx, model.NewRef("features", ""))
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.NotNil(t, rec.Step)
	assert.Equal(t, "prep", rec.Step.Name)

	_, err = e.DeleteSnapshot(ctx, "v1", false)
	require.NoError(t, err)
	gone, err := store.SnapshotManifest(ctx, s1.Hash)
	require.NoError(t, err)
	assert.Empty(t, gone.Lineages)
}

func TestDuplicateSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ws, err := workspace.Init(ctx, dir, "ws", workspace.NoVCS())
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "data", "a.csv"), "1")
	_, err = ws.AddResource(ctx, resourceSpec("data", "data"))
	require.NoError(t, err)
	e := New(ws)

	first, err := e.TakeSnapshot(ctx, "", "")
	require.NoError(t, err)
	again, err := e.TakeSnapshot(ctx, "same", "")
	require.NoError(t, err)
	assert.Equal(t, first.Hash, again.Hash)
	assert.Equal(t, first.Number, again.Number)
	assert.Equal(t, []string{"same"}, again.Tags)
	assert.Len(t, e.History(), 1)
}
