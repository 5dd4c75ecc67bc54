package workspace

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/resource"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/kisdma/data-workspaces-core/pkg/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, ioutil.WriteFile(p, []byte(content), 0644))
}

func TestInitOpen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "project")

	w, err := Init(ctx, dir, "", NoVCS(), Hostname("laptop"))
	require.NoError(t, err)
	assert.Equal(t, "project", w.Name())
	assert.Equal(t, "laptop", w.Hostname())
	assert.Equal(t, model.CurrentToolVersion, w.Config().ToolVersion)
	assert.IsType(t, vcs.Nop{}, w.VCS())
	assert.Empty(t, w.History())
	for _, f := range []string{"config.json", "local_params.json", "resources.json", "resource_local_params.json", "snapshots/snapshot_history.json", ".gitignore"} {
		assert.FileExists(t, filepath.Join(dir, model.MetadataDir, filepath.FromSlash(f)))
	}

	_, err = Init(ctx, dir, "", NoVCS())
	assert.True(t, errors.Is(err, status.ErrInvalidArgument), "already a workspace")

	_, err = Init(ctx, t.TempDir(), "bad name", NoVCS())
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))

	writeFile(t, filepath.Join(dir, "data", "sub", "a.csv"), "1,2")
	found, err := Find(ctx, filepath.Join(dir, "data", "sub"), NoVCS())
	require.NoError(t, err)
	assert.Equal(t, dir, found.Dir())
	assert.Equal(t, "laptop", found.Hostname())

	_, err = Open(ctx, t.TempDir())
	assert.True(t, errors.Is(err, status.ErrNotWorkspace))
	_, err = FindWorkspace(found.Fs(), t.TempDir())
	assert.True(t, errors.Is(err, status.ErrNotWorkspace))
}

func TestOpenMalformed(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	_, err := Init(ctx, dir, "ws", NoVCS())
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, model.MetadataDir, "resources.json"), "{not json")
	_, err = Open(ctx, dir)
	assert.True(t, errors.Is(err, status.ErrConfiguration))

	require.NoError(t, os.Remove(filepath.Join(dir, model.MetadataDir, "resources.json")))
	_, err = Open(ctx, dir)
	assert.True(t, errors.Is(err, status.ErrConfiguration))
}

func TestAddResource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	w, err := Init(ctx, dir, "ws", NoVCS())
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "data", "train.csv"), "1,2")
	writeFile(t, filepath.Join(dir, "results", "out.txt"), "x")

	_, err = w.AddResource(ctx, resource.Spec{Type: resource.TypeFile, Name: "data", Role: model.RoleSourceData, LocalPath: "data"})
	require.NoError(t, err)
	_, err = w.AddResource(ctx, resource.Spec{Type: resource.TypeFile, Name: "results", Role: model.RoleResults, LocalPath: filepath.Join(dir, "results")})
	require.NoError(t, err)

	_, err = w.AddResource(ctx, resource.Spec{Type: resource.TypeFile, Name: "data", Role: model.RoleSourceData, LocalPath: "results"})
	assert.True(t, errors.Is(err, status.ErrInvalidArgument), "duplicate name")

	assert.Equal(t, []string{"data", "results"}, w.ResourceNames())

	reopened, err := Open(ctx, dir)
	require.NoError(t, err)
	resources, err := reopened.Resources()
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, "data", resources[0].Name())
	assert.Equal(t, model.RoleResults, resources[1].Role())
	_, isResults := resources[1].(resource.Results)
	assert.True(t, isResults)

	_, err = reopened.Resource("nope")
	assert.True(t, errors.Is(err, status.ErrResourceNotFound))
	role, err := reopened.Role("data")
	require.NoError(t, err)
	assert.Equal(t, model.RoleSourceData, role)
}

func TestMapLocalPathAndFingerprint(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	w, err := Init(ctx, dir, "ws", NoVCS())
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "data", "raw", "train.csv"), "1,2")
	_, err = w.AddResource(ctx, resource.Spec{Type: resource.TypeFile, Name: "data", Role: model.RoleSourceData, LocalPath: "data"})
	require.NoError(t, err)

	ref, err := w.MapLocalPath(filepath.Join(dir, "data", "raw", "train.csv"))
	require.NoError(t, err)
	assert.Equal(t, model.NewRef("data", "raw/train.csv"), ref)

	ref, err = w.MapLocalPath(filepath.Join(dir, "data"))
	require.NoError(t, err)
	assert.Equal(t, model.NewRef("data", ""), ref)

	_, err = w.MapLocalPath(filepath.Join(dir, "elsewhere"))
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))

	fp1, err := w.Fingerprint(ctx, model.NewRef("data", "raw/train.csv"))
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "data", "raw", "train.csv"), "3,4")
	fp2, err := w.Fingerprint(ctx, model.NewRef("data", "raw/train.csv"))
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp2)

	_, err = w.Fingerprint(ctx, model.NewRef("nope", ""))
	assert.True(t, errors.Is(err, status.ErrResourceNotFound))
}

func TestTxn(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	w, err := Init(ctx, dir, "ws", NoVCS())
	require.NoError(t, err)

	txn := w.Begin()
	cfg := txn.Config()
	cfg.LastSnapshotNumber = 1
	txn.SetConfig(cfg)
	txn.AppendSnapshot(model.Snapshot{Number: 1, Hash: "abc", RestoreHashes: map[string]string{}})
	assert.Empty(t, w.History(), "nothing visible before commit")
	require.NoError(t, txn.Commit(ctx))
	require.Error(t, txn.Commit(ctx))
	assert.Len(t, w.History(), 1)

	bad := w.Begin()
	bad.AppendSnapshot(model.Snapshot{Number: 1, Hash: "def"})
	err = bad.Commit(ctx)
	assert.True(t, errors.Is(err, status.ErrInvalidArgument), "numbers must increase")

	reopened, err := Open(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Config().LastSnapshotNumber)
	assert.Equal(t, "abc", reopened.History()[0].Hash)

	require.NoError(t, reopened.SetGlobalParam(ctx, "owner", "data-team"))
	require.NoError(t, reopened.SetLocalParam(ctx, "scratch", "/tmp"))
	again, err := Open(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "data-team", again.GlobalParams()["owner"])
	assert.Equal(t, "/tmp", again.LocalParams()["scratch"])
}

func TestGitWorkspace(t *testing.T) {
	if !vcs.Available() {
		t.Skip("git is not available")
	}
	ctx := context.Background()
	dir := t.TempDir()
	w, err := Init(ctx, dir, "ws", VCSOptions(vcs.Identity("tester", "tester@example.com")))
	require.NoError(t, err)
	_, isGit := w.VCS().(*vcs.Git)
	require.True(t, isGit)
	dirty, err := w.VCS().IsDirty(ctx, model.MetadataDir)
	require.NoError(t, err)
	assert.False(t, dirty, "metadata are committed")

	writeFile(t, filepath.Join(dir, "data", "train.csv"), "1,2")
	_, err = w.AddResource(ctx, resource.Spec{Type: resource.TypeFile, Name: "data", Role: model.RoleSourceData, LocalPath: "data"})
	require.NoError(t, err)
	ignore, err := ioutil.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(ignore), "/data/")

	dirty, err = w.VCS().IsDirty(ctx, "")
	require.NoError(t, err)
	assert.False(t, dirty, "unmanaged data stay out of the repository")

	_, err = w.AddResource(ctx, resource.Spec{Type: resource.TypeGitSubdirectory, Name: "code", Role: model.RoleCode, LocalPath: "code"})
	require.NoError(t, err)
	assert.NotContains(t, readIgnore(t, dir), "/code/")
}

func readIgnore(t *testing.T, dir string) string {
	b, err := ioutil.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	return string(b)
}
