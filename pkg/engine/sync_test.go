package engine

import (
	"context"
	"testing"

	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/lineage"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPull(t *testing.T) {
	ctx := context.Background()
	e, _ := newFileWorkspace(t)
	remote := newFake("remote-data", model.RoleSourceData, "r1")
	withResources(e, remote)

	require.NoError(t, e.Push(ctx, SyncOptions{}))
	assert.Equal(t, 1, remote.pushed)
	require.NoError(t, e.Push(ctx, SyncOptions{Only: []string{"data"}}))
	assert.Equal(t, 1, remote.pushed, "file resources do not sync")
	require.NoError(t, e.Push(ctx, SyncOptions{MetadataOnly: true}))
	assert.Equal(t, 1, remote.pushed)

	remote.failPushPrecheck = errors.New("remote is read-only")
	err := e.Push(ctx, SyncOptions{})
	require.True(t, errors.Is(err, status.ErrPrecheckFailed))
	assert.Contains(t, err.Error(), "read-only")
	assert.Equal(t, 1, remote.pushed)

	store := e.Workspace().Lineage()
	require.NoError(t, store.Capture(ctx, lineage.StepOptions{
		Name:    "prep",
		Inputs:  []model.ResourceRef{model.NewRef("data", "")},
		Outputs: []model.ResourceRef{model.NewRef("features", "")},
	}, func(*lineage.Session) error { return nil }))
	records, err := store.Load(ctx, "features")
	require.NoError(t, err)
	require.NotEmpty(t, records)

	require.NoError(t, e.Pull(ctx, SyncOptions{Skip: []string{"data"}}))
	assert.Equal(t, 1, remote.pulled)
	records, err = store.Load(ctx, "features")
	require.NoError(t, err)
	assert.Empty(t, records, "pulled content invalidates current lineage")

	err = e.Pull(ctx, SyncOptions{Only: []string{"nope"}})
	assert.True(t, errors.Is(err, status.ErrResourceNotFound))
	assert.Equal(t, 1, remote.pulled)
}
