package resource

import (
	"context"
	"testing"

	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypes(t *testing.T) {
	assert.Equal(t, []string{TypeFile, TypeGit, TypeGitSubdirectory, TypeRemote}, Types())

	_, err := Lookup("svn")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrConfiguration))
}

func TestNewValidatesSpec(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := New(ctx, Spec{Name: "data", Role: model.RoleSourceData, LocalPath: "data"}, env)
	assert.True(t, errors.Is(err, status.ErrInvalidArgument), "missing type")

	_, err = New(ctx, Spec{Type: "svn", Name: "data", Role: model.RoleSourceData, LocalPath: "data"}, env)
	assert.True(t, errors.Is(err, status.ErrInvalidArgument), "unknown type")

	_, err = New(ctx, Spec{Type: TypeFile, Name: "bad/name", Role: model.RoleSourceData, LocalPath: "data"}, env)
	assert.True(t, errors.Is(err, status.ErrInvalidArgument), "invalid name")

	_, err = New(ctx, Spec{Type: TypeFile, Name: "data", Role: "output", LocalPath: "data"}, env)
	assert.True(t, errors.Is(err, status.ErrInvalidArgument), "invalid role")

	_, err = New(ctx, Spec{Type: TypeFile, Name: "data", Role: model.RoleSourceData, LocalPath: "missing"}, env)
	assert.True(t, errors.Is(err, status.ErrInvalidArgument), "missing directory")

	_, err = New(ctx, Spec{Type: TypeGitSubdirectory, Name: "code", Role: model.RoleCode, LocalPath: "code"}, env)
	assert.True(t, errors.Is(err, status.ErrInvalidArgument), "git-subdirectory needs a git workspace")
}

func TestFromParamsValidates(t *testing.T) {
	env := newTestEnv(t)

	_, err := FromParams(model.ResourceParams{Name: "data", Role: model.RoleSourceData, Type: "svn"}, model.ResourceLocalParams{}, env)
	assert.True(t, errors.Is(err, status.ErrConfiguration))

	_, err = FromParams(model.ResourceParams{Name: "data", Role: "nope", Type: TypeFile}, model.ResourceLocalParams{}, env)
	assert.True(t, errors.Is(err, status.ErrConfiguration))

	_, err = FromParams(model.ResourceParams{Name: "data", Role: model.RoleSourceData, Type: TypeFile}, model.ResourceLocalParams{}, env)
	assert.True(t, errors.Is(err, status.ErrConfiguration), "no local path")

	r, err := FromParams(model.ResourceParams{Name: "data", Role: model.RoleSourceData, Type: TypeFile, RelativePath: "data"}, model.ResourceLocalParams{}, env)
	require.NoError(t, err)
	assert.Equal(t, env.path("data"), r.(LocalState).LocalPath())
	assert.Equal(t, "data", r.LocalParams().Name)
}
