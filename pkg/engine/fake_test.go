package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/resource"
	"github.com/kisdma/data-workspaces-core/pkg/workspace"
	"github.com/stretchr/testify/require"
)

var (
	_ resource.Resource = &fakeResource{}
	_ resource.Stater   = &fakeResource{}
	_ resource.Syncer   = &fakeResource{}
)

// fakeResource keeps its state in memory: its restore hash is its state
type fakeResource struct {
	name  string
	role  model.Role
	state string

	failSnapshot     error
	failRestore      error
	failPushPrecheck error

	restores []string
	pushed   int
	pulled   int
}

func newFake(name string, role model.Role, state string) *fakeResource {
	return &fakeResource{name: name, role: role, state: state}
}

func (f *fakeResource) Name() string     { return f.name }
func (f *fakeResource) Role() model.Role { return f.role }
func (f *fakeResource) Type() string     { return "fake" }
func (f *fakeResource) String() string   { return fmt.Sprintf("fake resource %q", f.name) }

func (f *fakeResource) Params() model.ResourceParams {
	return model.ResourceParams{Name: f.name, Role: f.role, Type: f.Type()}
}

func (f *fakeResource) LocalParams() model.ResourceLocalParams {
	return model.ResourceLocalParams{Name: f.name}
}

func (f *fakeResource) SnapshotPrecheck(context.Context) error { return nil }

func (f *fakeResource) Snapshot(context.Context) (string, string, error) {
	if f.failSnapshot != nil {
		return "", "", f.failSnapshot
	}
	return f.state, "", nil
}

func (f *fakeResource) RestorePrecheck(context.Context, string) error { return nil }

func (f *fakeResource) Restore(_ context.Context, hash string) error {
	f.restores = append(f.restores, hash)
	if f.failRestore != nil {
		return f.failRestore
	}
	f.state = hash
	return nil
}

func (f *fakeResource) DeleteSnapshot(context.Context, model.Snapshot, model.SnapshotHistory) error {
	return nil
}

func (f *fakeResource) CurrentRestoreHash(context.Context) (string, error) { return f.state, nil }

func (f *fakeResource) PullPrecheck(context.Context) error { return nil }

func (f *fakeResource) Pull(context.Context) error {
	f.pulled++
	return nil
}

func (f *fakeResource) PushPrecheck(context.Context) error { return f.failPushPrecheck }

func (f *fakeResource) Push(context.Context) error {
	f.pushed++
	return nil
}

// withResources declares extra resources after those of the workspace
func withResources(e *Engine, extra ...resource.Resource) {
	ws := e.ws
	e.resources = func() ([]resource.Resource, error) {
		rs, err := ws.Resources()
		if err != nil {
			return nil, err
		}
		return append(rs, extra...), nil
	}
}

// newBareWorkspace sets up a workspace without version control nor resources
func newBareWorkspace(t *testing.T) *Engine {
	t.Helper()
	ws, err := workspace.Init(context.Background(), t.TempDir(), "ws", workspace.NoVCS(), workspace.Hostname("testhost"))
	require.NoError(t, err)
	return New(ws, Clock(fixedClock()))
}
