package resource

import (
	"context"
	"sort"

	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/status"
)

// Resource types
const (
	TypeGit             = "git"
	TypeGitSubdirectory = "git-subdirectory"
	TypeFile            = "file"
	TypeRemote          = "remote"
)

// Factory builds the resources of some type
type Factory interface {
	// New validates a spec for a new resource and yields its parameters
	New(ctx context.Context, spec Spec, env Env) (model.ResourceParams, model.ResourceLocalParams, error)

	// FromParams builds a resource from its persisted parameters
	FromParams(params model.ResourceParams, local model.ResourceLocalParams, env Env) (Resource, error)

	// Clone materializes a resource on a fresh checkout of a workspace, at some local path
	Clone(ctx context.Context, params model.ResourceParams, localPath string, env Env) (model.ResourceLocalParams, error)
}

// registry is the closed set of resource types, built at initialization
var registry = map[string]Factory{
	TypeGit:             gitFactory{},
	TypeGitSubdirectory: gitSubdirFactory{},
	TypeFile:            fileFactory{},
	TypeRemote:          remoteFactory{},
}

// Types lists the known resource types
func Types() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Lookup the factory of a resource type
func Lookup(resourceType string) (Factory, error) {
	f, ok := registry[resourceType]
	if !ok {
		return nil, status.ErrConfiguration.WrapMessage("unknown resource type %q, expected one of %v", resourceType, Types())
	}
	return f, nil
}

// New validates a spec, and builds a new resource
func New(ctx context.Context, spec Spec, env Env) (Resource, error) {
	if spec.Type == "" {
		return nil, status.ErrInvalidArgument.WrapMessage("a resource type is required")
	}
	f, err := Lookup(spec.Type)
	if err != nil {
		return nil, status.ErrInvalidArgument.Wrap(err)
	}
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	params, local, err := f.New(ctx, spec, env)
	if err != nil {
		return nil, err
	}
	return f.FromParams(params, local, env)
}

// FromParams builds a resource from its persisted parameters
func FromParams(params model.ResourceParams, local model.ResourceLocalParams, env Env) (Resource, error) {
	f, err := Lookup(params.Type)
	if err != nil {
		return nil, err
	}
	if err := model.ValidateName(params.Name); err != nil {
		return nil, status.ErrConfiguration.Wrap(err)
	}
	if _, err := model.ParseRole(string(params.Role)); err != nil {
		return nil, status.ErrConfiguration.Wrap(err)
	}
	return f.FromParams(params, local, env)
}

// Clone materializes a resource on a fresh checkout of a workspace
func Clone(ctx context.Context, params model.ResourceParams, localPath string, env Env) (Resource, error) {
	f, err := Lookup(params.Type)
	if err != nil {
		return nil, err
	}
	local, err := f.Clone(ctx, params, localPath, env)
	if err != nil {
		return nil, err
	}
	return f.FromParams(params, local, env)
}
