package resource

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// base holds what all resources have in common
type base struct {
	params model.ResourceParams
	local  model.ResourceLocalParams
	env    Env
	l      *zap.Logger
}

func newBase(params model.ResourceParams, local model.ResourceLocalParams, env Env) base {
	local.Name = params.Name
	return base{
		params: params,
		local:  local,
		env:    env,
		l:      env.Logger().With(zap.String("resource", params.Name), zap.String("type", params.Type)),
	}
}

func (b *base) Name() string                           { return b.params.Name }
func (b *base) Role() model.Role                       { return b.params.Role }
func (b *base) Type() string                           { return b.params.Type }
func (b *base) Params() model.ResourceParams           { return b.params }
func (b *base) LocalParams() model.ResourceLocalParams { return b.local }

func (b *base) String() string {
	return fmt.Sprintf("%s resource %q (%s)", b.params.Type, b.params.Name, b.params.Role)
}

// DeleteSnapshot has nothing to collect by default
func (b *base) DeleteSnapshot(context.Context, model.Snapshot, model.SnapshotHistory) error {
	return nil
}

func (b *base) configError(format string, args ...interface{}) error {
	return status.ErrConfiguration.WrapMessage("resource %s: "+format, append([]interface{}{b.params.Name}, args...)...)
}

func (b *base) mismatch(format string, args ...interface{}) error {
	return status.ErrContentMismatch.WrapMessage("resource %s: "+format, append([]interface{}{b.params.Name}, args...)...)
}

// requireDir checks that a local directory exists
func (b *base) requireDir(dir string) error {
	isDir, err := afero.IsDir(b.env.Fs(), dir)
	if err != nil || !isDir {
		return b.configError("local path %s is not a directory", dir)
	}
	return nil
}

// workspaceRelative tells where a path is located relative to the workspace root,
// and whether it is within the workspace
func workspaceRelative(env Env, p string) (string, bool) {
	rel, err := filepath.Rel(env.Dir(), p)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

// resolveLocalPath turns a user-provided path into an absolute path, relative to the workspace root
func resolveLocalPath(env Env, p string) (string, error) {
	if p == "" {
		return "", status.ErrInvalidArgument.WrapMessage("a local path is required")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(env.Dir(), p)
	}
	return filepath.Clean(p), nil
}

// validateSpec checks the parts of a spec common to all types
func validateSpec(spec Spec) error {
	if err := model.ValidateName(spec.Name); err != nil {
		return status.ErrInvalidArgument.Wrap(err)
	}
	if _, err := model.ParseRole(string(spec.Role)); err != nil {
		return status.ErrInvalidArgument.Wrap(err)
	}
	return nil
}
