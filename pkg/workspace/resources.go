package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/resource"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/kisdma/data-workspaces-core/pkg/vcs"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const gitIgnoreFile = ".gitignore"

// AddResource validates a new resource, and adds it after the existing ones
func (w *Workspace) AddResource(ctx context.Context, spec resource.Spec) (resource.Resource, error) {
	for _, p := range w.state.resources {
		if p.Name == spec.Name {
			return nil, status.ErrInvalidArgument.WrapMessage("a resource named %q already exists", spec.Name)
		}
	}
	r, err := resource.New(ctx, spec, w)
	if err != nil {
		return nil, err
	}

	if err := w.ignoreLocalCopy(r); err != nil {
		return nil, err
	}
	txn := w.Begin()
	txn.AddResource(r.Params(), r.LocalParams())
	if err := txn.Commit(ctx); err != nil {
		return nil, err
	}
	if err := w.Save(ctx, fmt.Sprintf("add %s resource %s", r.Type(), r.Name())); err != nil {
		return nil, err
	}
	w.l.Info("resource added", zap.Stringer("resource", r))
	return w.Resource(r.Name())
}

// ignoreLocalCopy keeps the content of resources versioned elsewhere out of the workspace repository
func (w *Workspace) ignoreLocalCopy(r resource.Resource) error {
	if r.Type() == resource.TypeGitSubdirectory {
		return nil
	}
	if _, isNop := w.repo.(vcs.Nop); isNop {
		return nil
	}
	ls, ok := r.(resource.LocalState)
	if !ok {
		return nil
	}
	rel, err := filepath.Rel(w.dir, ls.LocalPath())
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	return w.addIgnore("/" + filepath.ToSlash(rel) + "/")
}

// addIgnore appends a pattern to the .gitignore file at the root of the workspace
func (w *Workspace) addIgnore(pattern string) error {
	p := filepath.Join(w.dir, gitIgnoreFile)
	var lines []string
	if buf, err := afero.ReadFile(w.fs, p); err == nil {
		for _, line := range strings.Split(string(buf), "\n") {
			if strings.TrimSpace(line) == pattern {
				return nil
			}
			if line != "" {
				lines = append(lines, line)
			}
		}
	}
	lines = append(lines, pattern)
	return afero.WriteFile(w.fs, p, []byte(strings.Join(lines, "\n")+"\n"), 0644)
}

// SetGlobalParam sets a replicated parameter, and saves the workspace
func (w *Workspace) SetGlobalParam(ctx context.Context, key string, value interface{}) error {
	txn := w.Begin()
	txn.SetGlobalParam(key, value)
	if err := txn.Commit(ctx); err != nil {
		return err
	}
	return w.Save(ctx, fmt.Sprintf("set parameter %s", key))
}

// SetLocalParam sets a parameter of this installation
func (w *Workspace) SetLocalParam(ctx context.Context, key string, value interface{}) error {
	txn := w.Begin()
	txn.SetLocalParam(key, value)
	return txn.Commit(ctx)
}

// Clone a workspace from the URL of its repository, and materializes its resources
func Clone(ctx context.Context, url, dir string, opts ...Option) (*Workspace, error) {
	o := defaultOptions(opts)
	dir, err := absDir(dir)
	if err != nil {
		return nil, err
	}
	if _, err := vcs.Clone(ctx, url, dir, o.vcsOptions...); err != nil {
		return nil, err
	}
	w, err := Open(ctx, dir, opts...)
	if err != nil {
		return nil, err
	}

	txn := w.Begin()
	for _, params := range w.state.resources {
		localPath := o.clonePaths[params.Name]
		if localPath == "" && params.RelativePath == "" {
			localPath = params.Name
		}
		r, err := resource.Clone(ctx, params, localPath, w)
		if err != nil {
			return nil, fmt.Errorf("cloning resource %s: %w", params.Name, err)
		}
		if err := w.ignoreLocalCopy(r); err != nil {
			return nil, err
		}
		txn.SetResourceLocalParams(r.LocalParams())
		w.l.Info("resource cloned", zap.Stringer("resource", r))
	}
	if err := txn.Commit(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// Role of a resource, by name
func (w *Workspace) Role(name string) (model.Role, error) {
	for _, p := range w.state.resources {
		if p.Name == name {
			return p.Role, nil
		}
	}
	return "", status.ErrResourceNotFound.WrapMessage("%q", name)
}
