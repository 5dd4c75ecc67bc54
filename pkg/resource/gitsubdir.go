package resource

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kisdma/data-workspaces-core/pkg/hashtree"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/kisdma/data-workspaces-core/pkg/vcs"
	"go.uber.org/zap"
)

var (
	_ Resource      = &gitSubdirResource{}
	_ LocalState    = &gitSubdirResource{}
	_ Fingerprinter = &gitSubdirResource{}
	_ Stater        = &gitSubdirResource{}
	_ Results       = &gitSubdirResults{}
)

// gitSubdirResource is a subdirectory of the workspace git repository.
//
// Its restore hash is the hash of the git tree of the subdirectory.
// Only this subtree is committed at snapshot time, and rewritten at restore time.
type gitSubdirResource struct {
	base
}

// gitSubdirResults is a git subdirectory with the results role
type gitSubdirResults struct {
	*gitSubdirResource
	*resultsDir
}

type gitSubdirFactory struct{}

func (gitSubdirFactory) New(ctx context.Context, spec Spec, env Env) (model.ResourceParams, model.ResourceLocalParams, error) {
	localPath, err := resolveLocalPath(env, spec.LocalPath)
	if err != nil {
		return model.ResourceParams{}, model.ResourceLocalParams{}, err
	}
	rel, inside := workspaceRelative(env, localPath)
	if !inside || rel == "." {
		return model.ResourceParams{}, model.ResourceLocalParams{},
			status.ErrInvalidArgument.WrapMessage("%s is not a subdirectory of the workspace %s", localPath, env.Dir())
	}
	if rel == model.MetadataDir || filepath.Dir(filepath.FromSlash(rel)) == model.MetadataDir {
		return model.ResourceParams{}, model.ResourceLocalParams{},
			status.ErrInvalidArgument.WrapMessage("%s is reserved for workspace metadata", rel)
	}
	if _, isNop := env.VCS().(vcs.Nop); isNop {
		return model.ResourceParams{}, model.ResourceLocalParams{},
			status.ErrInvalidArgument.WrapMessage("workspace %s is not a git repository", env.Dir())
	}
	if err := env.Fs().MkdirAll(localPath, 0755); err != nil {
		return model.ResourceParams{}, model.ResourceLocalParams{}, err
	}
	params := model.ResourceParams{
		Name:         spec.Name,
		Role:         spec.Role,
		Type:         TypeGitSubdirectory,
		RelativePath: rel,
	}
	return params, model.ResourceLocalParams{Name: spec.Name}, nil
}

func (gitSubdirFactory) FromParams(params model.ResourceParams, local model.ResourceLocalParams, env Env) (Resource, error) {
	if params.RelativePath == "" {
		return nil, status.ErrConfiguration.WrapMessage("git-subdirectory resource %s has no relative path", params.Name)
	}
	r := &gitSubdirResource{base: newBase(params, local, env)}
	if params.Role.IsResults() {
		return &gitSubdirResults{gitSubdirResource: r, resultsDir: newResultsDir(env, r.LocalPath())}, nil
	}
	return r, nil
}

// Clone only needs to create the directory: its content comes with the workspace repository
func (gitSubdirFactory) Clone(_ context.Context, params model.ResourceParams, _ string, env Env) (model.ResourceLocalParams, error) {
	dir := filepath.Join(env.Dir(), filepath.FromSlash(params.RelativePath))
	if err := env.Fs().MkdirAll(dir, 0755); err != nil {
		return model.ResourceLocalParams{}, err
	}
	return model.ResourceLocalParams{Name: params.Name}, nil
}

// LocalPath of the subdirectory
func (r *gitSubdirResource) LocalPath() string {
	return filepath.Join(r.env.Dir(), filepath.FromSlash(r.params.RelativePath))
}

func (r *gitSubdirResource) repo() (vcs.Repository, error) {
	repo := r.env.VCS()
	if _, isNop := repo.(vcs.Nop); isNop || repo == nil {
		return nil, r.configError("workspace %s is not a git repository", r.env.Dir())
	}
	return repo, nil
}

func (r *gitSubdirResource) SnapshotPrecheck(context.Context) error {
	if _, err := r.repo(); err != nil {
		return err
	}
	return r.requireDir(r.LocalPath())
}

// Snapshot commits the subdirectory only, and returns its tree hash
func (r *gitSubdirResource) Snapshot(ctx context.Context) (string, string, error) {
	repo, err := r.repo()
	if err != nil {
		return "", "", err
	}
	committed, err := repo.Commit(ctx, fmt.Sprintf("snapshot of resource %s", r.params.Name), r.params.RelativePath)
	if err != nil {
		return "", "", err
	}
	tree, err := repo.TreeHash(ctx, "HEAD", r.params.RelativePath)
	if err != nil {
		return "", "", err
	}
	r.l.Info("snapshot", zap.String("tree", tree), zap.Bool("committed", committed))
	return tree, "", nil
}

func (r *gitSubdirResource) RestorePrecheck(ctx context.Context, restoreHash string) error {
	repo, err := r.repo()
	if err != nil {
		return err
	}
	if restoreHash != vcs.EmptyTree {
		kind, err := repo.ObjectType(ctx, restoreHash)
		if err != nil || kind != "tree" {
			return r.mismatch("tree %s not found in the workspace repository", restoreHash)
		}
	}
	dirty, err := repo.IsDirty(ctx, r.params.RelativePath)
	if err != nil {
		return err
	}
	if dirty {
		return r.configError("subdirectory %s has uncommitted changes", r.params.RelativePath)
	}
	return nil
}

// Restore rewrites the subdirectory from a tree, and commits it. Nothing else in the repository is touched.
func (r *gitSubdirResource) Restore(ctx context.Context, restoreHash string) error {
	repo, err := r.repo()
	if err != nil {
		return err
	}
	current, err := repo.TreeHash(ctx, "HEAD", r.params.RelativePath)
	if err == nil && current == restoreHash {
		r.l.Debug("restore: subdirectory already at the requested state", zap.String("tree", restoreHash))
		return nil
	}
	if err := repo.ReplaceSubtree(ctx, r.params.RelativePath, restoreHash); err != nil {
		return err
	}
	if _, err := repo.Commit(ctx, fmt.Sprintf("restore of resource %s to %s", r.params.Name, restoreHash), r.params.RelativePath); err != nil {
		return err
	}
	// git does not track empty directories
	if err := r.env.Fs().MkdirAll(r.LocalPath(), 0755); err != nil {
		return err
	}
	r.l.Info("restore", zap.String("tree", restoreHash))
	return nil
}

func (r *gitSubdirResource) CurrentRestoreHash(ctx context.Context) (string, error) {
	repo, err := r.repo()
	if err != nil {
		return "", err
	}
	return repo.TreeHash(ctx, "HEAD", r.params.RelativePath)
}

func (r *gitSubdirResource) Fingerprint(ctx context.Context, subpath string) (string, error) {
	return fingerprintDir(ctx, r.env, r.LocalPath(), subpath, hashtree.IgnoreRules{}, hashtree.ContentMode)
}
