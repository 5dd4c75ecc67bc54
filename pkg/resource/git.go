package resource

import (
	"context"
	"path/filepath"

	"github.com/kisdma/data-workspaces-core/pkg/hashtree"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/kisdma/data-workspaces-core/pkg/vcs"
	"go.uber.org/zap"
)

var (
	_ Resource      = &gitResource{}
	_ LocalState    = &gitResource{}
	_ Syncer        = &gitResource{}
	_ Fingerprinter = &gitResource{}
	_ Stater        = &gitResource{}
)

// gitResource is a separate git repository, checked out at a local path
type gitResource struct {
	base
	repo vcs.Repository
}

type gitFactory struct{}

func (gitFactory) New(ctx context.Context, spec Spec, env Env) (model.ResourceParams, model.ResourceLocalParams, error) {
	localPath, err := resolveLocalPath(env, spec.LocalPath)
	if err != nil {
		return model.ResourceParams{}, model.ResourceLocalParams{}, err
	}
	if !vcs.IsRepository(ctx, localPath) {
		return model.ResourceParams{}, model.ResourceLocalParams{},
			status.ErrInvalidArgument.WrapMessage("%s is not the top level directory of a git repository", localPath)
	}
	repo, err := vcs.Open(ctx, localPath, vcs.Logger(env.Logger()))
	if err != nil {
		return model.ResourceParams{}, model.ResourceLocalParams{}, status.ErrInvalidArgument.Wrap(err)
	}
	origin, err := repo.RemoteURL(ctx)
	if err != nil {
		return model.ResourceParams{}, model.ResourceLocalParams{}, err
	}
	params := model.ResourceParams{
		Name:         spec.Name,
		Role:         spec.Role,
		Type:         TypeGit,
		RemoteOrigin: origin,
		Branch:       spec.Branch,
	}
	return params, model.ResourceLocalParams{Name: spec.Name, LocalPath: localPath}, nil
}

func (gitFactory) FromParams(params model.ResourceParams, local model.ResourceLocalParams, env Env) (Resource, error) {
	if local.LocalPath == "" {
		return nil, status.ErrConfiguration.WrapMessage("git resource %s has no local path", params.Name)
	}
	r := &gitResource{base: newBase(params, local, env)}
	return r, nil
}

func (gitFactory) Clone(ctx context.Context, params model.ResourceParams, localPath string, env Env) (model.ResourceLocalParams, error) {
	if params.RemoteOrigin == "" {
		return model.ResourceLocalParams{}, status.ErrConfiguration.WrapMessage("git resource %s has no remote origin to clone from", params.Name)
	}
	localPath, err := resolveLocalPath(env, localPath)
	if err != nil {
		return model.ResourceLocalParams{}, err
	}
	if _, err := vcs.Clone(ctx, params.RemoteOrigin, localPath, vcs.Logger(env.Logger())); err != nil {
		return model.ResourceLocalParams{}, err
	}
	return model.ResourceLocalParams{Name: params.Name, LocalPath: localPath}, nil
}

// LocalPath of the repository
func (r *gitResource) LocalPath() string {
	return r.local.LocalPath
}

// open the repository lazily, so that a missing checkout is reported by prechecks
func (r *gitResource) open(ctx context.Context) (vcs.Repository, error) {
	if r.repo != nil {
		return r.repo, nil
	}
	repo, err := vcs.Open(ctx, r.local.LocalPath, vcs.Logger(r.env.Logger()))
	if err != nil {
		return nil, r.configError("%s is not a git repository: %v", r.local.LocalPath, err)
	}
	r.repo = repo
	return repo, nil
}

func (r *gitResource) SnapshotPrecheck(ctx context.Context) error {
	if err := r.requireDir(r.local.LocalPath); err != nil {
		return err
	}
	_, err := r.open(ctx)
	return err
}

// Snapshot commits all pending changes, and returns the current commit
func (r *gitResource) Snapshot(ctx context.Context) (string, string, error) {
	repo, err := r.open(ctx)
	if err != nil {
		return "", "", err
	}
	committed, err := repo.Commit(ctx, "autocommit ahead of snapshot")
	if err != nil {
		return "", "", err
	}
	head, err := repo.HeadCommit(ctx)
	if err != nil {
		return "", "", err
	}
	r.l.Info("snapshot", zap.String("commit", head), zap.Bool("autocommit", committed))
	return head, "", nil
}

func (r *gitResource) RestorePrecheck(ctx context.Context, restoreHash string) error {
	repo, err := r.open(ctx)
	if err != nil {
		return err
	}
	kind, err := repo.ObjectType(ctx, restoreHash)
	if err != nil || kind != "commit" {
		return r.mismatch("commit %s not found in %s", restoreHash, r.local.LocalPath)
	}
	dirty, err := repo.IsDirty(ctx, "")
	if err != nil {
		return err
	}
	if dirty {
		return r.configError("repository %s has uncommitted changes", r.local.LocalPath)
	}
	return nil
}

func (r *gitResource) Restore(ctx context.Context, restoreHash string) error {
	repo, err := r.open(ctx)
	if err != nil {
		return err
	}
	r.l.Info("restore", zap.String("commit", restoreHash))
	return repo.ResetHard(ctx, restoreHash)
}

func (r *gitResource) CurrentRestoreHash(ctx context.Context) (string, error) {
	repo, err := r.open(ctx)
	if err != nil {
		return "", err
	}
	return repo.HeadCommit(ctx)
}

func (r *gitResource) Fingerprint(ctx context.Context, subpath string) (string, error) {
	return fingerprintDir(ctx, r.env, r.local.LocalPath, subpath, hashtree.IgnoreRules{Names: []string{".git"}}, hashtree.ContentMode)
}

func (r *gitResource) PullPrecheck(ctx context.Context) error {
	return r.syncPrecheck(ctx)
}

func (r *gitResource) Pull(ctx context.Context) error {
	repo, err := r.open(ctx)
	if err != nil {
		return err
	}
	return repo.Pull(ctx)
}

func (r *gitResource) PushPrecheck(ctx context.Context) error {
	return r.syncPrecheck(ctx)
}

func (r *gitResource) Push(ctx context.Context) error {
	repo, err := r.open(ctx)
	if err != nil {
		return err
	}
	return repo.Push(ctx)
}

func (r *gitResource) syncPrecheck(ctx context.Context) error {
	repo, err := r.open(ctx)
	if err != nil {
		return err
	}
	origin, err := repo.RemoteURL(ctx)
	if err != nil {
		return err
	}
	if origin == "" {
		return r.configError("repository %s has no origin remote", filepath.Base(r.local.LocalPath))
	}
	dirty, err := repo.IsDirty(ctx, "")
	if err != nil {
		return err
	}
	if dirty {
		return r.configError("repository %s has uncommitted changes", r.local.LocalPath)
	}
	return nil
}
