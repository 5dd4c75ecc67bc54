package resource

import (
	"context"
	"path/filepath"

	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/hashtree"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/kisdma/data-workspaces-core/pkg/storage/localfs"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	_ Resource      = &fileResource{}
	_ LocalState    = &fileResource{}
	_ Fingerprinter = &fileResource{}
	_ Stater        = &fileResource{}
	_ Results       = &fileResults{}
)

// fileResource is an unmanaged local directory. It has no native versioning:
// its restore hash is the signature of its hash tree, and restoring only verifies
// that the directory content matches.
type fileResource struct {
	base
	hasher   *hashtree.Hasher
	stateDir string
	rules    hashtree.IgnoreRules
	mode     hashtree.Mode
}

// fileResults is a local directory with the results role
type fileResults struct {
	*fileResource
	*resultsDir
}

type fileFactory struct{}

func (fileFactory) New(_ context.Context, spec Spec, env Env) (model.ResourceParams, model.ResourceLocalParams, error) {
	localPath, err := resolveLocalPath(env, spec.LocalPath)
	if err != nil {
		return model.ResourceParams{}, model.ResourceLocalParams{}, err
	}
	isDir, err := afero.IsDir(env.Fs(), localPath)
	if err != nil || !isDir {
		return model.ResourceParams{}, model.ResourceLocalParams{},
			status.ErrInvalidArgument.WrapMessage("%s is not a directory", localPath)
	}
	params := model.ResourceParams{
		Name:        spec.Name,
		Role:        spec.Role,
		Type:        TypeFile,
		ComputeHash: spec.ComputeHash,
		Ignore:      spec.Ignore,
	}
	if rel, inside := workspaceRelative(env, localPath); inside {
		if rel == "." {
			return model.ResourceParams{}, model.ResourceLocalParams{},
				status.ErrInvalidArgument.WrapMessage("a file resource cannot be the workspace itself")
		}
		params.RelativePath = rel
	}
	return params, model.ResourceLocalParams{Name: spec.Name, LocalPath: localPath}, nil
}

func (fileFactory) FromParams(params model.ResourceParams, local model.ResourceLocalParams, env Env) (Resource, error) {
	if local.LocalPath == "" && params.RelativePath != "" {
		local.LocalPath = filepath.Join(env.Dir(), filepath.FromSlash(params.RelativePath))
	}
	if local.LocalPath == "" {
		return nil, status.ErrConfiguration.WrapMessage("file resource %s has no local path", params.Name)
	}
	r := &fileResource{
		base: newBase(params, local, env),
		mode: hashtree.ModeFor(params.ComputeHash),
	}

	stateDir := env.StateDir(params.Role, params.Name)
	r.stateDir = stateDir
	r.hasher = hashtree.New(
		hashtree.Fs(env.Fs()),
		hashtree.Cache(localfs.New(afero.NewBasePathFs(env.Fs(), stateDir))),
		hashtree.Logger(r.l),
	)

	// the workspace metadata and the hash cache never contribute to the fingerprint
	r.rules = hashtree.ParseIgnore(params.Ignore)
	for _, excluded := range []string{stateDir, filepath.Join(env.Dir(), model.MetadataDir)} {
		if rel, err := filepath.Rel(local.LocalPath, excluded); err == nil && rel != "." && !startsWithParent(rel) {
			r.rules = r.rules.With(filepath.ToSlash(rel))
		}
	}

	if params.Role.IsResults() {
		return &fileResults{fileResource: r, resultsDir: newResultsDir(env, local.LocalPath)}, nil
	}
	return r, nil
}

func startsWithParent(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}

// Clone creates an empty local directory: the content of unmanaged resources is not replicated
func (fileFactory) Clone(_ context.Context, params model.ResourceParams, localPath string, env Env) (model.ResourceLocalParams, error) {
	if localPath == "" && params.RelativePath != "" {
		localPath = params.RelativePath
	}
	localPath, err := resolveLocalPath(env, localPath)
	if err != nil {
		return model.ResourceLocalParams{}, err
	}
	if err := env.Fs().MkdirAll(localPath, 0755); err != nil {
		return model.ResourceLocalParams{}, err
	}
	return model.ResourceLocalParams{Name: params.Name, LocalPath: localPath}, nil
}

// LocalPath of the directory
func (r *fileResource) LocalPath() string {
	return r.local.LocalPath
}

func (r *fileResource) SnapshotPrecheck(context.Context) error {
	return r.requireDir(r.local.LocalPath)
}

// Snapshot fingerprints the directory, and caches the listing in the resource state directory
func (r *fileResource) Snapshot(ctx context.Context) (string, string, error) {
	if err := r.env.Fs().MkdirAll(r.stateDir, 0755); err != nil {
		return "", "", err
	}
	sig, err := r.hasher.GenerateSignature(ctx, r.local.LocalPath, r.rules, r.mode)
	if err != nil {
		return "", "", err
	}
	r.l.Info("snapshot", zap.Stringer("signature", sig), zap.String("mode", string(r.mode)))
	return sig.String(), "", nil
}

// RestorePrecheck verifies that the directory content matches the restore hash.
// Unmanaged content cannot be restored: a mismatch fails the whole restore.
func (r *fileResource) RestorePrecheck(ctx context.Context, restoreHash string) error {
	if err := r.requireDir(r.local.LocalPath); err != nil {
		return err
	}
	current, ok, err := r.hasher.Check(ctx, hashtree.Signature(restoreHash), r.local.LocalPath, r.rules, r.mode)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	expected, err := r.hasher.LoadTree(ctx, hashtree.Signature(restoreHash))
	if err != nil {
		if errors.Is(err, hashtree.ErrNotCached) {
			return r.mismatch("current content of %s does not match %s", r.local.LocalPath, restoreHash)
		}
		return err
	}
	return r.mismatch("current content of %s does not match %s: %v", r.local.LocalPath, restoreHash, hashtree.Diff(expected, current))
}

// Restore has nothing to do: the precheck already verified the content
func (r *fileResource) Restore(_ context.Context, restoreHash string) error {
	r.l.Debug("restore: unmanaged content verified", zap.String("signature", restoreHash))
	return nil
}

func (r *fileResource) CurrentRestoreHash(ctx context.Context) (string, error) {
	t, err := r.hasher.Tree(ctx, r.local.LocalPath, r.rules, r.mode)
	if err != nil {
		return "", err
	}
	return t.Signature().String(), nil
}

// DeleteSnapshot forgets the cached listing, unless a remaining snapshot still needs it
func (r *fileResource) DeleteSnapshot(ctx context.Context, deleted model.Snapshot, remaining model.SnapshotHistory) error {
	sig, ok := deleted.RestoreHashes[r.params.Name]
	if !ok || remaining.References(r.params.Name, sig) > 0 {
		return nil
	}
	r.l.Debug("forgetting cached listing", zap.String("signature", sig))
	return r.hasher.Forget(ctx, hashtree.Signature(sig))
}

func (r *fileResource) Fingerprint(ctx context.Context, subpath string) (string, error) {
	return fingerprintDir(ctx, r.env, r.local.LocalPath, subpath, r.rules, r.mode)
}
