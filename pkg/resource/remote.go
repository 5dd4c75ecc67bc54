package resource

import (
	"context"
	"path/filepath"

	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/hashtree"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/kisdma/data-workspaces-core/pkg/storage"
	"github.com/kisdma/data-workspaces-core/pkg/storage/localfs"
	"github.com/kisdma/data-workspaces-core/pkg/storage/remote"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	_ Resource      = &remoteResource{}
	_ LocalState    = &remoteResource{}
	_ Syncer        = &remoteResource{}
	_ Fingerprinter = &remoteResource{}
	_ Stater        = &remoteResource{}
	_ Transport     = copyTransport{}
)

// Transport moves the content of a remote mirror between the remote store and its local copy
type Transport interface {
	Pull(ctx context.Context, from storage.Store, to storage.Store) (int, error)
	Push(ctx context.Context, from storage.Store, to storage.Store) (int, error)
}

// copyTransport copies every object, store to store
type copyTransport struct{}

func (copyTransport) Pull(ctx context.Context, from storage.Store, to storage.Store) (int, error) {
	return storage.Copy(ctx, from, to, "")
}

func (copyTransport) Push(ctx context.Context, from storage.Store, to storage.Store) (int, error) {
	return storage.Copy(ctx, from, to, "")
}

// remoteResource mirrors a remote object store prefix into a local directory.
//
// Its restore hash is the signature of the remote listing (keys and sizes): the remote
// is the reference, and restoring only verifies that it did not change.
type remoteResource struct {
	base
	store     storage.Store
	hasher    *hashtree.Hasher
	stateDir  string
	transport Transport
	rules     hashtree.IgnoreRules
}

type remoteFactory struct{}

func (remoteFactory) New(ctx context.Context, spec Spec, env Env) (model.ResourceParams, model.ResourceLocalParams, error) {
	loc, err := remote.Parse(spec.RemoteURL)
	if err != nil {
		return model.ResourceParams{}, model.ResourceLocalParams{}, status.ErrInvalidArgument.Wrap(err)
	}
	localPath, err := resolveLocalPath(env, spec.LocalPath)
	if err != nil {
		return model.ResourceParams{}, model.ResourceLocalParams{}, err
	}
	if err := env.Fs().MkdirAll(localPath, 0755); err != nil {
		return model.ResourceParams{}, model.ResourceLocalParams{}, err
	}
	params := model.ResourceParams{
		Name:      spec.Name,
		Role:      spec.Role,
		Type:      TypeRemote,
		RemoteURL: loc.String(),
		Ignore:    spec.Ignore,
	}
	if rel, inside := workspaceRelative(env, localPath); inside && rel != "." {
		params.RelativePath = rel
	}
	return params, model.ResourceLocalParams{Name: spec.Name, LocalPath: localPath}, nil
}

func (remoteFactory) FromParams(params model.ResourceParams, local model.ResourceLocalParams, env Env) (Resource, error) {
	if params.RemoteURL == "" {
		return nil, status.ErrConfiguration.WrapMessage("remote resource %s has no remote URL", params.Name)
	}
	if local.LocalPath == "" && params.RelativePath != "" {
		local.LocalPath = filepath.Join(env.Dir(), filepath.FromSlash(params.RelativePath))
	}
	if local.LocalPath == "" {
		return nil, status.ErrConfiguration.WrapMessage("remote resource %s has no local path", params.Name)
	}
	r := &remoteResource{
		base:      newBase(params, local, env),
		stateDir:  env.StateDir(params.Role, params.Name),
		transport: copyTransport{},
		rules:     hashtree.ParseIgnore(params.Ignore),
	}
	r.hasher = hashtree.New(
		hashtree.Fs(env.Fs()),
		hashtree.Cache(localfs.New(afero.NewBasePathFs(env.Fs(), r.stateDir))),
		hashtree.Logger(r.l),
	)
	return r, nil
}

// Clone prepares an empty local copy: content is fetched by a pull
func (remoteFactory) Clone(_ context.Context, params model.ResourceParams, localPath string, env Env) (model.ResourceLocalParams, error) {
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

// LocalPath of the local copy
func (r *remoteResource) LocalPath() string {
	return r.local.LocalPath
}

func (r *remoteResource) open(ctx context.Context) (storage.Store, error) {
	if r.store != nil {
		return r.store, nil
	}
	store, err := remote.Open(ctx, r.params.RemoteURL, remote.Logger(r.l), remote.Fs(r.env.Fs()))
	if err != nil {
		return nil, r.configError("cannot open remote %s: %v", r.params.RemoteURL, err)
	}
	r.store = store
	return store, nil
}

func (r *remoteResource) localStore() storage.Store {
	return localfs.New(afero.NewBasePathFs(r.env.Fs(), r.local.LocalPath))
}

// listing of the remote, as a size-mode tree
func (r *remoteResource) listing(ctx context.Context) (*hashtree.Tree, error) {
	store, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	t := &hashtree.Tree{Mode: hashtree.SizeMode, Entries: []hashtree.Entry{}}
	lister, ok := store.(storage.Lister)
	if !ok {
		keys, err := storage.ListKeys(ctx, store, "")
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			if !r.rules.Ignored(key) {
				t.Entries = append(t.Entries, hashtree.Entry{Path: key})
			}
		}
		return t, nil
	}
	infos, err := lister.List(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if !r.rules.Ignored(info.Key) {
			t.Entries = append(t.Entries, hashtree.Entry{Path: info.Key, Size: info.Size})
		}
	}
	return t, nil
}

func (r *remoteResource) SnapshotPrecheck(ctx context.Context) error {
	if err := r.requireDir(r.local.LocalPath); err != nil {
		return err
	}
	_, err := r.open(ctx)
	return err
}

// Snapshot records the digest of the remote listing, and the remote URL as the remote reference
func (r *remoteResource) Snapshot(ctx context.Context) (string, string, error) {
	t, err := r.listing(ctx)
	if err != nil {
		return "", "", err
	}
	if err := r.env.Fs().MkdirAll(r.stateDir, 0755); err != nil {
		return "", "", err
	}
	sig, err := r.hasher.Save(ctx, t)
	if err != nil {
		return "", "", err
	}
	r.l.Info("snapshot", zap.Stringer("signature", sig), zap.Int("objects", len(t.Entries)))
	return sig.String(), r.params.RemoteURL, nil
}

func (r *remoteResource) RestorePrecheck(ctx context.Context, restoreHash string) error {
	current, err := r.listing(ctx)
	if err != nil {
		return err
	}
	if current.Signature() == hashtree.Signature(restoreHash) {
		return nil
	}
	expected, err := r.hasher.LoadTree(ctx, hashtree.Signature(restoreHash))
	if err != nil {
		if errors.Is(err, hashtree.ErrNotCached) {
			return r.mismatch("remote %s changed since %s", r.params.RemoteURL, restoreHash)
		}
		return err
	}
	return r.mismatch("remote %s changed since %s: %v", r.params.RemoteURL, restoreHash, hashtree.Diff(expected, current))
}

// Restore has nothing to do: the remote content was verified by the precheck
func (r *remoteResource) Restore(_ context.Context, restoreHash string) error {
	r.l.Debug("restore: remote content verified", zap.String("signature", restoreHash))
	return nil
}

func (r *remoteResource) CurrentRestoreHash(ctx context.Context) (string, error) {
	t, err := r.listing(ctx)
	if err != nil {
		return "", err
	}
	return t.Signature().String(), nil
}

// DeleteSnapshot forgets the cached listing, unless a remaining snapshot still needs it
func (r *remoteResource) DeleteSnapshot(ctx context.Context, deleted model.Snapshot, remaining model.SnapshotHistory) error {
	sig, ok := deleted.RestoreHashes[r.params.Name]
	if !ok || remaining.References(r.params.Name, sig) > 0 {
		return nil
	}
	return r.hasher.Forget(ctx, hashtree.Signature(sig))
}

// Fingerprint certifies the local copy
func (r *remoteResource) Fingerprint(ctx context.Context, subpath string) (string, error) {
	return fingerprintDir(ctx, r.env, r.local.LocalPath, subpath, r.rules, hashtree.ContentMode)
}

func (r *remoteResource) PullPrecheck(ctx context.Context) error {
	return r.SnapshotPrecheck(ctx)
}

// Pull copies the remote content into the local copy
func (r *remoteResource) Pull(ctx context.Context) error {
	store, err := r.open(ctx)
	if err != nil {
		return err
	}
	n, err := r.transport.Pull(ctx, store, r.localStore())
	if err != nil {
		return err
	}
	r.l.Info("pulled", zap.String("remote", r.params.RemoteURL), zap.Int("objects", n))
	return nil
}

func (r *remoteResource) PushPrecheck(ctx context.Context) error {
	return r.SnapshotPrecheck(ctx)
}

// Push copies the local copy to the remote
func (r *remoteResource) Push(ctx context.Context) error {
	store, err := r.open(ctx)
	if err != nil {
		return err
	}
	n, err := r.transport.Push(ctx, r.localStore(), store)
	if err != nil {
		return err
	}
	r.l.Info("pushed", zap.String("remote", r.params.RemoteURL), zap.Int("objects", n))
	return nil
}
