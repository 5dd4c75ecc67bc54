package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kisdma/data-workspaces-core/pkg/lineage"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/resource"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/kisdma/data-workspaces-core/pkg/storage"
	"github.com/kisdma/data-workspaces-core/pkg/storage/localfs"
	"github.com/kisdma/data-workspaces-core/pkg/vcs"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	_ resource.Env     = &Workspace{}
	_ lineage.Resolver = &Workspace{}
)

// Workspace is a loaded data workspace
type Workspace struct {
	dir       string
	fs        afero.Fs
	meta      localfs.Store
	repo      vcs.Repository
	state     state
	resources []resource.Resource
	lineage   *lineage.Store
	l         *zap.Logger
}

func metadataStore(fs afero.Fs, dir string) (localfs.Store, error) {
	return localfs.NewAtomic(afero.NewBasePathFs(fs, filepath.Join(dir, model.MetadataDir)))
}

func absDir(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", status.ErrInvalidArgument.Wrap(err)
	}
	return abs, nil
}

// IsWorkspace tells if a directory is the root of a workspace
func IsWorkspace(fs afero.Fs, dir string) bool {
	ok, _ := afero.IsDir(fs, filepath.Join(dir, model.MetadataDir))
	return ok
}

// FindWorkspace searches a workspace root at or above a directory
func FindWorkspace(fs afero.Fs, dir string) (string, error) {
	abs, err := absDir(dir)
	if err != nil {
		return "", err
	}
	for current := abs; ; {
		if IsWorkspace(fs, current) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", status.ErrNotWorkspace.WrapMessage("no %s directory at or above %s", model.MetadataDir, abs)
		}
		current = parent
	}
}

func newWorkspace(dir string, o options) (*Workspace, error) {
	meta, err := metadataStore(o.fs, dir)
	if err != nil {
		return nil, err
	}
	w := &Workspace{
		dir:  dir,
		fs:   o.fs,
		meta: meta,
		l:    o.l.With(zap.String("workspace", dir)),
	}
	w.lineage = lineage.New(meta, lineage.WithResolver(w), lineage.Logger(w.l))
	return w, nil
}

func openVCS(ctx context.Context, dir string, o options) vcs.Repository {
	if !o.noVCS && vcs.Available() && vcs.IsRepository(ctx, dir) {
		if repo, err := vcs.Open(ctx, dir, o.vcsOptions...); err == nil {
			return repo
		}
	}
	return vcs.Nop{Root: dir}
}

// Init creates a new workspace in a directory. The directory becomes a git repository
// unless it already is one, git is not available, or NoVCS is set.
func Init(ctx context.Context, dir, name string, opts ...Option) (*Workspace, error) {
	o := defaultOptions(opts)
	dir, err := absDir(dir)
	if err != nil {
		return nil, err
	}
	if IsWorkspace(o.fs, dir) {
		return nil, status.ErrInvalidArgument.WrapMessage("%s is already a workspace", dir)
	}
	if name == "" {
		name = filepath.Base(dir)
	}
	if err := model.ValidateName(name); err != nil {
		return nil, status.ErrInvalidArgument.Wrap(err)
	}
	if err := o.fs.MkdirAll(filepath.Join(dir, model.MetadataDir), 0755); err != nil {
		return nil, err
	}

	w, err := newWorkspace(dir, o)
	if err != nil {
		return nil, err
	}
	switch {
	case o.noVCS || !vcs.Available():
		w.repo = vcs.Nop{Root: dir}
	case vcs.IsRepository(ctx, dir):
		w.repo, err = vcs.Open(ctx, dir, o.vcsOptions...)
	default:
		w.repo, err = vcs.Init(ctx, dir, o.vcsOptions...)
	}
	if err != nil {
		return nil, err
	}

	hostname := o.hostname
	if hostname == "" {
		hostname = defaultHostname()
	}
	txn := w.Begin()
	txn.SetConfig(model.WorkspaceConfig{
		Name:         name,
		ToolVersion:  model.CurrentToolVersion,
		GlobalParams: map[string]interface{}{},
	})
	txn.next.local = model.LocalParams{}
	txn.SetLocalParam(model.LocalParamHostname, hostname)
	txn.next.resources = []model.ResourceParams{}
	txn.touch(model.GetPathToResources(), model.GetPathToResourceLocalParams())
	txn.SetHistory(model.SnapshotHistory{})
	if err := txn.Commit(ctx); err != nil {
		return nil, err
	}
	if err := w.writeIgnoreFile(ctx); err != nil {
		return nil, err
	}
	if err := w.Save(ctx, "initial version of workspace "+name); err != nil {
		return nil, err
	}
	w.l.Info("workspace created", zap.String("name", name), zap.String("hostname", hostname))
	return w, nil
}

func defaultHostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "localhost"
	}
	if i := strings.Index(h, "."); i > 0 {
		h = h[:i]
	}
	return h
}

// writeIgnoreFile keeps installation specific metadata out of version control
func (w *Workspace) writeIgnoreFile(ctx context.Context) error {
	content := strings.Join(ignoredMetadata, "\n") + "\n"
	return w.meta.Put(ctx, model.GetPathToGitIgnore(), strings.NewReader(content), storage.OverWrite)
}

// Open an existing workspace, rooted at dir
func Open(ctx context.Context, dir string, opts ...Option) (*Workspace, error) {
	o := defaultOptions(opts)
	dir, err := absDir(dir)
	if err != nil {
		return nil, err
	}
	if !IsWorkspace(o.fs, dir) {
		return nil, status.ErrNotWorkspace.WrapMessage("%s", dir)
	}
	w, err := newWorkspace(dir, o)
	if err != nil {
		return nil, err
	}
	w.repo = openVCS(ctx, dir, o)
	if w.state, err = loadState(ctx, w.meta); err != nil {
		return nil, err
	}
	if w.Hostname() == "" {
		hostname := o.hostname
		if hostname == "" {
			hostname = defaultHostname()
		}
		txn := w.Begin()
		txn.SetLocalParam(model.LocalParamHostname, hostname)
		if err := txn.Commit(ctx); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Find opens the workspace containing a directory
func Find(ctx context.Context, dir string, opts ...Option) (*Workspace, error) {
	o := defaultOptions(opts)
	root, err := FindWorkspace(o.fs, dir)
	if err != nil {
		return nil, err
	}
	return Open(ctx, root, opts...)
}

// Name of the workspace
func (w *Workspace) Name() string { return w.state.config.Name }

// Dir is the root directory of the workspace
func (w *Workspace) Dir() string { return w.dir }

// VCS of the workspace directory
func (w *Workspace) VCS() vcs.Repository { return w.repo }

// Fs of the workspace
func (w *Workspace) Fs() afero.Fs { return w.fs }

// Logger of the workspace
func (w *Workspace) Logger() *zap.Logger { return w.l }

// Meta is the metadata store
func (w *Workspace) Meta() storage.Store { return w.meta }

// Lineage store of the workspace
func (w *Workspace) Lineage() *lineage.Store { return w.lineage }

// Hostname identifies this installation of the workspace
func (w *Workspace) Hostname() string { return w.state.local.Hostname() }

// Config is the replicated workspace configuration
func (w *Workspace) Config() model.WorkspaceConfig { return w.state.config }

// History of snapshots
func (w *Workspace) History() model.SnapshotHistory {
	return append(model.SnapshotHistory{}, w.state.history...)
}

// StateDir is where a resource keeps its own state
func (w *Workspace) StateDir(role model.Role, name string) string {
	return filepath.Join(w.dir, model.MetadataDir, filepath.FromSlash(model.GetPathToHashCache(role, name)))
}

// GlobalParams are the replicated parameters of the workspace
func (w *Workspace) GlobalParams() map[string]interface{} {
	return w.state.clone().config.GlobalParams
}

// LocalParams are the parameters of this installation
func (w *Workspace) LocalParams() model.LocalParams {
	return w.state.clone().local
}

// Save commits the replicated metadata to version control
func (w *Workspace) Save(ctx context.Context, message string) error {
	committed, err := w.repo.Commit(ctx, message, model.MetadataDir, gitIgnoreFile)
	if err != nil {
		return err
	}
	if committed {
		w.l.Debug("metadata saved", zap.String("message", message))
	}
	return nil
}

// Resources of the workspace, in declaration order
func (w *Workspace) Resources() ([]resource.Resource, error) {
	if w.resources != nil {
		return w.resources, nil
	}
	resources := make([]resource.Resource, 0, len(w.state.resources))
	for _, params := range w.state.resources {
		r, err := resource.FromParams(params, w.state.localParams[params.Name], w)
		if err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}
	w.resources = resources
	return resources, nil
}

// Resource by name
func (w *Workspace) Resource(name string) (resource.Resource, error) {
	resources, err := w.Resources()
	if err != nil {
		return nil, err
	}
	for _, r := range resources {
		if r.Name() == name {
			return r, nil
		}
	}
	return nil, status.ErrResourceNotFound.WrapMessage("%q", name)
}

// ResourceNames in declaration order
func (w *Workspace) ResourceNames() []string {
	names := make([]string, 0, len(w.state.resources))
	for _, p := range w.state.resources {
		names = append(names, p.Name)
	}
	return names
}

// MapLocalPath finds the resource containing a local path, and the path within it
func (w *Workspace) MapLocalPath(p string) (model.ResourceRef, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return model.ResourceRef{}, status.ErrInvalidArgument.Wrap(err)
	}
	resources, err := w.Resources()
	if err != nil {
		return model.ResourceRef{}, err
	}
	type candidate struct {
		name, root string
	}
	var candidates []candidate
	for _, r := range resources {
		if ls, ok := r.(resource.LocalState); ok {
			candidates = append(candidates, candidate{name: r.Name(), root: ls.LocalPath()})
		}
	}
	// nested resources: the innermost wins
	sort.Slice(candidates, func(i, j int) bool { return len(candidates[i].root) > len(candidates[j].root) })
	for _, c := range candidates {
		rel, err := filepath.Rel(c.root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return model.NewRef(c.name, filepath.ToSlash(rel)), nil
	}
	return model.ResourceRef{}, status.ErrInvalidArgument.WrapMessage("%s is not within any resource of the workspace", p)
}

// Fingerprint certifies the current content of a resource or subpath
func (w *Workspace) Fingerprint(ctx context.Context, ref model.ResourceRef) (string, error) {
	r, err := w.Resource(ref.Name)
	if err != nil {
		return "", err
	}
	fp, ok := r.(resource.Fingerprinter)
	if !ok {
		return "", status.ErrNotSupported.WrapMessage("resource %s cannot be fingerprinted", ref.Name)
	}
	return fp.Fingerprint(ctx, ref.Subpath)
}

// Reload the metadata, e.g. after they were pulled from elsewhere
func (w *Workspace) Reload(ctx context.Context) error {
	s, err := loadState(ctx, w.meta)
	if err != nil {
		return err
	}
	if s.local.Hostname() == "" {
		s.local[model.LocalParamHostname] = w.Hostname()
	}
	w.state = s
	w.resources = nil
	return nil
}
