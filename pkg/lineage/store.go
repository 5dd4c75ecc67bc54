package lineage

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/kisdma/data-workspaces-core/pkg/storage"
	storagestatus "github.com/kisdma/data-workspaces-core/pkg/storage/status"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Resolver gives the lineage store access to the resources of the workspace
type Resolver interface {
	// MapLocalPath tells which resource (and subpath) contains a local path
	MapLocalPath(path string) (model.ResourceRef, error)

	// Fingerprint certifies the current content of a resource or subpath
	Fingerprint(ctx context.Context, ref model.ResourceRef) (string, error)
}

// Store of lineage records, persisted in the workspace metadata store
type Store struct {
	meta     storage.Store
	resolver Resolver
	now      func() time.Time
	l        *zap.Logger
	mu       sync.Mutex
}

// Option for the lineage store
type Option func(*Store)

// WithResolver sets the resolver used to certify inputs and map local paths
func WithResolver(r Resolver) Option {
	return func(s *Store) {
		s.resolver = r
	}
}

// Logger for the lineage store
func Logger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.l = l
		}
	}
}

// Clock overrides the time source of step records
func Clock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New lineage store on top of a metadata store
func New(meta storage.Store, opts ...Option) *Store {
	s := &Store{
		meta: meta,
		now:  time.Now,
		l:    zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

func (s *Store) readFile(ctx context.Context, key string) ([]model.ResourceLineage, error) {
	has, err := s.meta.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	buf, err := storage.ReadAll(ctx, s.meta, key)
	if err != nil {
		return nil, err
	}
	var file model.LineageFile
	if err := json.Unmarshal(buf, &file); err != nil {
		return nil, status.ErrConfiguration.WrapMessage("lineage file %s: %v", key, err)
	}
	return file.Lineages, nil
}

func (s *Store) writeFile(ctx context.Context, key string, records []model.ResourceLineage) error {
	if len(records) == 0 {
		return s.meta.Delete(ctx, key)
	}
	sortRecords(records)
	buf, err := json.MarshalIndent(model.LineageFile{Lineages: records}, "", "  ")
	if err != nil {
		return err
	}
	return s.meta.Put(ctx, key, bytes.NewReader(buf), storage.OverWrite)
}

func sortRecords(records []model.ResourceLineage) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Ref, records[j].Ref
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Subpath < b.Subpath
	})
}

// Load the current lineage records of a resource
func (s *Store) Load(ctx context.Context, resource string) ([]model.ResourceLineage, error) {
	return s.readFile(ctx, model.GetPathToCurrentLineage(resource))
}

// Get the current record covering a reference: a record for the reference itself,
// or for a location containing it. It returns nil when there is none.
func (s *Store) Get(ctx context.Context, ref model.ResourceRef) (*model.ResourceLineage, error) {
	records, err := s.Load(ctx, ref.Name)
	if err != nil {
		return nil, err
	}
	return covering(records, ref), nil
}

// covering picks the most specific record containing a reference
func covering(records []model.ResourceLineage, ref model.ResourceRef) *model.ResourceLineage {
	var best *model.ResourceLineage
	for i := range records {
		if !records[i].Ref.Contains(ref) {
			continue
		}
		if best == nil || len(records[i].Ref.Subpath) > len(best.Ref.Subpath) {
			best = &records[i]
		}
	}
	return best
}

// replace records of a resource overlapping some new records, and persists the result
func (s *Store) replace(ctx context.Context, resource string, updates []model.ResourceLineage) error {
	records, err := s.Load(ctx, resource)
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, r := range records {
		overlaps := false
		for _, u := range updates {
			if r.Ref.Overlaps(u.Ref) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, r)
		}
	}
	return s.writeFile(ctx, model.GetPathToCurrentLineage(resource), append(kept, updates...))
}

// Resources lists the resources with current lineage
func (s *Store) Resources(ctx context.Context) ([]string, error) {
	return s.resourcesUnder(ctx, model.GetPathPrefixToCurrentLineage())
}

func (s *Store) resourcesUnder(ctx context.Context, prefix string) ([]string, error) {
	keys, err := storage.ListKeys(ctx, s.meta, prefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name, err := model.ResourceFromLineagePath(key)
		if err != nil {
			s.l.Warn("skipping unexpected lineage key", zap.String("key", key))
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Manifest merges all current records
func (s *Store) Manifest(ctx context.Context) (model.LineageFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifest(ctx, model.GetPathPrefixToCurrentLineage(), model.GetPathToCurrentLineage)
}

// SnapshotManifest merges the records saved with a snapshot
func (s *Store) SnapshotManifest(ctx context.Context, snapshotHash string) (model.LineageFile, error) {
	return s.manifest(ctx, model.GetPathPrefixToSnapshotLineage(snapshotHash), func(resource string) string {
		return model.GetPathToSnapshotLineage(snapshotHash, resource)
	})
}

func (s *Store) manifest(ctx context.Context, prefix string, keyOf func(string) string) (model.LineageFile, error) {
	names, err := s.resourcesUnder(ctx, prefix)
	if err != nil {
		return model.LineageFile{}, err
	}
	file := model.LineageFile{Lineages: []model.ResourceLineage{}}
	for _, name := range names {
		records, err := s.readFile(ctx, keyOf(name))
		if err != nil {
			return model.LineageFile{}, err
		}
		file.Lineages = append(file.Lineages, records...)
	}
	return file, nil
}

// SaveSnapshotCopy copies all current lineage, to be kept with a snapshot
func (s *Store) SaveSnapshotCopy(ctx context.Context, snapshotHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	names, err := s.Resources(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		_, err := storage.ReadTee(ctx, s.meta, model.GetPathToCurrentLineage(name), s.meta, model.GetPathToSnapshotLineage(snapshotHash, name))
		if err != nil {
			return err
		}
	}
	s.l.Debug("saved lineage with snapshot", zap.String("snapshot", snapshotHash), zap.Strings("resources", names))
	return nil
}

// RestoreFromSnapshot replaces the current lineage of some resources by the lineage saved with a snapshot.
// Resources without lineage in the snapshot are left without current lineage.
func (s *Store) RestoreFromSnapshot(ctx context.Context, snapshotHash string, resources []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range resources {
		current := model.GetPathToCurrentLineage(name)
		_, err := storage.ReadTee(ctx, s.meta, model.GetPathToSnapshotLineage(snapshotHash, name), s.meta, current)
		switch {
		case err == nil:
		case errors.Is(err, storagestatus.ErrNotExists):
			if err := s.meta.Delete(ctx, current); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return nil
}

// DeleteSnapshotCopy removes the lineage saved with a snapshot
func (s *Store) DeleteSnapshotCopy(ctx context.Context, snapshotHash string) error {
	keys, err := storage.ListKeys(ctx, s.meta, model.GetPathPrefixToSnapshotLineage(snapshotHash))
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.meta.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Clear the current lineage of some resources
func (s *Store) Clear(ctx context.Context, resources []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range resources {
		if err := s.meta.Delete(ctx, model.GetPathToCurrentLineage(name)); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate drops all current lineage, e.g. after content was pulled from elsewhere
func (s *Store) Invalidate(ctx context.Context) error {
	names, err := s.Resources(ctx)
	if err != nil {
		return err
	}
	s.l.Info("invalidating current lineage", zap.Strings("resources", names))
	return s.Clear(ctx, names)
}
