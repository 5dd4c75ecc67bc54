package workspace

import (
	"bytes"
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/kisdma/data-workspaces-core/pkg/storage"
	"github.com/kisdma/data-workspaces-core/pkg/storage/localfs"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// state is the whole metadata of a workspace, as persisted
type state struct {
	config      model.WorkspaceConfig
	local       model.LocalParams
	resources   []model.ResourceParams
	localParams map[string]model.ResourceLocalParams
	history     model.SnapshotHistory
}

func (s state) clone() state {
	cp := state{
		config:      s.config,
		local:       make(model.LocalParams, len(s.local)),
		resources:   append([]model.ResourceParams{}, s.resources...),
		localParams: make(map[string]model.ResourceLocalParams, len(s.localParams)),
		history:     append(model.SnapshotHistory{}, s.history...),
	}
	cp.config.GlobalParams = make(map[string]interface{}, len(s.config.GlobalParams))
	for k, v := range s.config.GlobalParams {
		cp.config.GlobalParams[k] = v
	}
	for k, v := range s.local {
		cp.local[k] = v
	}
	for k, v := range s.localParams {
		cp.localParams[k] = v
	}
	return cp
}

// ignoredMetadata lists the metadata which are specific to an installation, and never replicated
var ignoredMetadata = []string{
	model.GetPathToLocalParams(),
	model.GetPathToResourceLocalParams(),
	model.GetPathPrefixToCurrentLineage(),
	localfs.StageName() + "/",
}

func readJSON(ctx context.Context, meta storage.Store, key string, target interface{}) error {
	buf, err := storage.ReadAll(ctx, meta, key)
	if err != nil {
		return status.ErrConfiguration.WrapMessage("reading %s: %v", key, err)
	}
	if err := json.Unmarshal(buf, target); err != nil {
		return status.ErrConfiguration.WrapMessage("malformed %s: %v", key, err)
	}
	return nil
}

func writeJSON(ctx context.Context, meta storage.Store, key string, value interface{}) error {
	buf, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return meta.Put(ctx, key, bytes.NewReader(append(buf, '\n')), storage.OverWrite)
}

func loadState(ctx context.Context, meta storage.Store) (state, error) {
	var s state
	if err := readJSON(ctx, meta, model.GetPathToConfig(), &s.config); err != nil {
		return state{}, err
	}
	if s.config.ToolVersion > model.CurrentToolVersion {
		return state{}, status.ErrConfiguration.WrapMessage("workspace version %d is newer than supported version %d",
			s.config.ToolVersion, model.CurrentToolVersion)
	}
	if err := readJSON(ctx, meta, model.GetPathToResources(), &s.resources); err != nil {
		return state{}, err
	}
	if err := readJSON(ctx, meta, model.GetPathToSnapshotHistory(), &s.history); err != nil {
		return state{}, err
	}
	if err := s.history.Validate(); err != nil {
		return state{}, status.ErrConfiguration.Wrap(err)
	}

	// installation specific parameters may be missing on a fresh clone
	s.local = make(model.LocalParams)
	s.localParams = make(map[string]model.ResourceLocalParams)
	for key, target := range map[string]interface{}{
		model.GetPathToLocalParams():         &s.local,
		model.GetPathToResourceLocalParams(): &s.localParams,
	} {
		has, err := meta.Has(ctx, key)
		if err != nil {
			return state{}, err
		}
		if !has {
			continue
		}
		if err := readJSON(ctx, meta, key, target); err != nil {
			return state{}, err
		}
	}
	return s, nil
}

// Txn stages changes to the workspace metadata. Nothing is written until Commit.
type Txn struct {
	w     *Workspace
	next  state
	dirty map[string]struct{}
	done  bool
}

// Begin a metadata transaction
func (w *Workspace) Begin() *Txn {
	return &Txn{
		w:     w,
		next:  w.state.clone(),
		dirty: make(map[string]struct{}),
	}
}

func (t *Txn) touch(keys ...string) {
	for _, k := range keys {
		t.dirty[k] = struct{}{}
	}
}

// Config staged in this transaction
func (t *Txn) Config() model.WorkspaceConfig {
	return t.next.config
}

// SetConfig stages a new workspace configuration
func (t *Txn) SetConfig(c model.WorkspaceConfig) {
	t.next.config = c
	t.touch(model.GetPathToConfig())
}

// History staged in this transaction
func (t *Txn) History() model.SnapshotHistory {
	return t.next.history
}

// SetHistory stages a new snapshot history
func (t *Txn) SetHistory(h model.SnapshotHistory) {
	t.next.history = h
	t.touch(model.GetPathToSnapshotHistory())
}

// AppendSnapshot stages a new snapshot at the end of the history
func (t *Txn) AppendSnapshot(s model.Snapshot) {
	t.SetHistory(append(append(model.SnapshotHistory{}, t.next.history...), s))
}

// AddResource stages a new resource, after all existing ones
func (t *Txn) AddResource(params model.ResourceParams, local model.ResourceLocalParams) {
	t.next.resources = append(t.next.resources, params)
	t.next.localParams[params.Name] = local
	t.touch(model.GetPathToResources(), model.GetPathToResourceLocalParams())
}

// SetResourceLocalParams stages the local parameters of a resource
func (t *Txn) SetResourceLocalParams(local model.ResourceLocalParams) {
	t.next.localParams[local.Name] = local
	t.touch(model.GetPathToResourceLocalParams())
}

// SetGlobalParam stages a replicated parameter
func (t *Txn) SetGlobalParam(key string, value interface{}) {
	t.next.config.GlobalParams[key] = value
	t.touch(model.GetPathToConfig())
}

// SetLocalParam stages an installation specific parameter
func (t *Txn) SetLocalParam(key string, value interface{}) {
	t.next.local[key] = value
	t.touch(model.GetPathToLocalParams())
}

func (t *Txn) value(key string) interface{} {
	switch key {
	case model.GetPathToConfig():
		return t.next.config
	case model.GetPathToLocalParams():
		return t.next.local
	case model.GetPathToResources():
		return t.next.resources
	case model.GetPathToResourceLocalParams():
		return t.next.localParams
	case model.GetPathToSnapshotHistory():
		return t.next.history
	default:
		return nil
	}
}

// Commit writes the staged changes, each document with an atomic rename, then makes them visible
func (t *Txn) Commit(ctx context.Context) error {
	if t.done {
		return status.ErrInvalidArgument.WrapMessage("transaction already committed")
	}
	if err := t.next.history.Validate(); err != nil {
		return status.ErrInvalidArgument.Wrap(err)
	}
	// the history goes last: it is the commit point of a snapshot
	ordered := []string{
		model.GetPathToConfig(),
		model.GetPathToLocalParams(),
		model.GetPathToResources(),
		model.GetPathToResourceLocalParams(),
		model.GetPathToSnapshotHistory(),
	}
	for _, key := range ordered {
		if _, ok := t.dirty[key]; !ok {
			continue
		}
		if err := writeJSON(ctx, t.w.meta, key, t.value(key)); err != nil {
			return err
		}
	}
	t.done = true
	_, resourcesChanged := t.dirty[model.GetPathToResources()]
	_, localChanged := t.dirty[model.GetPathToResourceLocalParams()]
	t.w.state = t.next
	if resourcesChanged || localChanged {
		t.w.resources = nil
	}
	t.w.l.Debug("metadata committed", zap.Int("documents", len(t.dirty)))
	return nil
}
