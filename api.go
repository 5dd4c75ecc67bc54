package dataworkspaces

import (
	"context"
	"os"

	"github.com/kisdma/data-workspaces-core/pkg/engine"
	"github.com/kisdma/data-workspaces-core/pkg/lineage"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/resource"
	"github.com/kisdma/data-workspaces-core/pkg/workspace"
	"github.com/spf13/afero"
)

// ResourceInfo describes a resource of a workspace
type ResourceInfo struct {
	Name      string     `json:"name" yaml:"name"`
	Role      model.Role `json:"role" yaml:"role"`
	Type      string     `json:"type" yaml:"type"`
	LocalPath string     `json:"local_path,omitempty" yaml:"local_path,omitempty"`

	// Size in bytes of the files under the local path
	Size int64 `json:"size,omitempty" yaml:"size,omitempty"`
}

// GetResourceInfo lists the resources of the workspace containing dir, in declaration order
func GetResourceInfo(ctx context.Context, dir string, opts ...workspace.Option) ([]ResourceInfo, error) {
	ws, err := workspace.Find(ctx, dir, opts...)
	if err != nil {
		return nil, err
	}
	resources, err := ws.Resources()
	if err != nil {
		return nil, err
	}
	infos := make([]ResourceInfo, 0, len(resources))
	for _, r := range resources {
		info := ResourceInfo{Name: r.Name(), Role: r.Role(), Type: r.Type()}
		if ls, ok := r.(resource.LocalState); ok {
			info.LocalPath = ls.LocalPath()
			info.Size = diskUsage(ws.Fs(), info.LocalPath)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// diskUsage sums the size of regular files under a directory. Unreadable entries are skipped.
func diskUsage(fs afero.Fs, dir string) int64 {
	var total int64
	_ = afero.Walk(fs, dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total
}

// GetSnapshotHistory of the workspace containing dir
func GetSnapshotHistory(ctx context.Context, dir string, opts ...workspace.Option) (model.SnapshotHistory, error) {
	ws, err := workspace.Find(ctx, dir, opts...)
	if err != nil {
		return nil, err
	}
	return ws.History(), nil
}

// TakeSnapshot of the workspace containing dir. The tag is optional.
func TakeSnapshot(ctx context.Context, dir, tag, message string, opts ...workspace.Option) (model.Snapshot, error) {
	ws, err := workspace.Find(ctx, dir, opts...)
	if err != nil {
		return model.Snapshot{}, err
	}
	return engine.New(ws).TakeSnapshot(ctx, tag, message)
}

// Restore the workspace containing dir to a snapshot, designated by tag or hash
func Restore(ctx context.Context, dir, hashOrTag string, restore engine.RestoreOptions, opts ...workspace.Option) (engine.Restored, error) {
	ws, err := workspace.Find(ctx, dir, opts...)
	if err != nil {
		return engine.Restored{}, err
	}
	return engine.New(ws).Restore(ctx, hashOrTag, restore)
}

// Capture runs a step of the workspace containing dir and records its lineage.
//
// The outputs of the step are recorded as failed when fn returns an error or panics.
func Capture(ctx context.Context, dir string, step lineage.StepOptions, fn func(*lineage.Session) error, opts ...workspace.Option) error {
	ws, err := workspace.Find(ctx, dir, opts...)
	if err != nil {
		return err
	}
	return ws.Lineage().Capture(ctx, step, fn)
}
