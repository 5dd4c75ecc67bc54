package resource

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// resultsDir implements the Results capability on a local directory
type resultsDir struct {
	fs   afero.Fs
	dir  string
	keep []string // top level names never relocated
	l    *zap.Logger
}

func newResultsDir(env Env, dir string, keep ...string) *resultsDir {
	return &resultsDir{
		fs:   env.Fs(),
		dir:  dir,
		keep: append([]string{model.ResultsSnapshotsDir, ".git", model.MetadataDir}, keep...),
		l:    env.Logger(),
	}
}

func (r *resultsDir) kept(name string) bool {
	for _, k := range r.keep {
		if k == name {
			return true
		}
	}
	return false
}

// MoveCurrentFiles relocates all top level entries, except previous archives, under archiveDir
func (r *resultsDir) MoveCurrentFiles(ctx context.Context, archiveDir string) ([]Move, error) {
	target := filepath.Join(r.dir, filepath.FromSlash(archiveDir))
	exists, err := afero.Exists(r.fs, target)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("results archive %s: %w", target, os.ErrExist)
	}

	entries, err := afero.ReadDir(r.fs, r.dir)
	if err != nil {
		return nil, err
	}
	if err := r.fs.MkdirAll(target, 0755); err != nil {
		return nil, err
	}

	moves := make([]Move, 0, len(entries)+1)
	moves = append(moves, Move{To: target, Created: true})
	for _, entry := range entries {
		if r.kept(entry.Name()) {
			continue
		}
		mv := Move{
			From: filepath.Join(r.dir, entry.Name()),
			To:   filepath.Join(target, entry.Name()),
		}
		if err := r.fs.Rename(mv.From, mv.To); err != nil {
			_ = r.UndoMove(ctx, moves)
			return nil, err
		}
		moves = append(moves, mv)
	}
	r.l.Info("archived results", zap.String("dir", r.dir), zap.String("archive", archiveDir), zap.Int("entries", len(moves)-1))
	return moves, nil
}

// UndoMove reverts relocations, in reverse order.
//
// Archive directories are only created when absent, so everything left in them once entries
// are moved back was added during the snapshot.
func (r *resultsDir) UndoMove(_ context.Context, moves []Move) error {
	var firstErr error
	for i := len(moves) - 1; i >= 0; i-- {
		mv := moves[i]
		var err error
		if mv.Created {
			if firstErr != nil {
				// entries still in the archive
				continue
			}
			err = r.fs.RemoveAll(mv.To)
		} else {
			err = r.fs.Rename(mv.To, mv.From)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// AddResultsFile writes a JSON document in the results directory
func (r *resultsDir) AddResultsFile(_ context.Context, relPath string, data interface{}) error {
	p := filepath.Join(r.dir, filepath.FromSlash(path.Clean(relPath)))
	if err := r.fs.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(r.fs, p, append(buf, '\n'), 0644)
}

// ReadResultsFile reads a JSON document from the results directory
func (r *resultsDir) ReadResultsFile(_ context.Context, relPath string, data interface{}) error {
	buf, err := afero.ReadFile(r.fs, filepath.Join(r.dir, filepath.FromSlash(path.Clean(relPath))))
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, data)
}
