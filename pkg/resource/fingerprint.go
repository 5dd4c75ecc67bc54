package resource

import (
	"context"
	"path/filepath"

	"github.com/kisdma/data-workspaces-core/pkg/hashtree"
)

// fingerprintDir certifies the current content of a local directory, or of a file or directory below it.
// Nothing is cached.
func fingerprintDir(ctx context.Context, env Env, dir, subpath string, rules hashtree.IgnoreRules, mode hashtree.Mode) (string, error) {
	root := dir
	if subpath != "" {
		root = filepath.Join(dir, filepath.FromSlash(subpath))
	}
	fi, err := env.Fs().Stat(root)
	if err != nil {
		return "", err
	}
	h := hashtree.New(hashtree.Fs(env.Fs()), hashtree.Logger(env.Logger()))
	if !fi.IsDir() {
		return h.FileHash(root)
	}
	t, err := h.Tree(ctx, root, rules, mode)
	if err != nil {
		return "", err
	}
	return t.Signature().String(), nil
}
