package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

var _ Repository = &Git{}

// Git is a Repository backed by the git command line
type Git struct {
	dir     string
	timeout time.Duration
	config  []string
	l       *zap.Logger
}

// Option for git repositories
type Option func(*Git)

// Timeout bounds the duration of each git command. Zero means no timeout.
func Timeout(d time.Duration) Option {
	return func(g *Git) {
		g.timeout = d
	}
}

// Identity sets the author and committer for commits made by this client
func Identity(name, email string) Option {
	return func(g *Git) {
		if name != "" {
			g.config = append(g.config, "-c", "user.name="+name)
		}
		if email != "" {
			g.config = append(g.config, "-c", "user.email="+email)
		}
	}
}

// Logger for git commands
func Logger(l *zap.Logger) Option {
	return func(g *Git) {
		if l != nil {
			g.l = l
		}
	}
}

func newGit(dir string, opts ...Option) *Git {
	g := &Git{dir: dir, l: zap.NewNop()}
	for _, apply := range opts {
		apply(g)
	}
	return g
}

// Available tells if the git executable can be found
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// Open a repository which contains dir. The repository is rooted at its top level directory.
func Open(ctx context.Context, dir string, opts ...Option) (*Git, error) {
	g := newGit(dir, opts...)
	topLevel, err := g.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, ErrNotRepository.Wrap(err)
	}
	g.dir = filepath.Clean(topLevel)
	return g, nil
}

// IsRepository tells if dir is the top level directory of a git repository
func IsRepository(ctx context.Context, dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	g, err := Open(ctx, abs)
	if err != nil {
		return false
	}
	// compare resolved paths, e.g. on systems where temp directories are symlinked
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		resolved = abs
	}
	top, err := filepath.EvalSymlinks(g.dir)
	if err != nil {
		top = g.dir
	}
	return resolved == top
}

// Init creates a new repository in dir
func Init(ctx context.Context, dir string, opts ...Option) (*Git, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	g := newGit(dir, opts...)
	if _, err := g.run(ctx, "init", "-q"); err != nil {
		return nil, err
	}
	return Open(ctx, dir, opts...)
}

// Clone a repository into dir
func Clone(ctx context.Context, url, dir string, opts ...Option) (*Git, error) {
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, err
	}
	g := newGit(parent, opts...)
	if _, err := g.run(ctx, "clone", "-q", url, dir); err != nil {
		return nil, err
	}
	return Open(ctx, dir, opts...)
}

// Dir is the top level directory of the working tree
func (g *Git) Dir() string {
	return g.dir
}

// Run a git command in the repository, returning its trimmed standard output
func (g *Git) Run(ctx context.Context, args ...string) (string, error) {
	return g.run(ctx, args...)
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "git", append(append([]string{}, g.config...), args...)...)
	cmd.Dir = g.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	g.l.Debug("git", zap.String("dir", g.dir), zap.Strings("args", args))
	err := cmd.Run()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", ErrCommand.WrapMessage("git %s: timeout after %v", args[0], g.timeout)
		}
		g.l.Debug("git error", zap.Strings("args", args), zap.String("stderr", stderr.String()), zap.Error(err))
		return "", ErrCommand.WrapMessage("git %s: %v: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}

func pathspec(paths []string) []string {
	if len(paths) == 0 {
		return []string{"--", "."}
	}
	spec := make([]string, 0, len(paths)+1)
	spec = append(spec, "--")
	for _, p := range paths {
		spec = append(spec, filepath.ToSlash(p))
	}
	return spec
}

// Add stages all changes below some paths
func (g *Git) Add(ctx context.Context, paths ...string) error {
	if len(paths) > 0 {
		paths = g.known(ctx, paths)
		if len(paths) == 0 {
			return nil
		}
	}
	_, err := g.run(ctx, append([]string{"add", "-A"}, pathspec(paths)...)...)
	return err
}

// known filters out paths with neither tracked nor untracked files, which git add rejects
func (g *Git) known(ctx context.Context, paths []string) []string {
	res := make([]string, 0, len(paths))
	for _, p := range paths {
		spec := pathspec([]string{p})
		tracked, _ := g.run(ctx, append([]string{"ls-files"}, spec...)...)
		untracked, _ := g.run(ctx, append([]string{"ls-files", "--others", "--exclude-standard"}, spec...)...)
		if tracked != "" || untracked != "" {
			res = append(res, p)
		}
	}
	return res
}

// Commit all changes below some paths
func (g *Git) Commit(ctx context.Context, message string, paths ...string) (bool, error) {
	if len(paths) > 0 {
		paths = g.known(ctx, paths)
		if len(paths) == 0 {
			return false, nil
		}
	}
	if err := g.Add(ctx, paths...); err != nil {
		return false, err
	}
	// nothing staged for these paths: nothing to commit
	if _, err := g.run(ctx, append([]string{"diff", "--cached", "--quiet"}, pathspec(paths)...)...); err == nil {
		return false, nil
	}
	args := []string{"commit", "-q", "-m", message}
	if len(paths) > 0 {
		args = append(args, pathspec(paths)...)
	}
	if _, err := g.run(ctx, args...); err != nil {
		return false, err
	}
	return true, nil
}

// HeadCommit is the hash of the current commit
func (g *Git) HeadCommit(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return validateSha(out)
}

// IsDirty tells if there are uncommitted changes or untracked files below path
func (g *Git) IsDirty(ctx context.Context, path string) (bool, error) {
	var paths []string
	if path != "" {
		paths = []string{path}
	}
	out, err := g.run(ctx, append([]string{"status", "--porcelain", "--untracked-files=all"}, pathspec(paths)...)...)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// TreeHash is the hash of the tree at path in some commit
func (g *Git) TreeHash(ctx context.Context, ref, path string) (string, error) {
	path = strings.Trim(filepath.ToSlash(path), "/")
	// an untracked or empty directory has no tree in the commit
	if out, err := g.run(ctx, "ls-tree", "--name-only", ref, "--", path); err == nil && out == "" && path != "" {
		return EmptyTree, nil
	}
	out, err := g.run(ctx, "rev-parse", ref+":"+path)
	if err != nil {
		return "", err
	}
	return validateSha(out)
}

// ObjectType tells the type of an object
func (g *Git) ObjectType(ctx context.Context, hash string) (string, error) {
	return g.run(ctx, "cat-file", "-t", hash)
}

// ResetHard checks out a commit, discarding local changes
func (g *Git) ResetHard(ctx context.Context, commit string) error {
	_, err := g.run(ctx, "reset", "--hard", "-q", commit)
	return err
}

// ReplaceSubtree replaces the content of path by a tree object, in the index and in the working tree.
// The change is staged, not committed.
func (g *Git) ReplaceSubtree(ctx context.Context, path, tree string) error {
	path = strings.Trim(filepath.ToSlash(path), "/")
	if path == "" {
		return fmt.Errorf("cannot replace the root tree: use ResetHard")
	}
	if _, err := g.run(ctx, "rm", "-r", "-q", "--ignore-unmatch", "--", path); err != nil {
		return err
	}
	if tree == EmptyTree {
		return nil
	}
	_, err := g.run(ctx, "read-tree", "--prefix="+path+"/", "-u", tree)
	return err
}

// Push the current branch
func (g *Git) Push(ctx context.Context) error {
	_, err := g.run(ctx, "push", "-q")
	return err
}

// Pull the current branch
func (g *Git) Pull(ctx context.Context) error {
	_, err := g.run(ctx, "pull", "-q", "--ff-only")
	return err
}

// RemoteURL of the origin remote
func (g *Git) RemoteURL(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "remote")
	if err != nil {
		return "", err
	}
	for _, remote := range strings.Fields(out) {
		if remote == "origin" {
			return g.run(ctx, "remote", "get-url", "origin")
		}
	}
	return "", nil
}

// validateSha trims and validates sha as a git sha, returning the valid sha xor an error
func validateSha(sha string) (string, error) {
	sha = strings.TrimSpace(sha)
	if len(sha) == 40 {
		return sha, nil
	}
	return "", ErrCommand.WrapMessage("sha not 40 characters: %q", sha)
}
