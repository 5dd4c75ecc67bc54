package hashtree

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	units "github.com/docker/go-units"
	jsoniter "github.com/json-iterator/go"
	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/storage"
	storagestatus "github.com/kisdma/data-workspaces-core/pkg/storage/status"
	blake2b "github.com/minio/blake2b-simd"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrRootNotFound indicates that the root of a tree does not exist or is not a directory
	ErrRootNotFound = errors.New("tree root not found")

	// ErrNotCached indicates that no listing is cached for a signature
	ErrNotCached = errors.New("no cached listing for this signature")

	// ErrCorruptCache indicates that a cached listing does not hash to its own key
	ErrCorruptCache = errors.New("corrupt cached listing")

	json = jsoniter.ConfigCompatibleWithStandardLibrary
)

// Mode selects how file states are fingerprinted
type Mode string

const (
	// ContentMode hashes the bytes of every file
	ContentMode Mode = "content"

	// SizeMode only considers file sizes: cheaper, but blind to same-size edits
	SizeMode Mode = "size"
)

// ModeFor yields ContentMode when content hashing is requested, SizeMode otherwise
func ModeFor(computeHash bool) Mode {
	if computeHash {
		return ContentMode
	}
	return SizeMode
}

const (
	signatureHeader = "dws-hashtree/1"
	readBufferSize  = 64 * units.KiB
	largeFile       = 100 * units.MiB
)

// Signature is the fingerprint of a tree
type Signature string

func (s Signature) String() string {
	return string(s)
}

// Entry is the fingerprint of a single file
type Entry struct {
	Path string `json:"path" yaml:"path"`
	Hash string `json:"hash,omitempty" yaml:"hash,omitempty"`
	Size int64  `json:"size" yaml:"size"`
}

// value is the part of an entry which contributes to the signature in some mode
func (e Entry) value(mode Mode) string {
	if mode == SizeMode {
		return strconv.FormatInt(e.Size, 10)
	}
	return e.Hash
}

// Tree is a fingerprinted listing of files, sorted by path
type Tree struct {
	Mode    Mode    `json:"mode" yaml:"mode"`
	Entries []Entry `json:"entries" yaml:"entries"`
}

// Signature computes the digest of a tree listing
func (t *Tree) Signature() Signature {
	h := blake2b.New256()
	writeField(h, []byte(signatureHeader))
	writeField(h, []byte(t.Mode))
	for _, e := range t.Entries {
		writeField(h, []byte(e.Path))
		writeField(h, []byte(e.value(t.Mode)))
	}
	return Signature(hex.EncodeToString(h.Sum(nil)))
}

// TotalSize of all files in the tree
func (t *Tree) TotalSize() int64 {
	var total int64
	for _, e := range t.Entries {
		total += e.Size
	}
	return total
}

// writeField writes a length-prefixed field, so that no two distinct listings share a byte stream
func writeField(h hash.Hash, b []byte) {
	var l [8]byte
	binary.BigEndian.PutUint64(l[:], uint64(len(b)))
	_, _ = h.Write(l[:])
	_, _ = h.Write(b)
}

// Hasher fingerprints trees on a file system, and caches their listings
type Hasher struct {
	fs      afero.Fs
	cache   storage.Store
	workers int
	l       *zap.Logger
}

// Option for the hasher
type Option func(*Hasher)

// Fs sets the file system on which trees are walked. Defaults to the OS file system.
func Fs(fs afero.Fs) Option {
	return func(h *Hasher) {
		if fs != nil {
			h.fs = fs
		}
	}
}

// Cache sets the store where tree listings are cached. Without cache, nothing is saved.
func Cache(store storage.Store) Option {
	return func(h *Hasher) {
		h.cache = store
	}
}

// Workers sets the number of files hashed concurrently in content mode
func Workers(n int) Option {
	return func(h *Hasher) {
		if n > 0 {
			h.workers = n
		}
	}
}

// Logger for the hasher
func Logger(l *zap.Logger) Option {
	return func(h *Hasher) {
		if l != nil {
			h.l = l
		}
	}
}

// New builds a hasher
func New(opts ...Option) *Hasher {
	h := &Hasher{
		fs:      afero.NewOsFs(),
		workers: runtime.NumCPU(),
		l:       zap.NewNop(),
	}
	for _, apply := range opts {
		apply(h)
	}
	return h
}

// Tree walks a directory and fingerprints all the files which are not ignored.
//
// Symbolic links are not followed: they are fingerprinted by their target.
func (h *Hasher) Tree(ctx context.Context, root string, rules IgnoreRules, mode Mode) (*Tree, error) {
	fi, err := h.fs.Stat(root)
	if err != nil || !fi.IsDir() {
		return nil, ErrRootNotFound.WrapMessage("%s", root)
	}

	var entries []Entry
	var toHash []int
	err = afero.Walk(h.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rules.Ignored(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		switch {
		case info.IsDir():
			return nil
		case info.Mode()&os.ModeSymlink != 0:
			target, err := h.readLink(p)
			if err != nil {
				return err
			}
			entries = append(entries, Entry{Path: rel, Hash: hashString("symlink:" + target), Size: int64(len(target))})
		case info.Mode().IsRegular():
			entries = append(entries, Entry{Path: rel, Size: info.Size()})
			if mode == ContentMode {
				toHash = append(toHash, len(entries)-1)
			}
		default:
			h.l.Debug("skipping special file", zap.String("path", p))
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}

	if err := h.hashFiles(ctx, root, entries, toHash); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	if mode == SizeMode {
		for i := range entries {
			entries[i].Hash = ""
		}
	}
	t := &Tree{Mode: mode, Entries: entries}
	h.l.Debug("fingerprinted tree",
		zap.String("root", root),
		zap.String("mode", string(mode)),
		zap.Int("files", len(entries)),
		zap.String("size", units.HumanSize(float64(t.TotalSize()))),
	)
	return t, nil
}

func (h *Hasher) readLink(p string) (string, error) {
	if reader, ok := h.fs.(afero.LinkReader); ok {
		return reader.ReadlinkIfPossible(p)
	}
	return "", fmt.Errorf("cannot read symbolic link %s on this file system", p)
}

// hashFiles hashes the content of some entries with a bounded pool of workers.
// Each worker writes to its own entry, so the result does not depend on scheduling.
func (h *Hasher) hashFiles(ctx context.Context, root string, entries []Entry, indices []int) error {
	if len(indices) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)
	for _, idx := range indices {
		i := idx
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum, err := h.hashFile(filepath.Join(root, filepath.FromSlash(entries[i].Path)))
			if err != nil {
				return err
			}
			entries[i].Hash = sum
			if entries[i].Size > largeFile {
				h.l.Debug("hashed large file", zap.String("path", entries[i].Path), zap.String("size", units.HumanSize(float64(entries[i].Size))))
			}
			return nil
		})
	}
	return g.Wait()
}

func (h *Hasher) hashFile(p string) (string, error) {
	f, err := h.fs.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hasher := blake2b.New256()
	buf := make([]byte, readBufferSize)
	if _, err := io.CopyBuffer(hasher, f, buf); err != nil {
		return "", fmt.Errorf("hashing %s: %w", p, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// FileHash is the content hash of a single file
func (h *Hasher) FileHash(p string) (string, error) {
	return h.hashFile(p)
}

func hashString(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// GenerateSignature fingerprints a tree and caches its listing, keyed by the signature.
//
// Generating the signature of an unchanged tree twice writes nothing new to the cache.
func (h *Hasher) GenerateSignature(ctx context.Context, root string, rules IgnoreRules, mode Mode) (Signature, error) {
	t, err := h.Tree(ctx, root, rules, mode)
	if err != nil {
		return "", err
	}
	sig := t.Signature()
	if err := h.save(ctx, sig, t); err != nil {
		return "", err
	}
	return sig, nil
}

// Save caches a listing built elsewhere, e.g. from a remote object listing, and returns its signature
func (h *Hasher) Save(ctx context.Context, t *Tree) (Signature, error) {
	sig := t.Signature()
	return sig, h.save(ctx, sig, t)
}

func (h *Hasher) save(ctx context.Context, sig Signature, t *Tree) error {
	if h.cache == nil {
		return nil
	}
	has, err := h.cache.Has(ctx, string(sig))
	if err != nil {
		return err
	}
	if has {
		h.l.Debug("signature already cached", zap.Stringer("signature", sig))
		return nil
	}
	buf, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	err = h.cache.Put(ctx, string(sig), bytes.NewReader(buf), storage.NoOverWrite)
	if errors.Is(err, storagestatus.ErrExists) {
		return nil
	}
	return err
}

// CheckSignature recomputes the signature of a tree with the same traversal and ignore rules,
// and compares it with an expected value.
func (h *Hasher) CheckSignature(ctx context.Context, expected Signature, root string, rules IgnoreRules, mode Mode) (bool, error) {
	_, ok, err := h.Check(ctx, expected, root, rules, mode)
	return ok, err
}

// Check recomputes the tree listing and compares its signature with an expected value.
// The current listing is returned, to help report mismatches.
func (h *Hasher) Check(ctx context.Context, expected Signature, root string, rules IgnoreRules, mode Mode) (*Tree, bool, error) {
	t, err := h.Tree(ctx, root, rules, mode)
	if err != nil {
		return nil, false, err
	}
	return t, t.Signature() == expected, nil
}

// LoadTree reads back a cached listing
func (h *Hasher) LoadTree(ctx context.Context, sig Signature) (*Tree, error) {
	if h.cache == nil {
		return nil, ErrNotCached.WrapMessage("%s", sig)
	}
	has, err := h.cache.Has(ctx, string(sig))
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, ErrNotCached.WrapMessage("%s", sig)
	}
	buf, err := storage.ReadAll(ctx, h.cache, string(sig))
	if err != nil {
		return nil, err
	}
	var t Tree
	if err := json.Unmarshal(buf, &t); err != nil {
		return nil, ErrCorruptCache.Wrap(err)
	}
	if t.Signature() != sig {
		return nil, ErrCorruptCache.WrapMessage("listing does not match signature %s", sig)
	}
	return &t, nil
}

// Cached lists all the signatures held in the cache
func (h *Hasher) Cached(ctx context.Context) ([]Signature, error) {
	if h.cache == nil {
		return nil, nil
	}
	keys, err := storage.ListKeys(ctx, h.cache, "")
	if err != nil {
		return nil, err
	}
	sigs := make([]Signature, 0, len(keys))
	for _, k := range keys {
		sigs = append(sigs, Signature(k))
	}
	return sigs, nil
}

// Forget removes a cached listing
func (h *Hasher) Forget(ctx context.Context, sig Signature) error {
	if h.cache == nil {
		return nil
	}
	return h.cache.Delete(ctx, string(sig))
}
