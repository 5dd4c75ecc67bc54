package hashtree

import (
	"context"
	"path"
	"sort"
	"testing"
	"time"

	"github.com/kisdma/data-workspaces-core/internal/rand"
	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/storage/localfs"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoot = "/tree"

// layout turns generated names into nested paths, such that no file name collides with a directory
func layout(files map[string]string) map[string]string {
	res := make(map[string]string, len(files))
	for name, content := range files {
		res[path.Join(name[:1], name)] = content
	}
	return res
}

func sortedPaths(files map[string]string, reverse bool) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	} else {
		sort.Strings(paths)
	}
	return paths
}

func writeTree(t testing.TB, files map[string]string, reverse bool, mtime time.Time) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(testRoot, 0755))
	for _, p := range sortedPaths(files, reverse) {
		full := path.Join(testRoot, p)
		require.NoError(t, fs.MkdirAll(path.Dir(full), 0755))
		require.NoError(t, afero.WriteFile(fs, full, []byte(files[p]), 0644))
		require.NoError(t, fs.Chtimes(full, mtime, mtime))
	}
	return fs
}

func signature(t testing.TB, fs afero.Fs, rules IgnoreRules, mode Mode) Signature {
	sig, err := New(Fs(fs), Workers(3)).GenerateSignature(context.Background(), testRoot, rules, mode)
	require.NoError(t, err)
	return sig
}

func genFiles() gopter.Gen {
	return gen.MapOf(gen.Identifier(), gen.AlphaString())
}

func TestSignatureIndependentOfOrderAndTimes(t *testing.T) {
	properties := gopter.NewProperties(nil)
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, mode := range []Mode{ContentMode, SizeMode} {
		m := mode
		properties.Property("signatures ignore write order and mtimes in "+string(m)+" mode", prop.ForAll(
			func(generated map[string]string) bool {
				files := layout(generated)
				fs1 := writeTree(t, files, false, t0)
				fs2 := writeTree(t, files, true, t0.Add(72*time.Hour))
				sig := signature(t, fs1, IgnoreRules{}, m)

				ok, err := New(Fs(fs2)).CheckSignature(context.Background(), sig, testRoot, IgnoreRules{}, m)
				return err == nil && ok && sig == signature(t, fs2, IgnoreRules{}, m)
			},
			genFiles(),
		))
	}

	properties.TestingRun(t)
}

func TestSignatureDetectsChanges(t *testing.T) {
	properties := gopter.NewProperties(nil)
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("changing the bytes of a file changes the content signature", prop.ForAll(
		func(generated map[string]string, pick int, suffix string) bool {
			files := layout(generated)
			paths := sortedPaths(files, false)
			target := paths[pick%len(paths)]

			before := signature(t, writeTree(t, files, false, t0), IgnoreRules{}, ContentMode)
			content := []byte(files[target])
			if len(content) > 0 {
				// same size, different bytes
				content[0] ^= 0x01
				files[target] = string(content)
			} else {
				files[target] = suffix
			}
			after := signature(t, writeTree(t, files, false, t0), IgnoreRules{}, ContentMode)
			return before != after
		},
		gen.MapOf(gen.Identifier(), gen.AlphaString()).SuchThat(func(m map[string]string) bool { return len(m) > 0 }),
		gen.IntRange(0, 1000),
		gen.Identifier(),
	))

	properties.Property("changing the size of a file changes the size signature", prop.ForAll(
		func(generated map[string]string, pick int, suffix string) bool {
			files := layout(generated)
			paths := sortedPaths(files, false)
			target := paths[pick%len(paths)]

			before := signature(t, writeTree(t, files, false, t0), IgnoreRules{}, SizeMode)
			files[target] += suffix
			after := signature(t, writeTree(t, files, false, t0), IgnoreRules{}, SizeMode)
			return before != after
		},
		gen.MapOf(gen.Identifier(), gen.AlphaString()).SuchThat(func(m map[string]string) bool { return len(m) > 0 }),
		gen.IntRange(0, 1000),
		gen.Identifier(),
	))

	properties.Property("adding or renaming a file changes the signature", prop.ForAll(
		func(generated map[string]string, extra string) bool {
			files := layout(generated)
			before := signature(t, writeTree(t, files, false, t0), IgnoreRules{}, SizeMode)
			files[path.Join("extra", extra)] = ""
			after := signature(t, writeTree(t, files, false, t0), IgnoreRules{}, SizeMode)
			return before != after
		},
		genFiles(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestSizeModeIsCoarse(t *testing.T) {
	t0 := time.Now()
	a := signature(t, writeTree(t, map[string]string{"x/data.csv": "A"}, false, t0), IgnoreRules{}, SizeMode)
	b := signature(t, writeTree(t, map[string]string{"x/data.csv": "B"}, false, t0), IgnoreRules{}, SizeMode)
	assert.Equal(t, a, b, "size mode misses same-size edits")

	a = signature(t, writeTree(t, map[string]string{"x/data.csv": "A"}, false, t0), IgnoreRules{}, ContentMode)
	b = signature(t, writeTree(t, map[string]string{"x/data.csv": "B"}, false, t0), IgnoreRules{}, ContentMode)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, signature(t, writeTree(t, map[string]string{"x/data.csv": "A"}, false, t0), IgnoreRules{}, SizeMode),
		"signatures of different modes never collide")
}

func TestEmptyTree(t *testing.T) {
	fs := writeTree(t, nil, false, time.Now())
	sig := signature(t, fs, IgnoreRules{}, ContentMode)
	assert.Len(t, string(sig), 64)

	_, err := New(Fs(fs)).GenerateSignature(context.Background(), "/missing", IgnoreRules{}, ContentMode)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRootNotFound))
}

func TestIgnoreRules(t *testing.T) {
	t0 := time.Now()
	base := map[string]string{
		"data/a.csv": "1,2",
		"data/b.csv": "3,4",
	}
	noisy := map[string]string{
		"data/a.csv":             "1,2",
		"data/b.csv":             "3,4",
		"data/.DS_Store":         "junk",
		"data/tmp/x.csv":         "scratch",
		"data/deep/er/run.log":   "log",
		".hashes/abcdef":         "cache",
		"checkpoints/epoch1.bin": "weights",
	}
	rules := IgnoreRules{
		Names:    []string{".DS_Store", "tmp"},
		Patterns: []string{"**/*.log", "checkpoints/**"},
	}.With(".hashes")

	assert.Equal(t,
		signature(t, writeTree(t, base, false, t0), IgnoreRules{}, ContentMode),
		signature(t, writeTree(t, noisy, false, t0), rules, ContentMode),
	)
	assert.NotEqual(t,
		signature(t, writeTree(t, base, false, t0), IgnoreRules{}, ContentMode),
		signature(t, writeTree(t, noisy, false, t0), IgnoreRules{}, ContentMode),
	)
}

func TestMatchGlob(t *testing.T) {
	for _, toPin := range []struct {
		pattern string
		path    string
		match   bool
	}{
		{"*.csv", "a/b.csv", true},
		{"*.csv", "b.csv", true},
		{"a/*.csv", "a/b.csv", true},
		{"a/*.csv", "c/a/b.csv", false},
		{"**/*.tmp", "x/y/z.tmp", true},
		{"**/*.tmp", "z.tmp", true},
		{"build/**", "build", true},
		{"build/**", "build/x/y", true},
		{"build/**", "builder/x", false},
		{"**/testdata/**", "a/testdata/x", true},
		{"**/testdata/**", "a/testdata", true},
		{"run-*/**", "run-1/out.csv", true},
		{"run-*/**", "walk-1/out.csv", false},
	} {
		fixture := toPin
		t.Run(fixture.pattern+"~"+fixture.path, func(t *testing.T) {
			assert.Equal(t, fixture.match, matchGlob(fixture.pattern, fixture.path))
		})
	}
}

func TestParseIgnore(t *testing.T) {
	rules := ParseIgnore([]string{".git", "*.tmp", "/build/**"})
	assert.Equal(t, []string{".git"}, rules.Names)
	assert.Equal(t, []string{"*.tmp", "build/**"}, rules.Patterns)
	assert.True(t, rules.With("cache/").Ignored("cache/x"))
	assert.False(t, rules.Ignored("cache/x"), "With does not alter the original rules")
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	fs := writeTree(t, map[string]string{"a/one": "1", "b/two": "22"}, false, time.Now())
	cacheFs := afero.NewMemMapFs()
	cache := localfs.New(cacheFs)
	h := New(Fs(fs), Cache(cache))

	sig, err := h.GenerateSignature(ctx, testRoot, IgnoreRules{}, ContentMode)
	require.NoError(t, err)
	again, err := h.GenerateSignature(ctx, testRoot, IgnoreRules{}, ContentMode)
	require.NoError(t, err)
	assert.Equal(t, sig, again)

	keys, err := cache.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{string(sig)}, keys, "re-fingerprinting unchanged content adds no artifact")

	tree, err := h.LoadTree(ctx, sig)
	require.NoError(t, err)
	require.Len(t, tree.Entries, 2)
	assert.Equal(t, "a/one", tree.Entries[0].Path)
	assert.Equal(t, int64(2), tree.Entries[1].Size)
	assert.Equal(t, int64(3), tree.TotalSize())

	_, err = h.LoadTree(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotCached))

	require.NoError(t, afero.WriteFile(cacheFs, "corrupt", []byte(`{"mode":"content","entries":[]}`), 0600))
	_, err = h.LoadTree(ctx, "corrupt")
	assert.True(t, errors.Is(err, ErrCorruptCache))

	require.NoError(t, afero.WriteFile(fs, path.Join(testRoot, "a/one"), []byte("one"), 0644))
	current, ok, err := h.Check(ctx, sig, testRoot, IgnoreRules{}, ContentMode)
	require.NoError(t, err)
	assert.False(t, ok)
	changes := Diff(tree, current)
	assert.Equal(t, []string{"a/one"}, changes.Changed)
	assert.Contains(t, changes.String(), "1 changed (a/one)")

	sigs, err := h.Cached(ctx)
	require.NoError(t, err)
	assert.Len(t, sigs, 2)
	require.NoError(t, h.Forget(ctx, "corrupt"))
	sigs, err = h.Cached(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Signature{sig}, sigs)
}

func TestDiff(t *testing.T) {
	from := &Tree{Mode: ContentMode, Entries: []Entry{{Path: "a", Hash: "1"}, {Path: "b", Hash: "2"}, {Path: "c", Hash: "3"}}}
	to := &Tree{Mode: ContentMode, Entries: []Entry{{Path: "b", Hash: "2"}, {Path: "c", Hash: "4"}, {Path: "d", Hash: "5"}}}

	c := Diff(from, to)
	assert.Equal(t, []string{"d"}, c.Added)
	assert.Equal(t, []string{"a"}, c.Removed)
	assert.Equal(t, []string{"c"}, c.Changed)
	assert.False(t, c.Empty())
	assert.True(t, Diff(from, from).Empty())
	assert.Equal(t, "no change", Diff(from, from).String())
}

func TestWorkersDoNotAffectSignature(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	paths, err := rand.Tree(fs, testRoot, 60, 4096)
	require.NoError(t, err)

	sequential, err := New(Fs(fs), Workers(1)).Tree(ctx, testRoot, IgnoreRules{}, ContentMode)
	require.NoError(t, err)
	concurrent, err := New(Fs(fs), Workers(16)).Tree(ctx, testRoot, IgnoreRules{}, ContentMode)
	require.NoError(t, err)
	assert.Equal(t, sequential.Signature(), concurrent.Signature())
	assert.Len(t, concurrent.Entries, len(paths))
}
