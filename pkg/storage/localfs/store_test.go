// Copyright © 2018 One Concern

package localfs

import (
	"bytes"
	"context"
	"io/ioutil"
	"strconv"
	"testing"

	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/storage"
	"github.com/kisdma/data-workspaces-core/pkg/storage/status"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHas(t *testing.T) {
	bs, cleanup := setupStore(t)
	defer cleanup()

	has, err := bs.Has(context.Background(), "sixteentons")
	require.NoError(t, err)
	require.True(t, has)

	has, err = bs.Has(context.Background(), "seventeentons")
	require.NoError(t, err)
	require.True(t, has)

	has, err = bs.Has(context.Background(), "fifteentons")
	require.NoError(t, err)
	require.False(t, has)
}

func TestGet(t *testing.T) {
	bs, cleanup := setupStore(t)
	defer cleanup()

	rdr, err := bs.Get(context.Background(), "sixteentons")
	require.NoError(t, err)
	b, err := ioutil.ReadAll(rdr)
	require.NoError(t, err)
	assert.Equal(t, "this is the text", string(b))

	rdr, err = bs.Get(context.Background(), "seventeentons")
	require.NoError(t, err)
	b, err = ioutil.ReadAll(rdr)
	require.NoError(t, err)
	assert.Equal(t, "this is the text for another thing", string(b))

	_, err = bs.Get(context.Background(), "fifteentons")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotExists))
}

func TestKeys(t *testing.T) {
	bs, cleanup := setupStore(t)
	defer cleanup()

	keys, err := bs.Keys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 2)
}

func TestDelete(t *testing.T) {
	bs, cleanup := setupStore(t)
	defer cleanup()

	require.NoError(t, bs.Delete(context.Background(), "seventeentons"))
	k, _ := bs.Keys(context.Background())
	assert.Len(t, k, 1)

	require.NoError(t, bs.Delete(context.Background(), "seventeentons"), "deleting a missing key is not an error")
}

func TestClear(t *testing.T) {
	bs, cleanup := setupStore(t)
	defer cleanup()

	require.NoError(t, bs.Clear(context.Background()))
	k, _ := bs.Keys(context.Background())
	require.Empty(t, k)
}

func TestPut(t *testing.T) {
	bs, cleanup := setupStore(t)
	defer cleanup()

	content := bytes.NewBufferString("here we go once again")
	err := bs.Put(context.Background(), "eighteentons", content, storage.NoOverWrite)
	require.NoError(t, err)

	rdr, err := bs.Get(context.Background(), "eighteentons")
	require.NoError(t, err)
	b, err := ioutil.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())

	assert.Equal(t, "here we go once again", string(b))

	k, _ := bs.Keys(context.Background())
	assert.Len(t, k, 3)

	err = bs.Put(context.Background(), "eighteentons", bytes.NewBufferString("again"), storage.NoOverWrite)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrExists))

	require.NoError(t, bs.Put(context.Background(), "eighteentons", bytes.NewBufferString("short"), storage.OverWrite))
	b, err = storage.ReadAll(context.Background(), bs, "eighteentons")
	require.NoError(t, err)
	assert.Equal(t, "short", string(b), "overwriting truncates the previous content")
}

func TestList(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("a/b/c", 0777))
	require.NoError(t, fs.MkdirAll("a/d", 0777))
	for i := 0; i < 10; i++ {
		fakeFile(t, fs, "a/b/c/e"+strconv.Itoa(i))
		fakeFile(t, fs, "a/d/f"+strconv.Itoa(i))
	}
	store := New(fs)

	infos, err := store.List(context.Background(), "a/d/")
	require.NoError(t, err)
	require.Len(t, infos, 10)
	for i, info := range infos {
		assert.Equal(t, "a/d/f"+strconv.Itoa(i), info.Key)
		assert.Equal(t, int64(len("this is the text")), info.Size)
	}

	infos, err = store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, infos, 20)

	infos, err = store.List(context.Background(), "z")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestAtomic(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := NewAtomic(fs)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "x/y/config.json", bytes.NewBufferString(`{"a":1}`), storage.OverWrite))
	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x/y/config.json"}, keys, "the staging area is never listed")

	err = store.Put(ctx, ".put-stage/z", bytes.NewBufferString("z"), storage.OverWrite)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrInvalidKey))

	err = store.Put(ctx, "x/y/config.json", bytes.NewBufferString("b"), storage.NoOverWrite)
	assert.True(t, errors.Is(err, status.ErrExists))

	b, err := storage.ReadAll(ctx, store, "x/y/config.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(b))

	require.NoError(t, store.Clear(ctx))
	keys, err = store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCopy(t *testing.T) {
	src, cleanup := setupStore(t)
	defer cleanup()
	dst := New(afero.NewMemMapFs())

	n, err := storage.Copy(context.Background(), src, dst, "six")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	keys, err := storage.ListKeys(context.Background(), dst, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"sixteentons"}, keys)

	object, err := storage.ReadTee(context.Background(), src, "seventeentons", dst, "copies/seventeentons")
	require.NoError(t, err)
	assert.Equal(t, "this is the text for another thing", string(object))
	has, err := dst.Has(context.Background(), "copies/seventeentons")
	require.NoError(t, err)
	assert.True(t, has)
}

func setupStore(t testing.TB) (Store, func()) {
	t.Helper()

	fs := afero.NewMemMapFs()
	f, err := fs.Create("sixteentons")
	require.NoError(t, err)
	_, err = f.WriteString("this is the text")
	require.NoError(t, err)
	f.Close()

	ff, err := fs.Create("seventeentons")
	require.NoError(t, err)
	_, err = ff.WriteString("this is the text for another thing")
	require.NoError(t, err)
	ff.Close()

	return New(fs), func() {}
}

func fakeFile(t testing.TB, fs afero.Fs, file string) {
	f, err := fs.Create(file)
	require.NoError(t, err)
	_, err = f.WriteString("this is the text")
	require.NoError(t, err)
	err = f.Close()
	require.NoError(t, err)
}
