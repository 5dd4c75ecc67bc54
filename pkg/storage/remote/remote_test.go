package remote

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/storage"
	"github.com/kisdma/data-workspaces-core/pkg/storage/status"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for _, toPin := range []struct {
		raw      string
		expected Location
		err      error
	}{
		{raw: "s3://my-bucket/runs/2020/", expected: Location{Scheme: SchemeS3, Bucket: "my-bucket", Prefix: "runs/2020"}},
		{raw: "s3://my-bucket", expected: Location{Scheme: SchemeS3, Bucket: "my-bucket"}},
		{raw: "gs://other/x", expected: Location{Scheme: SchemeGCS, Bucket: "other", Prefix: "x"}},
		{raw: "file:///tmp/data", expected: Location{Scheme: SchemeFile, Path: filepath.FromSlash("/tmp/data")}},
		{raw: "s3:///nobucket", err: status.ErrInvalidResource},
		{raw: "ftp://host/x", err: status.ErrUnsupportedScheme},
		{raw: "", err: status.ErrInvalidResource},
	} {
		fixture := toPin
		t.Run(fixture.raw, func(t *testing.T) {
			loc, err := Parse(fixture.raw)
			if fixture.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, fixture.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, fixture.expected, loc)
		})
	}
}

func TestParseRelativePath(t *testing.T) {
	loc, err := Parse("some/dir")
	require.NoError(t, err)
	assert.Equal(t, SchemeFile, loc.Scheme)
	assert.True(t, filepath.IsAbs(loc.Path))
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "s3://b/p", Location{Scheme: SchemeS3, Bucket: "b", Prefix: "p"}.String())
	assert.Equal(t, "gs://b", Location{Scheme: SchemeGCS, Bucket: "b"}.String())
}

func TestOpenFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/mirror", 0700))

	store, err := Open(context.Background(), "file:///mirror", Fs(fs))
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), "a/b.csv", bytes.NewBufferString("1,2"), storage.OverWrite))

	exists, err := afero.Exists(fs, filepath.FromSlash("/mirror/a/b.csv"))
	require.NoError(t, err)
	assert.True(t, exists)
}
