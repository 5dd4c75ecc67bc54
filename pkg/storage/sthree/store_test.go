package sthree

import (
	"bytes"
	"context"
	"io/ioutil"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/storage"
	"github.com/kisdma/data-workspaces-core/pkg/storage/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves a fixed set of objects from memory
type fakeS3 struct {
	s3iface.S3API
	objects map[string]string
	deleted []string
}

func notFound() error {
	return awserr.NewRequestFailure(awserr.New("NotFound", "not found", nil), 404, "req")
}

func (f *fakeS3) HeadObjectWithContext(_ aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.StringValue(in.Key)]; !ok {
		return nil, notFound()
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	content, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.NewRequestFailure(awserr.New("NoSuchKey", "no such key", nil), 404, "req")
	}
	return &s3.GetObjectOutput{Body: ioutil.NopCloser(bytes.NewBufferString(content))}, nil
}

func (f *fakeS3) DeleteObjectWithContext(_ aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2PagesWithContext(_ aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	page := &s3.ListObjectsV2Output{}
	for key, content := range f.objects {
		if len(key) >= len(aws.StringValue(in.Prefix)) && key[:len(aws.StringValue(in.Prefix))] == aws.StringValue(in.Prefix) {
			page.Contents = append(page.Contents, &s3.Object{Key: aws.String(key), Size: aws.Int64(int64(len(content)))})
		}
	}
	fn(page, true)
	return nil
}

func setupStore(t testing.TB) (storage.Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string]string{
		"data/sixteentons":   "this is the text",
		"data/seventeentons": "this is the text for another thing",
		"other/ignored":      "x",
	}}
	bs, err := New(Bucket("bucket"), Prefix("/data/"), Client(fake))
	require.NoError(t, err)
	return bs, fake
}

func TestHas(t *testing.T) {
	bs, _ := setupStore(t)

	has, err := bs.Has(context.Background(), "sixteentons")
	require.NoError(t, err)
	require.True(t, has)

	has, err = bs.Has(context.Background(), "fifteentons")
	require.NoError(t, err)
	require.False(t, has)
}

func TestGet(t *testing.T) {
	bs, _ := setupStore(t)

	rdr, err := bs.Get(context.Background(), "sixteentons")
	require.NoError(t, err)
	b, err := ioutil.ReadAll(rdr)
	require.NoError(t, err)
	assert.Equal(t, "this is the text", string(b))

	_, err = bs.Get(context.Background(), "fifteentons")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotExists))
}

func TestList(t *testing.T) {
	bs, _ := setupStore(t)

	lister, ok := bs.(storage.Lister)
	require.True(t, ok)
	infos, err := lister.List(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, []storage.ObjectInfo{
		{Key: "seventeentons", Size: int64(len("this is the text for another thing"))},
		{Key: "sixteentons", Size: int64(len("this is the text"))},
	}, infos)

	keys, err := bs.Keys(context.Background())
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestDelete(t *testing.T) {
	bs, fake := setupStore(t)

	require.NoError(t, bs.Delete(context.Background(), "seventeentons"))
	assert.Equal(t, []string{"data/seventeentons"}, fake.deleted)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(Prefix("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrInvalidResource))
}

func TestString(t *testing.T) {
	bs, _ := setupStore(t)
	assert.Equal(t, "s3://bucket/data", bs.String())
}
