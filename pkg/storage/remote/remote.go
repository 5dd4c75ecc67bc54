// Package remote resolves storage URLs into stores.
//
// Supported schemes are:
//   - file:///abs/path (or a plain local path)
//   - s3://bucket/prefix
//   - gs://bucket/prefix
package remote

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/kisdma/data-workspaces-core/pkg/storage"
	"github.com/kisdma/data-workspaces-core/pkg/storage/gcs"
	"github.com/kisdma/data-workspaces-core/pkg/storage/localfs"
	"github.com/kisdma/data-workspaces-core/pkg/storage/sthree"
	"github.com/kisdma/data-workspaces-core/pkg/storage/status"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	// SchemeFile designates a local directory
	SchemeFile = "file"
	// SchemeS3 designates an S3 bucket
	SchemeS3 = "s3"
	// SchemeGCS designates a GCS bucket
	SchemeGCS = "gs"
)

// Location is a parsed storage URL
type Location struct {
	Scheme string
	Bucket string
	Prefix string
	Path   string
}

// String representation of the location, as a URL
func (l Location) String() string {
	switch l.Scheme {
	case SchemeFile:
		return "file://" + filepath.ToSlash(l.Path)
	default:
		if l.Prefix == "" {
			return l.Scheme + "://" + l.Bucket
		}
		return l.Scheme + "://" + l.Bucket + "/" + l.Prefix
	}
}

// Parse a storage URL
func Parse(raw string) (Location, error) {
	if raw == "" {
		return Location{}, status.ErrInvalidResource.WrapMessage("empty storage URL")
	}
	if !strings.Contains(raw, "://") {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return Location{}, status.ErrInvalidResource.Wrap(err)
		}
		return Location{Scheme: SchemeFile, Path: abs}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, status.ErrInvalidResource.Wrap(err)
	}
	switch u.Scheme {
	case SchemeFile:
		p := filepath.FromSlash(u.Host + u.Path)
		if !filepath.IsAbs(p) {
			return Location{}, status.ErrInvalidResource.WrapMessage("file URL must be absolute: %q", raw)
		}
		return Location{Scheme: SchemeFile, Path: filepath.Clean(p)}, nil
	case SchemeS3, SchemeGCS:
		if u.Host == "" {
			return Location{}, status.ErrInvalidResource.WrapMessage("missing bucket in %q", raw)
		}
		return Location{Scheme: u.Scheme, Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
	default:
		return Location{}, status.ErrUnsupportedScheme.WrapMessage("%q", u.Scheme)
	}
}

// Options to open remote stores
type Options struct {
	Logger          *zap.Logger
	AWSConfig       *aws.Config
	CredentialsFile string
	Fs              afero.Fs
}

// Option for opening remote stores
type Option func(*Options)

// Logger for the opened store
func Logger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// AWSConfig used by s3 stores
func AWSConfig(cfg *aws.Config) Option {
	return func(o *Options) {
		o.AWSConfig = cfg
	}
}

// CredentialsFile used by gcs stores
func CredentialsFile(file string) Option {
	return func(o *Options) {
		o.CredentialsFile = file
	}
}

// Fs is the base file system used by file stores (defaults to the OS file system)
func Fs(fs afero.Fs) Option {
	return func(o *Options) {
		if fs != nil {
			o.Fs = fs
		}
	}
}

// Open a store at some storage URL
func Open(ctx context.Context, raw string, opts ...Option) (storage.Store, error) {
	loc, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return OpenLocation(ctx, loc, opts...)
}

// OpenLocation opens a store at some parsed location
func OpenLocation(ctx context.Context, loc Location, opts ...Option) (storage.Store, error) {
	o := Options{Logger: zap.NewNop(), Fs: afero.NewOsFs()}
	for _, apply := range opts {
		apply(&o)
	}
	o.Logger.Debug("opening store", zap.Stringer("location", loc))

	switch loc.Scheme {
	case SchemeFile:
		return localfs.New(afero.NewBasePathFs(o.Fs, loc.Path)), nil
	case SchemeS3:
		cfg := o.AWSConfig
		if cfg == nil {
			cfg = aws.NewConfig()
		}
		return sthree.New(sthree.Bucket(loc.Bucket), sthree.Prefix(loc.Prefix), sthree.AWSConfig(cfg), sthree.Logger(o.Logger))
	case SchemeGCS:
		return gcs.New(ctx, loc.Bucket, gcs.Prefix(loc.Prefix), gcs.CredentialsFile(o.CredentialsFile), gcs.Logger(o.Logger))
	default:
		return nil, status.ErrUnsupportedScheme.WrapMessage("%q", loc.Scheme)
	}
}
