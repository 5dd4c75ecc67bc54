// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"
)

const (
	// NoOverWrite refuses to replace an existing object on Put
	NoOverWrite = true

	// OverWrite replaces any existing object on Put
	OverWrite = false
)

// MaxObjectSizeInMemory is the largest object ReadTee accepts to buffer
const MaxObjectSizeInMemory = 2 * 1024 * 1024 * 1024 // 2 gigs

// Store implementations know how to write entries to a K/V model.Store.
//
// Typically this is something file system-like. Examples are S3, local FS, NFS, ...
// Implementations of this interface are assumed to be fairly simple.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(context.Context, string, io.Reader, bool) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
	Clear(context.Context) error
}

// ObjectInfo describes a stored object, as returned by listings
type ObjectInfo struct {
	Key  string `json:"key" yaml:"key"`
	Size int64  `json:"size" yaml:"size"`
}

// Lister knows how to list objects under a key prefix, with their size.
//
// Listings are returned sorted by key.
type Lister interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
