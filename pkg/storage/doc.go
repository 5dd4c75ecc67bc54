// Copyright © 2018 One Concern

// Package storage provides interface to handle backend storage objects.
//
// This package supports the following backends:
//   - GCS (Google)
//   - S3 (AWS)
//   - local file system
//
// Workspaces use a local store for their metadata and for the hash caches of
// unmanaged resources. Remote mirrors are addressed through any backend,
// resolved from a URL by the remote subpackage.
package storage
