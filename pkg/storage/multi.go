// Copyright © 2018 One Concern

package storage

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sort"
	"strings"

	"github.com/kisdma/data-workspaces-core/pkg/storage/status"
)

// ReadTee reads from a source and duplicates the output to another destination store
func ReadTee(ctx context.Context, sStore Store, source string, dStore Store, destination string) ([]byte, error) {
	reader, err := sStore.Get(ctx, source)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	object, err := ioutil.ReadAll(io.LimitReader(reader, MaxObjectSizeInMemory+1))
	if err != nil {
		return nil, err
	}
	if len(object) > MaxObjectSizeInMemory {
		return nil, status.ErrObjectTooBig.WrapMessage("object %q", source)
	}
	err = dStore.Put(ctx, destination, bytes.NewReader(object), OverWrite)
	if err != nil {
		return nil, err
	}
	return object, err
}

// Copy streams all objects under prefix from a source store to a destination store,
// keeping the same keys. It returns the number of copied objects.
func Copy(ctx context.Context, src Store, dst Store, prefix string) (int, error) {
	keys, err := ListKeys(ctx, src, prefix)
	if err != nil {
		return 0, err
	}
	copied := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		if err := copyOne(ctx, src, dst, key); err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}

func copyOne(ctx context.Context, src Store, dst Store, key string) error {
	rdr, err := src.Get(ctx, key)
	if err != nil {
		return err
	}
	defer rdr.Close()
	return dst.Put(ctx, key, rdr, OverWrite)
}

// ListKeys returns the sorted keys under prefix, using the store's Lister capability when available
func ListKeys(ctx context.Context, store Store, prefix string) ([]string, error) {
	if lister, ok := store.(Lister); ok {
		infos, err := lister.List(ctx, prefix)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(infos))
		for _, info := range infos {
			keys = append(keys, info.Key)
		}
		return keys, nil
	}
	all, err := store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for _, key := range all {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// ReadAll reads a whole object from a store
func ReadAll(ctx context.Context, store Store, key string) ([]byte, error) {
	rdr, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()
	return ioutil.ReadAll(rdr)
}
