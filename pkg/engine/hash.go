package engine

import (
	"encoding/binary"
	"encoding/hex"
	"hash"

	"github.com/kisdma/data-workspaces-core/pkg/model"
	blake2b "github.com/minio/blake2b-simd"
)

const snapshotHashHeader = "dws-snapshot/1"

// snapshotHash digests the restore hashes of all resources, in declaration order
func snapshotHash(names []string, restoreHashes map[string]string) string {
	h := blake2b.New256()
	writeField(h, snapshotHashHeader)
	for _, name := range names {
		writeField(h, name)
		writeField(h, restoreHashes[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, s string) {
	var l [8]byte
	binary.BigEndian.PutUint64(l[:], uint64(len(s)))
	_, _ = h.Write(l[:])
	_, _ = h.Write([]byte(s))
}

// snapshotName is the name under which results of a snapshot are archived
func snapshotName(tag string, number int) string {
	return model.Snapshot{Number: number, Tags: tagList(tag)}.Name()
}

func tagList(tag string) []string {
	if tag == "" {
		return []string{}
	}
	return []string{tag}
}
