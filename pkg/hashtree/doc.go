// Package hashtree computes and verifies fingerprints of directory trees.
//
// A signature is a digest over the sorted list of (relative path, content hash) pairs
// found below a root directory, or (relative path, size) pairs in size mode.
// Signatures do not depend on traversal order nor on modification times.
//
// Computed listings are cached in a store keyed by their own signature, so fingerprinting
// unchanged content twice is idempotent.
package hashtree
