// Package resource defines the contract every kind of workspace resource implements,
// and the closed set of resource types:
//
//   - git: a separate git repository, checked out at a local path
//   - git-subdirectory: a subdirectory of the workspace git repository
//   - file: an unmanaged local directory, fingerprinted with a hash tree
//   - remote: a local mirror of some remote object storage (s3://, gs://, file://)
//
// Snapshots and restores follow a two-phase protocol: the engine prechecks every resource
// before mutating any of them. Prechecks never mutate anything.
//
// Optional capabilities are exposed by extra interfaces: LocalState, Syncer, Results,
// Fingerprinter and Stater.
package resource
