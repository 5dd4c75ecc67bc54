// Package workspace manages the metadata of a data workspace: its configuration,
// resources and snapshot history.
//
// Metadata are JSON documents under the .dataworkspace directory at the root of the workspace.
// Changes are staged in a transaction, then committed with atomic writes.
// When the workspace directory is a git repository, replicated metadata are committed with Save.
package workspace
