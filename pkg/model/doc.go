// Package model describes the base objects manipulated by data workspaces.
//
// The package exposes a model for metadata.
//
// The object model for a data workspace is composed of:
//
//  Workspace:
//    The root configuration unit, tracking a list of resources and a history of snapshots.
//
//  Resources:
//    A named, typed unit of data, code or results, with its own versioning and sync strategy.
//    A resource has a role: source-data, code, intermediate-data or results.
//
//  Snapshots:
//    An immutable, numbered and tagged point in time capture of the state of every resource.
//    This is analogous to a commit in git, across several repositories.
//
//  Lineage:
//    The recorded provenance of the steps which transformed some resources into others.
package model
