/*
Package dataworkspaces makes data science experiments reproducible.

A workspace tracks resources (source data, code, intermediate data and results),
takes immutable snapshots of their combined state, restores them, and records the
lineage of the steps which produced each resource.

This package exposes the programmatic API. The command line tool lives in cmd/dws.
*/
package dataworkspaces
