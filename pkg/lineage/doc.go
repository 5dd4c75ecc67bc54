// Package lineage records the provenance of the computational steps which
// produce workspace resources.
//
// A step runs inside a capture session, which declares its inputs and outputs.
// When the session ends, every output gets a record describing the step, including
// the certificates of its inputs at the time the step started. A step which fails,
// or panics, is recorded as STEP_FAILED before the failure reaches the caller.
//
// Current records are kept per resource in the workspace metadata store. They are
// copied alongside each snapshot, and merged into a manifest archived with the
// snapshot results.
package lineage
