package model

import "time"

// LineageState is the state of the lineage of a resource while runs are in progress
type LineageState string

// Lineage states.
//
// An absent record means NO_LINEAGE. A STEP_FAILED record is an explicit marker,
// distinct from absence: the producing step is known, and it crashed.
const (
	NoLineage      LineageState = "NO_LINEAGE"
	Placeholder    LineageState = "PLACEHOLDER"
	StepInProgress LineageState = "STEP_IN_PROGRESS"
	StepComplete   LineageState = "STEP_COMPLETE"
	StepFailed     LineageState = "STEP_FAILED"
)

// CertificateKind qualifies the value of a certificate
type CertificateKind string

// Kinds of certificates
const (
	// CertHash certifies a resource state by a restore hash or fingerprint
	CertHash CertificateKind = "hash"
	// CertPlaceholder certifies a pre-existing input, with the best fingerprint available at capture time
	CertPlaceholder CertificateKind = "placeholder"
	// CertStep certifies an output by the id of the run which produced it
	CertStep CertificateKind = "step"
)

// Certificate identifies a version of some resource
type Certificate struct {
	Kind  CertificateKind `json:"kind" yaml:"kind"`
	Value string          `json:"value" yaml:"value"`
}

// ResourceCert pairs a reference with its certificate at capture time
type ResourceCert struct {
	Ref         ResourceRef `json:"ref" yaml:"ref"`
	Certificate Certificate `json:"certificate" yaml:"certificate"`
}

// StepLineage describes one execution of a computational step
type StepLineage struct {
	Name       string                 `json:"step_name" yaml:"step_name"`
	RunID      string                 `json:"run_id" yaml:"run_id"`
	Parameters map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Inputs     []ResourceCert         `json:"inputs" yaml:"inputs"`
	Outputs    []ResourceRef          `json:"outputs" yaml:"outputs"`
	StartTime  time.Time              `json:"start_time" yaml:"start_time"`
	EndTime    time.Time              `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	Status     LineageState           `json:"status" yaml:"status"`
	Error      string                 `json:"error,omitempty" yaml:"error,omitempty"`
	Stack      string                 `json:"stack,omitempty" yaml:"stack,omitempty"`
	Command    []string               `json:"command_line,omitempty" yaml:"command_line,omitempty"`
	_          struct{}
}

// ResourceLineage is the lineage of a resource (or a subpath of it)
type ResourceLineage struct {
	Ref         ResourceRef  `json:"ref" yaml:"ref"`
	State       LineageState `json:"state" yaml:"state"`
	Certificate Certificate  `json:"certificate" yaml:"certificate"`
	Step        *StepLineage `json:"step,omitempty" yaml:"step,omitempty"`
	_           struct{}
}

// LineageFile is the persisted form of a set of lineage records
type LineageFile struct {
	Lineages []ResourceLineage `json:"lineages" yaml:"lineages"`
}
