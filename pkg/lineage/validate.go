package lineage

import (
	"context"
	"fmt"
	"strings"

	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/status"
)

// Report of the lineage of a set of references, and of their dependency closure
type Report struct {
	// Missing references have no record at all
	Missing []model.ResourceRef `json:"missing,omitempty" yaml:"missing,omitempty"`

	// Placeholders are pre-existing inputs, with no known producer
	Placeholders []model.ResourceRef `json:"placeholders,omitempty" yaml:"placeholders,omitempty"`

	// Failed references were produced by a step which failed
	Failed []model.ResourceRef `json:"failed,omitempty" yaml:"failed,omitempty"`

	// InProgress references are produced by a step which has not completed, or crashed before recording its outcome
	InProgress []model.ResourceRef `json:"in_progress,omitempty" yaml:"in_progress,omitempty"`

	// Stale references were produced from inputs which have since changed
	Stale []model.ResourceRef `json:"stale,omitempty" yaml:"stale,omitempty"`

	// Checked counts the references visited
	Checked int `json:"checked" yaml:"checked"`
}

// Warnings counts references with no record, and placeholders when they are not accepted
func (r *Report) Warnings(verifyNoPlaceholders bool) int {
	n := len(r.Missing)
	if verifyNoPlaceholders {
		n += len(r.Placeholders)
	}
	return n
}

// Err reports failed or unfinished steps
func (r *Report) Err() error {
	if len(r.Failed) == 0 && len(r.InProgress) == 0 {
		return nil
	}
	var parts []string
	if len(r.Failed) > 0 {
		parts = append(parts, "failed: "+joinRefs(r.Failed))
	}
	if len(r.InProgress) > 0 {
		parts = append(parts, "not completed: "+joinRefs(r.InProgress))
	}
	return status.ErrStepFailed.WrapMessage("%s", strings.Join(parts, "; "))
}

func joinRefs(refs []model.ResourceRef) string {
	s := make([]string, 0, len(refs))
	for _, r := range refs {
		s = append(s, r.String())
	}
	return strings.Join(s, ", ")
}

// Check walks the dependency closure of some references
func (s *Store) Check(ctx context.Context, refs []model.ResourceRef) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &Report{}
	cache := make(map[string][]model.ResourceLineage)
	load := func(name string) ([]model.ResourceLineage, error) {
		if records, ok := cache[name]; ok {
			return records, nil
		}
		records, err := s.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		cache[name] = records
		return records, nil
	}

	visited := make(map[model.ResourceRef]struct{})
	queue := append([]model.ResourceRef{}, refs...)
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		if _, ok := visited[ref]; ok {
			continue
		}
		visited[ref] = struct{}{}
		report.Checked++

		records, err := load(ref.Name)
		if err != nil {
			return nil, err
		}
		rec := covering(records, ref)
		if rec == nil {
			report.Missing = append(report.Missing, ref)
			continue
		}
		switch rec.State {
		case model.Placeholder:
			report.Placeholders = append(report.Placeholders, ref)
			continue
		case model.StepFailed:
			report.Failed = append(report.Failed, ref)
		case model.StepInProgress:
			report.InProgress = append(report.InProgress, ref)
		}
		if rec.Step == nil {
			continue
		}
		for _, in := range rec.Step.Inputs {
			inRecords, err := load(in.Ref.Name)
			if err != nil {
				return nil, err
			}
			current := covering(inRecords, in.Ref)
			if current != nil && current.Certificate != in.Certificate && !sameRun(current, rec) {
				report.Stale = append(report.Stale, ref)
			}
			queue = append(queue, in.Ref)
		}
	}
	return report, nil
}

// sameRun tells if two records were written by the same step execution, as for in-place updates
func sameRun(a, b *model.ResourceLineage) bool {
	return a.Step != nil && b.Step != nil && a.Step.RunID == b.Step.RunID
}

// Validate counts the references, among some references and their dependency closure, without a record,
// and, when verifyNoPlaceholders is set, those whose record is a placeholder.
//
// Steps which failed or never completed are not counted: they are reported as an ErrStepFailed error.
func (s *Store) Validate(ctx context.Context, refs []model.ResourceRef, verifyNoPlaceholders bool) (int, error) {
	report, err := s.Check(ctx, refs)
	if err != nil {
		return 0, err
	}
	return report.Warnings(verifyNoPlaceholders), report.Err()
}

// Chain reconstructs the steps which produced a reference, in dependency order: producers of inputs come first
func (s *Store) Chain(ctx context.Context, ref model.ResourceRef) ([]model.StepLineage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chain []model.StepLineage
	done := make(map[string]struct{})
	visiting := make(map[model.ResourceRef]struct{})

	var visit func(ref model.ResourceRef) error
	visit = func(ref model.ResourceRef) error {
		if _, ok := visiting[ref]; ok {
			return nil
		}
		visiting[ref] = struct{}{}
		rec, err := s.Get(ctx, ref)
		if err != nil {
			return err
		}
		if rec == nil || rec.Step == nil {
			return nil
		}
		if _, ok := done[rec.Step.RunID]; ok {
			return nil
		}
		for _, in := range rec.Step.Inputs {
			if err := visit(in.Ref); err != nil {
				return err
			}
		}
		if _, ok := done[rec.Step.RunID]; !ok {
			done[rec.Step.RunID] = struct{}{}
			chain = append(chain, *rec.Step)
		}
		return nil
	}
	if err := visit(ref); err != nil {
		return nil, fmt.Errorf("lineage chain of %s: %w", ref, err)
	}
	return chain, nil
}
