package lineage

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/status"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// StepOptions declare a step before it runs
type StepOptions struct {
	Name       string
	Parameters map[string]interface{}
	Inputs     []model.ResourceRef
	Outputs    []model.ResourceRef
	Command    []string
}

// Session captures the lineage of one step execution
type Session struct {
	store   *Store
	step    model.StepLineage
	outputs []model.ResourceRef
	closed  bool
	l       *zap.Logger
}

// RunID is the unique identifier of this step execution
func (s *Session) RunID() string {
	return s.step.RunID
}

// Step is the record of the step, as captured so far
func (s *Session) Step() model.StepLineage {
	return s.step
}

// SetParameter adds or replaces a step parameter
func (s *Session) SetParameter(key string, value interface{}) {
	if s.step.Parameters == nil {
		s.step.Parameters = make(map[string]interface{})
	}
	s.step.Parameters[key] = value
}

// AddInput declares an input discovered while the step runs
func (s *Session) AddInput(ctx context.Context, ref model.ResourceRef) error {
	for _, in := range s.step.Inputs {
		if in.Ref == ref {
			return nil
		}
	}
	cert, err := s.store.certify(ctx, ref)
	if err != nil {
		return err
	}
	s.step.Inputs = append(s.step.Inputs, model.ResourceCert{Ref: ref, Certificate: cert})
	return nil
}

// AddOutput declares an output location. Outputs nested within a declared output are merged into it.
func (s *Session) AddOutput(ref model.ResourceRef) {
	kept := s.outputs[:0]
	for _, out := range s.outputs {
		if out.Contains(ref) {
			return
		}
		if !ref.Contains(out) {
			kept = append(kept, out)
		}
	}
	s.outputs = append(kept, ref)
}

// AddOutputPath declares an output by its local path
func (s *Session) AddOutputPath(path string) error {
	if s.store.resolver == nil {
		return status.ErrNotSupported.WrapMessage("cannot map local path %s without a workspace", path)
	}
	ref, err := s.store.resolver.MapLocalPath(path)
	if err != nil {
		return err
	}
	s.AddOutput(ref)
	return nil
}

// AddInputPath declares an input by its local path
func (s *Session) AddInputPath(ctx context.Context, path string) error {
	if s.store.resolver == nil {
		return status.ErrNotSupported.WrapMessage("cannot map local path %s without a workspace", path)
	}
	ref, err := s.store.resolver.MapLocalPath(path)
	if err != nil {
		return err
	}
	return s.AddInput(ctx, ref)
}

// certify an input: by the certificate of its current record, or else by a new placeholder record
func (s *Store) certify(ctx context.Context, ref model.ResourceRef) (model.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.Get(ctx, ref)
	if err != nil {
		return model.Certificate{}, err
	}
	if rec != nil {
		return rec.Certificate, nil
	}

	cert := model.Certificate{Kind: model.CertPlaceholder}
	if s.resolver != nil {
		fp, err := s.resolver.Fingerprint(ctx, ref)
		switch {
		case err == nil:
			cert.Value = fp
		case errors.Is(err, status.ErrResourceNotFound):
			return model.Certificate{}, status.ErrInvalidArgument.Wrap(err)
		default:
			s.l.Warn("cannot fingerprint input", zap.Stringer("ref", ref), zap.Error(err))
		}
	}
	placeholder := model.ResourceLineage{Ref: ref, State: model.Placeholder, Certificate: cert}
	if err := s.replace(ctx, ref.Name, []model.ResourceLineage{placeholder}); err != nil {
		return model.Certificate{}, err
	}
	s.l.Debug("placeholder lineage", zap.Stringer("ref", ref), zap.String("fingerprint", cert.Value))
	return cert, nil
}

// Open a capture session: inputs are certified, and the declared outputs are marked STEP_IN_PROGRESS.
//
// The session must be closed with the outcome of the step. Capture does this in all cases.
func (s *Store) Open(ctx context.Context, opts StepOptions) (*Session, error) {
	if opts.Name == "" {
		return nil, status.ErrInvalidArgument.WrapMessage("a step name is required")
	}
	sess := &Session{
		store: s,
		step: model.StepLineage{
			Name:       opts.Name,
			RunID:      ksuid.New().String(),
			Parameters: opts.Parameters,
			Inputs:     []model.ResourceCert{},
			Command:    opts.Command,
			StartTime:  s.now().UTC(),
			Status:     model.StepInProgress,
		},
	}
	sess.l = s.l.With(zap.String("step", opts.Name), zap.String("run", sess.step.RunID))
	for _, in := range opts.Inputs {
		if err := sess.AddInput(ctx, in); err != nil {
			return nil, err
		}
	}
	for _, out := range opts.Outputs {
		sess.AddOutput(out)
	}
	if err := s.record(ctx, sess.step, sess.outputs); err != nil {
		return nil, err
	}
	sess.l.Info("step started", zap.Int("inputs", len(sess.step.Inputs)), zap.Int("outputs", len(sess.outputs)))
	return sess, nil
}

// Close ends the session with the outcome of the step, and records it for every output.
//
// The step error is returned unchanged. Closing twice has no effect.
func (s *Session) Close(ctx context.Context, stepErr error) error {
	if s.closed {
		return stepErr
	}
	s.closed = true
	s.step.EndTime = s.store.now().UTC()
	s.step.Outputs = append([]model.ResourceRef{}, s.outputs...)
	if stepErr != nil {
		s.step.Status = model.StepFailed
		s.step.Error = stepErr.Error()
	} else {
		s.step.Status = model.StepComplete
	}

	err := s.store.record(ctx, s.step, s.outputs)
	if stepErr != nil {
		if err != nil {
			s.l.Error("cannot record failed step", zap.NamedError("step_error", stepErr), zap.Error(err))
		}
		s.l.Warn("step failed", zap.Error(stepErr))
		return stepErr
	}
	if err != nil {
		return err
	}
	s.l.Info("step complete", zap.Duration("duration", s.step.EndTime.Sub(s.step.StartTime)))
	return nil
}

// record the step state for its outputs
func (s *Store) record(ctx context.Context, step model.StepLineage, outputs []model.ResourceRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byResource := make(map[string][]model.ResourceLineage)
	var names []string
	for _, out := range outputs {
		st := step
		if _, ok := byResource[out.Name]; !ok {
			names = append(names, out.Name)
		}
		byResource[out.Name] = append(byResource[out.Name], model.ResourceLineage{
			Ref:         out,
			State:       step.Status,
			Certificate: model.Certificate{Kind: model.CertStep, Value: step.RunID},
			Step:        &st,
		})
	}
	for _, name := range names {
		if err := s.replace(ctx, name, byResource[name]); err != nil {
			return err
		}
	}
	return nil
}

// Capture runs a step within a capture session.
//
// Whatever the outcome, the declared outputs get a record: STEP_COMPLETE when fn succeeds,
// STEP_FAILED when it returns an error or panics. Errors are returned unchanged, and panics
// are propagated once recorded, with the stack of the panicking goroutine.
func (s *Store) Capture(ctx context.Context, opts StepOptions, fn func(*Session) error) (err error) {
	sess, err := s.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			sess.step.Stack = string(debug.Stack())
			_ = sess.Close(ctx, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()
	return sess.Close(ctx, fn(sess))
}
