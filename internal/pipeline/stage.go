package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/TobiSchelling/bizscout/internal/business"
)

// FailureKind classifies a stage failure.
type FailureKind string

const (
	KindDiscovery   FailureKind = "discovery"
	KindExtraction  FailureKind = "extraction"
	KindResolution  FailureKind = "resolution"
	KindScoring     FailureKind = "scoring"
	KindPersistence FailureKind = "persistence"
	KindValidation  FailureKind = "validation"
)

// StageError is a failed stage. The stage's empty value is used in its place.
type StageError struct {
	Kind  FailureKind
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Failure converts the error for a record's failure list.
func (e *StageError) Failure() business.Failure {
	return business.Failure{Stage: e.Stage, Kind: string(e.Kind), Message: e.Err.Error()}
}

// ValidationError is returned for a request that cannot be run.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Kind is always KindValidation.
func (e *ValidationError) Kind() FailureKind { return KindValidation }

// Outcome is a stage's value, or its empty value and the failure.
type Outcome[T any] struct {
	Value T
	Err   *StageError
}

// OK reports whether the stage succeeded.
func (o Outcome[T]) OK() bool { return o.Err == nil }

type stageOpts struct {
	name    string
	kind    FailureKind
	timeout time.Duration
	subject string
}

// runStage runs fn under the stage timeout. Errors and panics become a
// StageError and the empty value.
func runStage[T any](ctx context.Context, step stageOpts, empty T, fn func(context.Context) (T, error)) (out Outcome[T]) {
	if step.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.timeout)
		defer cancel()
	}

	fail := func(err error) Outcome[T] {
		zap.L().Warn("stage failed",
			zap.String("business", step.subject),
			zap.String("stage", step.name),
			zap.String("kind", string(step.kind)),
			zap.Error(err))
		return Outcome[T]{Value: empty, Err: &StageError{Kind: step.kind, Stage: step.name, Err: err}}
	}

	defer func() {
		if r := recover(); r != nil {
			out = fail(eris.Errorf("panic: %v", r))
		}
	}()

	v, err := fn(ctx)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = eris.Wrapf(err, "timed out after %s", step.timeout)
		}
		return fail(err)
	}
	return Outcome[T]{Value: v}
}
