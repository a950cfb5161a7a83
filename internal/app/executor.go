package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gourmetlog/report-service/internal/platform/logging"
)

// Destructive use cases run as five steps, each allowed to stop the run:
//
//  1. VALIDATE  check inputs and preconditions; nothing has changed yet
//  2. PERFORM   make the change
//  3. VERIFY    confirm the change actually happened
//  4. ARCHIVE   record the outcome (metrics, audit)
//  5. RESPOND   shape the result for the caller
//
// Deleting a report validates the id and loads the report, performs the
// image cleanup and row delete, verifies a row was removed, and archives a
// deletion count.

// ExecutionStep names a step.
type ExecutionStep string

const (
	StepValidate ExecutionStep = "validate"
	StepPerform  ExecutionStep = "perform"
	StepVerify   ExecutionStep = "verify"
	StepArchive  ExecutionStep = "archive"
	StepRespond  ExecutionStep = "respond"
)

// ExecutionError records the step a failure happened in. It unwraps to the
// cause, so domain sentinels still match with errors.Is.
type ExecutionError struct {
	Step    ExecutionStep
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Step, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s failed: %s", e.Step, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

func newExecutionError(step ExecutionStep, message string, cause error) error {
	return &ExecutionError{Step: step, Message: message, Cause: cause}
}

// Executor runs operations step by step with logging.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates an executor. A nil logger means slog.Default().
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{logger: logger}
}

// Operation holds the step functions. Any of them may be nil and is then
// skipped. I is the input, P what Perform produced, V what Verify accepted,
// O what the caller gets back.
type Operation[I, P, V, O any] struct {
	// Name identifies the operation in logs.
	Name string

	Validate func(ctx context.Context, input I) error
	Perform  func(ctx context.Context, input I) (P, error)
	Verify   func(ctx context.Context, input I, performed P) (V, error)
	Archive  func(ctx context.Context, input I, verified V) error
	Respond  func(ctx context.Context, input I, verified V) (O, error)
}

type executionContext[I, P, V, O any] struct {
	logger *slog.Logger
	op     Operation[I, P, V, O]
	input  I
}

func (e *executionContext[I, P, V, O]) runValidate(ctx context.Context) error {
	if e.op.Validate == nil {
		return nil
	}

	if err := e.op.Validate(ctx, e.input); err != nil {
		e.logger.WarnContext(ctx, "validation failed", slog.Any("error", err))

		return newExecutionError(StepValidate, "input validation failed", err)
	}

	return nil
}

func (e *executionContext[I, P, V, O]) runPerform(ctx context.Context) (P, error) {
	var zero P

	if e.op.Perform == nil {
		return zero, nil
	}

	performed, err := e.op.Perform(ctx, e.input)
	if err != nil {
		e.logger.ErrorContext(ctx, "perform failed", slog.Any("error", err))

		return zero, newExecutionError(StepPerform, "operation failed", err)
	}

	return performed, nil
}

func (e *executionContext[I, P, V, O]) runVerify(ctx context.Context, performed P) (V, error) {
	var zero V

	if e.op.Verify == nil {
		return zero, nil
	}

	verified, err := e.op.Verify(ctx, e.input, performed)
	if err != nil {
		e.logger.WarnContext(ctx, "verification failed", slog.Any("error", err))

		return zero, newExecutionError(StepVerify, "verification failed", err)
	}

	return verified, nil
}

func (e *executionContext[I, P, V, O]) runArchive(ctx context.Context, verified V) error {
	if e.op.Archive == nil {
		return nil
	}

	if err := e.op.Archive(ctx, e.input, verified); err != nil {
		e.logger.ErrorContext(ctx, "archive failed", slog.Any("error", err))

		return newExecutionError(StepArchive, "recording outcome failed", err)
	}

	return nil
}

func (e *executionContext[I, P, V, O]) runRespond(ctx context.Context, verified V) (O, error) {
	var zero O

	if e.op.Respond == nil {
		return zero, nil
	}

	result, err := e.op.Respond(ctx, e.input, verified)
	if err != nil {
		return zero, newExecutionError(StepRespond, "building response failed", err)
	}

	return result, nil
}

// Execute runs op on input. The first failing step ends the run with an
// *ExecutionError.
func Execute[I, P, V, O any](ctx context.Context, exec *Executor, op Operation[I, P, V, O], input I) (O, error) {
	var zero O

	logger := logging.FromContextOr(ctx, exec.logger).With(slog.String("operation", op.Name))
	start := time.Now()

	ec := &executionContext[I, P, V, O]{logger: logger, op: op, input: input}

	if err := ec.runValidate(ctx); err != nil {
		return zero, err
	}

	performed, err := ec.runPerform(ctx)
	if err != nil {
		return zero, err
	}

	verified, err := ec.runVerify(ctx, performed)
	if err != nil {
		return zero, err
	}

	if err := ec.runArchive(ctx, verified); err != nil {
		return zero, err
	}

	result, err := ec.runRespond(ctx, verified)
	if err != nil {
		return zero, err
	}

	logger.InfoContext(ctx, "operation completed", slog.Duration("duration", time.Since(start)))

	return result, nil
}

// GetExecutionStep returns the step an execution error happened in.
func GetExecutionStep(err error) (ExecutionStep, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Step, true
	}

	return "", false
}
