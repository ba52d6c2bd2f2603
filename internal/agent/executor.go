package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/assigny/clinic-agent/internal/observability/metrics"
	"github.com/assigny/clinic-agent/pkg/logging"
)

// OutcomeStatus is the normalized result taxonomy of a capability execution.
type OutcomeStatus string

const (
	OutcomeOK              OutcomeStatus = "ok"
	OutcomeCapabilityError OutcomeStatus = "capability_error"
	OutcomeValidationError OutcomeStatus = "validation_error"
	OutcomeNotFound        OutcomeStatus = "not_found"
	OutcomeForbidden       OutcomeStatus = "forbidden"
)

// Outcome is produced by the executor and consumed only by the composer. It is
// never shown raw to the end user.
type Outcome struct {
	Status     OutcomeStatus
	Capability string
	Data       any
	Message    string
	// Warnings records side effects that failed after the primary action
	// succeeded (an unsent confirmation email, a missed calendar write).
	// The primary action is not rolled back; it is not owned here.
	Warnings []string
}

// timeoutMessage marks an execution that may have committed server-side. The
// composer must not claim nothing changed when it sees this outcome.
const timeoutMessage = "the backend did not respond in time"

// NotFoundError marks a missing domain entity (doctor, patient, appointment).
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// ConflictError marks a constraint violation such as a double booking.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// PartialResult lets a run function report success with degraded side effects.
type PartialResult struct {
	Data     any
	Warnings []string
}

// Executor runs exactly one capability per call: registry lookup, argument
// re-validation, an independent role re-check, then the collaborator
// invocation under its own timeout. Retry policy belongs to collaborators.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	logger   *logging.Logger
	metrics  *metrics.AgentMetrics
}

func NewExecutor(registry *Registry, timeout time.Duration, logger *logging.Logger, m *metrics.AgentMetrics) *Executor {
	if registry == nil {
		panic("agent: registry cannot be nil")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Executor{
		registry: registry,
		timeout:  timeout,
		logger:   logger,
		metrics:  m,
	}
}

// Execute runs the named capability for the role and maps every failure mode
// into the Outcome taxonomy. Collaborator faults never propagate past here.
func (e *Executor) Execute(ctx context.Context, role Role, name string, args Args) Outcome {
	out := e.execute(ctx, role, name, args)
	e.metrics.ObserveExecution(out.Capability, string(out.Status))
	if out.Status != OutcomeOK {
		e.logger.Info("capability execution did not succeed",
			"capability", out.Capability,
			"status", out.Status,
			"message", out.Message,
		)
	}
	return out
}

func (e *Executor) execute(ctx context.Context, role Role, name string, args Args) Outcome {
	// The router proposed this name, but the registry is the authority.
	descriptor, err := e.registry.Get(name)
	if err != nil {
		return Outcome{
			Status:     OutcomeCapabilityError,
			Capability: name,
			Message:    fmt.Sprintf("capability %q is not registered", name),
		}
	}

	if !descriptor.AllowsRole(role) {
		return Outcome{
			Status:     OutcomeForbidden,
			Capability: name,
			Message:    fmt.Sprintf("role %s may not invoke %s", role, name),
		}
	}

	validated, err := descriptor.ValidateArgs(args)
	if err != nil {
		return Outcome{
			Status:     OutcomeValidationError,
			Capability: name,
			Message:    err.Error(),
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, err := descriptor.Run(runCtx, validated)
	if err != nil {
		return e.mapRunError(name, err)
	}

	if partial, ok := result.(PartialResult); ok {
		return Outcome{
			Status:     OutcomeOK,
			Capability: name,
			Data:       partial.Data,
			Warnings:   partial.Warnings,
		}
	}

	return Outcome{
		Status:     OutcomeOK,
		Capability: name,
		Data:       result,
	}
}

func (e *Executor) mapRunError(name string, err error) Outcome {
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return Outcome{
			Status:     OutcomeNotFound,
			Capability: name,
			Message:    notFound.Msg,
		}
	}

	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return Outcome{
			Status:     OutcomeCapabilityError,
			Capability: name,
			Message:    conflict.Msg,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Outcome{
			Status:     OutcomeCapabilityError,
			Capability: name,
			Message:    timeoutMessage,
		}
	}

	return Outcome{
		Status:     OutcomeCapabilityError,
		Capability: name,
		Message:    err.Error(),
	}
}
