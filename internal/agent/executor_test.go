package agent

import (
	"context"
	"errors"
	"testing"
	"time"
)

func executorTestRegistry(t *testing.T, run RunFunc) *Registry {
	t.Helper()
	reg := NewRegistry()
	err := reg.Register(Descriptor{
		Name:        "book_appointment",
		Description: "Book an appointment.",
		Schema: map[string]ArgSpec{
			"doctor_name": {Type: ArgString, Required: true},
		},
		AllowedRoles: []Role{RolePatient},
		Run:          run,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.Seal()
	return reg
}

func TestExecuteUnknownCapability(t *testing.T) {
	exec := NewExecutor(executorTestRegistry(t, noopRun), time.Second, nil, nil)

	out := exec.Execute(context.Background(), RolePatient, "launch_rockets", nil)
	if out.Status != OutcomeCapabilityError {
		t.Errorf("status = %s, want capability_error", out.Status)
	}
}

func TestExecuteRoleRecheck(t *testing.T) {
	called := false
	reg := executorTestRegistry(t, func(_ context.Context, _ Args) (any, error) {
		called = true
		return nil, nil
	})
	exec := NewExecutor(reg, time.Second, nil, nil)

	out := exec.Execute(context.Background(), RoleDoctor, "book_appointment", Args{"doctor_name": "Ahuja"})
	if out.Status != OutcomeForbidden {
		t.Errorf("status = %s, want forbidden", out.Status)
	}
	if called {
		t.Error("run function must not execute for a forbidden role")
	}
}

func TestExecuteValidationError(t *testing.T) {
	exec := NewExecutor(executorTestRegistry(t, noopRun), time.Second, nil, nil)

	out := exec.Execute(context.Background(), RolePatient, "book_appointment", Args{})
	if out.Status != OutcomeValidationError {
		t.Errorf("status = %s, want validation_error", out.Status)
	}
}

func TestExecuteErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		runErr error
		want   OutcomeStatus
	}{
		{"not found", &NotFoundError{Msg: "no such doctor"}, OutcomeNotFound},
		{"conflict", &ConflictError{Msg: "slot already booked"}, OutcomeCapabilityError},
		{"generic", errors.New("db exploded"), OutcomeCapabilityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := executorTestRegistry(t, func(_ context.Context, _ Args) (any, error) {
				return nil, tt.runErr
			})
			exec := NewExecutor(reg, time.Second, nil, nil)

			out := exec.Execute(context.Background(), RolePatient, "book_appointment", Args{"doctor_name": "Ahuja"})
			if out.Status != tt.want {
				t.Errorf("status = %s, want %s", out.Status, tt.want)
			}
		})
	}
}

func TestExecuteDoubleBookingConflict(t *testing.T) {
	reg := executorTestRegistry(t, func(_ context.Context, _ Args) (any, error) {
		return nil, &ConflictError{Msg: "that time is already booked for this doctor"}
	})
	exec := NewExecutor(reg, time.Second, nil, nil)

	out := exec.Execute(context.Background(), RolePatient, "book_appointment", Args{"doctor_name": "Ahuja"})
	if out.Status != OutcomeCapabilityError {
		t.Fatalf("status = %s, want capability_error", out.Status)
	}
	if out.Message == "" {
		t.Error("conflict outcome should carry the collaborator's message")
	}
}

func TestExecuteTimeout(t *testing.T) {
	reg := executorTestRegistry(t, func(ctx context.Context, _ Args) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	exec := NewExecutor(reg, 10*time.Millisecond, nil, nil)

	out := exec.Execute(context.Background(), RolePatient, "book_appointment", Args{"doctor_name": "Ahuja"})
	if out.Status != OutcomeCapabilityError {
		t.Fatalf("status = %s, want capability_error", out.Status)
	}
	if out.Message != "the backend did not respond in time" {
		t.Errorf("message = %q", out.Message)
	}
}

func TestExecutePartialResult(t *testing.T) {
	reg := executorTestRegistry(t, func(_ context.Context, _ Args) (any, error) {
		return PartialResult{
			Data:     map[string]any{"appointment_id": 41},
			Warnings: []string{"the confirmation email could not be sent"},
		}, nil
	})
	exec := NewExecutor(reg, time.Second, nil, nil)

	out := exec.Execute(context.Background(), RolePatient, "book_appointment", Args{"doctor_name": "Ahuja"})
	if out.Status != OutcomeOK {
		t.Fatalf("partial success must still be ok, got %s", out.Status)
	}
	if len(out.Warnings) != 1 {
		t.Errorf("warnings = %v", out.Warnings)
	}
}

func TestExecuteOK(t *testing.T) {
	reg := executorTestRegistry(t, func(_ context.Context, args Args) (any, error) {
		return map[string]any{"doctor": args["doctor_name"]}, nil
	})
	exec := NewExecutor(reg, time.Second, nil, nil)

	out := exec.Execute(context.Background(), RolePatient, "book_appointment", Args{"doctor_name": "Ahuja"})
	if out.Status != OutcomeOK {
		t.Fatalf("status = %s", out.Status)
	}
	data, ok := out.Data.(map[string]any)
	if !ok || data["doctor"] != "Ahuja" {
		t.Errorf("data = %v", out.Data)
	}
}
