package agent

import (
	"context"
	"strings"
	"testing"
	"time"
)

type bookingData struct {
	AppointmentID int64  `json:"appointment_id"`
	DoctorName    string `json:"doctor_name"`
	StartAt       string `json:"start_at"`
}

func (b bookingData) Summarize() string {
	return "Appointment " + b.DoctorName + " at " + b.StartAt + " is booked."
}

func newTestService(t *testing.T, llm LLMClient, run RunFunc) *Service {
	t.Helper()

	reg := NewRegistry()
	err := reg.Register(Descriptor{
		Name:        "check_doctor_availability",
		Description: "List a doctor's open slots on a date.",
		Schema: map[string]ArgSpec{
			"doctor_name": {Type: ArgString, Required: true},
			"date":        {Type: ArgDate, Required: true},
		},
		AllowedRoles: []Role{RolePatient, RoleDoctor},
		Run:          run,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.Seal()

	return NewService(ServiceConfig{
		Store:    NewSessionStore(time.Minute, nil),
		Router:   NewRouter(llm, reg, nil),
		Executor: NewExecutor(reg, time.Second, nil, nil),
		Composer: NewComposer(nil, nil),
	})
}

func TestHandleMessageCapabilityTurn(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"action":"tool","tool_name":"check_doctor_availability","args":{"doctor_name":"Ahuja","date":"2026-09-02"}}`,
	}}
	svc := newTestService(t, llm, func(_ context.Context, args Args) (any, error) {
		return bookingData{AppointmentID: 7, DoctorName: args["doctor_name"].(string), StartAt: "09:00"}, nil
	})

	resp, err := svc.HandleMessage(context.Background(), ChatRequest{
		SessionID: "sess-1",
		Role:      "patient",
		Message:   "is ahuja free tomorrow?",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.SessionID != "sess-1" {
		t.Errorf("session id = %s", resp.SessionID)
	}
	if !strings.Contains(resp.Text, "09:00") {
		t.Errorf("reply lost outcome facts: %q", resp.Text)
	}
}

func TestHandleMessageMintsSessionID(t *testing.T) {
	llm := &scriptedLLM{responses: []string{`{"final":"Hello!"}`}}
	svc := newTestService(t, llm, noopRun)

	resp, err := svc.HandleMessage(context.Background(), ChatRequest{Role: "patient", Message: "hi"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.SessionID == "" {
		t.Error("expected a generated session id")
	}
}

func TestHandleMessageRejectsBadInput(t *testing.T) {
	llm := &scriptedLLM{responses: []string{`{"final":"hi"}`}}
	svc := newTestService(t, llm, noopRun)

	if _, err := svc.HandleMessage(context.Background(), ChatRequest{SessionID: "s", Role: "alien", Message: "hi"}); err == nil {
		t.Error("expected unknown role error")
	}
	if _, err := svc.HandleMessage(context.Background(), ChatRequest{SessionID: "s", Role: "patient", Message: "   "}); err == nil {
		t.Error("expected empty utterance error")
	}
}

func TestHandleMessageRoleConflict(t *testing.T) {
	llm := &scriptedLLM{responses: []string{`{"final":"hi"}`}}
	svc := newTestService(t, llm, noopRun)

	if _, err := svc.HandleMessage(context.Background(), ChatRequest{SessionID: "shared", Role: "patient", Message: "hi"}); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	_, err := svc.HandleMessage(context.Background(), ChatRequest{SessionID: "shared", Role: "doctor", Message: "hi"})
	if err == nil {
		t.Fatal("expected role conflict")
	}
}

func TestHandleMessageGroundsLaterDirectAnswers(t *testing.T) {
	// Turn 1 invokes the capability; turn 2 is a direct answer repeating the
	// slot, which the guard must accept because the outcome grounded it.
	llm := &scriptedLLM{responses: []string{
		`{"action":"tool","tool_name":"check_doctor_availability","args":{"doctor_name":"Ahuja","date":"2026-09-02"}}`,
		`{"final":"As I said, the 09:00 slot is open."}`,
	}}
	svc := newTestService(t, llm, func(_ context.Context, _ Args) (any, error) {
		return bookingData{AppointmentID: 1, DoctorName: "Dr. Ahuja", StartAt: "09:00"}, nil
	})

	if _, err := svc.HandleMessage(context.Background(), ChatRequest{SessionID: "g", Role: "patient", Message: "when is ahuja free?"}); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	resp, err := svc.HandleMessage(context.Background(), ChatRequest{SessionID: "g", Role: "patient", Message: "what time was that?"})
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if !strings.Contains(resp.Text, "09:00") {
		t.Errorf("grounded repeat was rejected: %q", resp.Text)
	}
}

func TestHandleMessageDecisionFailureYieldsSafeReply(t *testing.T) {
	llm := &scriptedLLM{err: context.DeadlineExceeded}
	svc := newTestService(t, llm, noopRun)

	resp, err := svc.HandleMessage(context.Background(), ChatRequest{SessionID: "f", Role: "patient", Message: "book me"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Text != insufficientInfoReply {
		t.Errorf("reply = %q, want the safe fallback", resp.Text)
	}
}

func TestHandleMessageAppendsBothTurns(t *testing.T) {
	llm := &scriptedLLM{responses: []string{`{"final":"Hello!"}`}}
	svc := newTestService(t, llm, noopRun)

	if _, err := svc.HandleMessage(context.Background(), ChatRequest{SessionID: "t", Role: "patient", Message: "hi"}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	sess, err := svc.store.GetOrCreate("t", RolePatient)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	sess.Lock()
	defer sess.Unlock()
	if sess.TurnCount() != 2 {
		t.Fatalf("turns = %d, want user + assistant", sess.TurnCount())
	}
}
