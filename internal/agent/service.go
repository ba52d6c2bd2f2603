package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/assigny/clinic-agent/internal/observability/metrics"
	"github.com/assigny/clinic-agent/pkg/logging"
)

// ErrEmptyUtterance is returned when a request carries no message text.
var ErrEmptyUtterance = errors.New("agent: utterance is empty")

// ChatRequest is the single inbound contract of the orchestration core.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Message   string `json:"message"`
}

// ChatResponse is the single outbound contract.
type ChatResponse struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Service runs the full turn pipeline: session lookup, routing decision,
// capability execution, and reply composition. Turns on one session are
// serialized by the session's own lock; different sessions proceed in
// parallel.
type Service struct {
	store      *SessionStore
	router     *Router
	executor   *Executor
	composer   *Composer
	transcript *TranscriptStore // optional mirror
	metrics    *metrics.AgentMetrics
	logger     *logging.Logger

	historyWindow   int
	decisionTimeout time.Duration
	now             func() time.Time
}

// ServiceConfig wires the pipeline's collaborators.
type ServiceConfig struct {
	Store      *SessionStore
	Router     *Router
	Executor   *Executor
	Composer   *Composer
	Transcript *TranscriptStore
	Metrics    *metrics.AgentMetrics
	Logger     *logging.Logger

	HistoryWindow   int
	DecisionTimeout time.Duration
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Store == nil {
		panic("agent: session store cannot be nil")
	}
	if cfg.Router == nil {
		panic("agent: router cannot be nil")
	}
	if cfg.Executor == nil {
		panic("agent: executor cannot be nil")
	}
	if cfg.Composer == nil {
		panic("agent: composer cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if cfg.DecisionTimeout <= 0 {
		cfg.DecisionTimeout = 20 * time.Second
	}

	return &Service{
		store:           cfg.Store,
		router:          cfg.Router,
		executor:        cfg.Executor,
		composer:        cfg.Composer,
		transcript:      cfg.Transcript,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		historyWindow:   cfg.HistoryWindow,
		decisionTimeout: cfg.DecisionTimeout,
		now:             time.Now,
	}
}

// HandleMessage processes one user turn and returns the grounded reply.
func (s *Service) HandleMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	started := s.now()

	role, err := ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyUtterance
	}
	// A caller without a session id gets a fresh one; it comes back in the
	// response so the conversation can continue.
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sess, err := s.store.GetOrCreate(sessionID, role)
	if err != nil {
		return nil, err
	}

	// Hold the session lock for the whole turn so appends never interleave.
	sess.Lock()
	defer sess.Unlock()

	history := sess.Recent(s.historyWindow)
	grounded := sess.Grounded()

	sess.AppendTurn(SpeakerUser, message, s.now())
	s.mirror(ctx, sessionID, Turn{Speaker: SpeakerUser, Text: message, Timestamp: s.now()})

	decisionCtx, cancelDecision := context.WithTimeout(ctx, s.decisionTimeout)
	decision, err := s.router.Decide(decisionCtx, role, history, grounded, message)
	cancelDecision()
	if err != nil {
		s.logger.Error("decision engine failed", "session_id", sessionID, "error", err)
		decision = Decision{Kind: DecisionDirectAnswer, Answer: insufficientInfoReply}
	}
	s.metrics.ObserveDecision(string(decision.Kind), string(role))

	var outcome *Outcome
	if decision.Kind == DecisionCapabilityCall {
		// The executor applies its own per-call timeout.
		out := s.executor.Execute(ctx, role, decision.Capability, decision.Args)
		outcome = &out
		if out.Status == OutcomeOK {
			sess.AddGrounded(groundingText(out))
		}
	}

	reply := s.composer.Compose(ctx, role, message, decision, outcome)

	sess.AppendTurn(SpeakerAssistant, reply, s.now())
	s.mirror(ctx, sessionID, Turn{Speaker: SpeakerAssistant, Text: reply, Timestamp: s.now()})

	s.metrics.ObserveTurnLatency(string(decision.Kind), s.now().Sub(started).Seconds())

	return &ChatResponse{
		SessionID: sessionID,
		Text:      reply,
		Timestamp: s.now().UTC(),
	}, nil
}

// History returns the mirrored transcript for a session, newest last.
func (s *Service) History(ctx context.Context, sessionID string, limit int64) ([]Turn, error) {
	if s.transcript == nil {
		return []Turn{}, nil
	}
	return s.transcript.List(ctx, sessionID, limit)
}

func (s *Service) mirror(ctx context.Context, sessionID string, turn Turn) {
	if s.transcript == nil {
		return
	}
	mirrorCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.transcript.Append(mirrorCtx, sessionID, turn); err != nil {
		s.logger.Warn("transcript mirror append failed", "session_id", sessionID, "error", err)
	}
}

// groundingText flattens an outcome into the corpus the output guard checks
// later direct answers against.
func groundingText(out Outcome) string {
	parts := []string{out.Capability}
	if s, ok := out.Data.(Summarizer); ok {
		parts = append(parts, s.Summarize())
	}
	if encoded, err := json.Marshal(out.Data); err == nil {
		parts = append(parts, string(encoded))
	}
	if len(out.Warnings) > 0 {
		parts = append(parts, strings.Join(out.Warnings, "; "))
	}
	return strings.Join(parts, "\n")
}
