package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/assigny/clinic-agent/internal/observability/metrics"
	"github.com/assigny/clinic-agent/pkg/logging"
)

// DecisionKind distinguishes a plain reply from a capability invocation.
type DecisionKind string

const (
	DecisionDirectAnswer   DecisionKind = "direct_answer"
	DecisionCapabilityCall DecisionKind = "capability_call"
)

// Decision is the router's verdict for one user turn: either answer directly
// or invoke exactly one capability. Multi-tool chaining is deliberately not
// representable.
type Decision struct {
	Kind       DecisionKind
	Answer     string // set for direct_answer
	Capability string // set for capability_call
	Args       Args   // validated against the descriptor schema
}

// ErrMalformedDecision indicates the model produced output that could not be
// turned into a valid decision. It is recovered inside the router via retry
// and never surfaces to callers.
var ErrMalformedDecision = errors.New("agent: malformed decision")

// Router maps (role, recent turns, utterance) to a Decision using an
// LLM-backed classifier constrained to the role's capability set.
type Router struct {
	llm      LLMClient
	registry *Registry
	guard    *OutputGuard
	logger   *logging.Logger
	metrics  *metrics.AgentMetrics

	historyWindow int
	maxRetries    int
	maxTokens     int32
	now           func() time.Time
}

// RouterOption tunes router behavior.
type RouterOption func(*Router)

// WithHistoryWindow bounds how many trailing turns are fed to the model.
func WithHistoryWindow(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.historyWindow = n
		}
	}
}

// WithDecisionRetries sets the retry budget for malformed or ungrounded output.
func WithDecisionRetries(n int) RouterOption {
	return func(r *Router) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithRouterMetrics records decision retries on the given collector.
func WithRouterMetrics(m *metrics.AgentMetrics) RouterOption {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithClock overrides the router's notion of "today" for tests.
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRouter(llm LLMClient, registry *Registry, logger *logging.Logger, opts ...RouterOption) *Router {
	if llm == nil {
		panic("agent: llm client cannot be nil")
	}
	if registry == nil {
		panic("agent: registry cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	r := &Router{
		llm:           llm,
		registry:      registry,
		guard:         NewOutputGuard(),
		logger:        logger,
		historyWindow: 10,
		maxRetries:    1,
		maxTokens:     512,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Decide produces the decision for one utterance. grounded carries the data of
// outcomes the session has already seen; the anti-hallucination guard checks
// direct answers against it. Retries are bounded; once exhausted the router
// returns a safe direct answer rather than an error.
func (r *Router) Decide(ctx context.Context, role Role, turns []Turn, grounded []string, utterance string) (Decision, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return Decision{}, errors.New("agent: utterance is empty")
	}

	visible := r.registry.List(role)
	system := buildDecisionPrompt(role, visible, r.now())
	messages := r.buildMessages(turns, utterance)

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		reqMessages := messages
		if attempt > 0 {
			r.metrics.ObserveDecisionRetry()
			amended := make([]ChatMessage, len(messages), len(messages)+1)
			copy(amended, messages)
			amended = append(amended, ChatMessage{Role: ChatRoleUser, Content: decisionRetryNote})
			reqMessages = amended
		}

		resp, err := r.llm.Complete(ctx, LLMRequest{
			System:      []string{system},
			Messages:    reqMessages,
			MaxTokens:   r.maxTokens,
			Temperature: 0,
		})
		if err != nil {
			// Provider failures are not worth re-prompting over.
			return Decision{}, fmt.Errorf("agent: decision call failed: %w", err)
		}

		decision, err := r.parseDecision(role, visible, resp.Text)
		if err != nil {
			lastErr = err
			r.logger.Warn("decision attempt rejected",
				"attempt", attempt,
				"role", role,
				"error", err,
			)
			continue
		}

		if decision.Kind == DecisionDirectAnswer {
			if violations := r.guard.Ungrounded(decision.Answer, grounded); len(violations) > 0 {
				lastErr = fmt.Errorf("%w: ungrounded facts %v in direct answer", ErrMalformedDecision, violations)
				r.logger.Warn("direct answer failed grounding check",
					"attempt", attempt,
					"violations", violations,
				)
				continue
			}
		}

		return decision, nil
	}

	r.logger.Warn("decision retry budget exhausted, returning safe answer", "error", lastErr)
	return Decision{Kind: DecisionDirectAnswer, Answer: insufficientInfoReply}, nil
}

func (r *Router) buildMessages(turns []Turn, utterance string) []ChatMessage {
	window := turns
	if len(window) > r.historyWindow {
		window = window[len(window)-r.historyWindow:]
	}

	messages := make([]ChatMessage, 0, len(window)+1)
	for _, t := range window {
		role := ChatRoleUser
		if t.Speaker == SpeakerAssistant {
			role = ChatRoleAssistant
		}
		messages = append(messages, ChatMessage{Role: role, Content: t.Text})
	}
	return append(messages, ChatMessage{Role: ChatRoleUser, Content: utterance})
}

// decisionPayload mirrors the JSON protocol the model is instructed to emit.
type decisionPayload struct {
	Action   string         `json:"action"`
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
	Final    *string        `json:"final"`
}

func (r *Router) parseDecision(role Role, visible []*Descriptor, text string) (Decision, error) {
	content := strings.TrimSpace(text)
	// Models sometimes wrap JSON in prose or fences; take the outermost object.
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		content = content[start : end+1]
	}

	var payload decisionPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return Decision{}, fmt.Errorf("%w: not valid JSON: %v", ErrMalformedDecision, err)
	}

	switch {
	case payload.Action == "tool":
		name := strings.TrimSpace(payload.ToolName)
		var descriptor *Descriptor
		for _, d := range visible {
			if d.Name == name {
				descriptor = d
				break
			}
		}
		if descriptor == nil {
			return Decision{}, fmt.Errorf("%w: tool %q not available to role %s", ErrMalformedDecision, name, role)
		}

		args, err := descriptor.ValidateArgs(payload.Args)
		if err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrMalformedDecision, err)
		}
		return Decision{Kind: DecisionCapabilityCall, Capability: name, Args: args}, nil

	case payload.Final != nil:
		answer := strings.TrimSpace(*payload.Final)
		if answer == "" {
			return Decision{}, fmt.Errorf("%w: empty final answer", ErrMalformedDecision)
		}
		return Decision{Kind: DecisionDirectAnswer, Answer: answer}, nil

	default:
		return Decision{}, fmt.Errorf("%w: neither tool call nor final answer", ErrMalformedDecision)
	}
}
