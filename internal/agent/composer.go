package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/assigny/clinic-agent/pkg/logging"
)

// Summarizer lets capability result types render themselves as plain language.
// The composer falls back to this when the LLM rephrase fails or is rejected
// by the output guard.
type Summarizer interface {
	Summarize() string
}

const composeSystemPrompt = `You turn structured appointment data into one short, friendly reply for a %s.

Use ONLY the facts in the provided result data. Do not add times, counts, names, or availability that are not in the data. Do not mention JSON or tools. Reply in plain text.`

// Composer builds the final user-facing reply from a decision and, for
// capability calls, the executor's outcome. It never sees the router's raw
// reasoning, only the outcome.
type Composer struct {
	llm    LLMClient
	guard  *OutputGuard
	logger *logging.Logger
}

// NewComposer creates a composer. llm may be nil, in which case replies come
// from the deterministic renderer only.
func NewComposer(llm LLMClient, logger *logging.Logger) *Composer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Composer{
		llm:    llm,
		guard:  NewOutputGuard(),
		logger: logger,
	}
}

// Compose produces the reply text. Direct answers pass through unchanged; they
// were already checked against the grounding policy by the router.
func (c *Composer) Compose(ctx context.Context, role Role, utterance string, decision Decision, outcome *Outcome) string {
	if decision.Kind == DecisionDirectAnswer {
		return decision.Answer
	}

	if outcome == nil {
		// A capability call without an outcome means the pipeline broke;
		// never imply anything happened.
		return "I'm sorry, I wasn't able to complete that request."
	}

	if outcome.Status != OutcomeOK {
		return c.apologize(role, outcome)
	}

	reply := c.rephrase(ctx, role, utterance, outcome)
	if reply == "" {
		reply = renderData(outcome.Data)
	}

	if notes := renderWarnings(outcome.Warnings); notes != "" {
		reply = reply + " " + notes
	}
	return reply
}

// apologize maps non-ok statuses to role-appropriate replies that never claim
// the requested action happened.
func (c *Composer) apologize(role Role, outcome *Outcome) string {
	detail := strings.TrimSpace(outcome.Message)

	switch outcome.Status {
	case OutcomeNotFound:
		if detail != "" {
			return fmt.Sprintf("I'm sorry, I couldn't find that: %s. Could you check the details and try again?", detail)
		}
		return "I'm sorry, I couldn't find what you were looking for. Could you check the details and try again?"
	case OutcomeValidationError:
		if detail != "" {
			return fmt.Sprintf("I didn't quite catch everything I need: %s. Could you give me the full details?", detail)
		}
		return "I didn't quite catch everything I need. Could you give me the full details?"
	case OutcomeForbidden:
		if role == RoleDoctor {
			return "I'm sorry, that action isn't available on a doctor account."
		}
		return "I'm sorry, that action isn't available on a patient account."
	default: // capability_error
		if detail == timeoutMessage {
			// The write may have landed even though the call timed out.
			return fmt.Sprintf("I'm sorry, %s. I can't confirm whether that went through; please check before trying again.", detail)
		}
		if detail != "" {
			return fmt.Sprintf("I'm sorry, that didn't go through: %s. Nothing has been changed.", detail)
		}
		return "I'm sorry, that didn't go through. Nothing has been changed."
	}
}

// rephrase asks the model to phrase the outcome data and rejects any output
// that introduces facts absent from the payload. Returns "" when the
// deterministic renderer should take over.
func (c *Composer) rephrase(ctx context.Context, role Role, utterance string, outcome *Outcome) string {
	if c.llm == nil {
		return ""
	}

	payload, err := json.Marshal(outcome.Data)
	if err != nil {
		c.logger.Warn("failed to encode outcome for composer", "error", err)
		return ""
	}

	resp, err := c.llm.Complete(ctx, LLMRequest{
		System: []string{fmt.Sprintf(composeSystemPrompt, role)},
		Messages: []ChatMessage{{
			Role:    ChatRoleUser,
			Content: fmt.Sprintf("User asked: %s\n\nResult data: %s", utterance, payload),
		}},
		MaxTokens:   512,
		Temperature: 0,
	})
	if err != nil {
		c.logger.Warn("composer LLM call failed, using fallback renderer", "error", err)
		return ""
	}

	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		return ""
	}

	grounded := []string{string(payload)}
	if s, ok := outcome.Data.(Summarizer); ok {
		grounded = append(grounded, s.Summarize())
	}
	if violations := c.guard.Ungrounded(reply, grounded); len(violations) > 0 {
		c.logger.Warn("composed reply failed grounding check, using fallback renderer",
			"capability", outcome.Capability,
			"violations", violations,
		)
		return ""
	}
	return reply
}

func renderData(data any) string {
	if data == nil {
		return "Done."
	}
	if s, ok := data.(Summarizer); ok {
		return s.Summarize()
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return "Done."
	}
	return fmt.Sprintf("Here is what I found: %s", encoded)
}

func renderWarnings(warnings []string) string {
	if len(warnings) == 0 {
		return ""
	}
	return fmt.Sprintf("One note: %s.", strings.Join(warnings, "; "))
}
