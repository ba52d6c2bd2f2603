package agent

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const decisionSystemPrompt = `You are a medical appointment assistant for a clinic. You help %ss with scheduling questions.

Today's date is %s.

You may NOT state facts about appointments, availability, doctors, or patients from memory. Any such fact must come from a tool result. If the user's request needs that kind of information, you MUST call a tool.

To call a tool, return ONLY a JSON object like:
{"action":"tool","tool_name":"<name>","args":{...}}

If you can answer without any domain facts (greetings, clarifications, explaining what you can do), return ONLY:
{"final":"<answer>"}

Call at most one tool. If the request could match more than one tool, pick the one whose description fits the user's wording most specifically; if you genuinely cannot tell which one is meant, ask a clarifying question via {"final":...} instead of guessing arguments.

Available tools:
%s`

const decisionRetryNote = `Your previous reply violated the tool policy: it was not valid JSON, named an unavailable tool, had badly typed arguments, or asserted appointment facts without calling a tool. Respond again. Use {"action":"tool",...} for anything involving appointments, availability, schedules, or patient data, and only well-formed JSON.`

const insufficientInfoReply = "I'm sorry, I don't have enough information to answer that reliably. Could you rephrase, or tell me the doctor and date you have in mind?"

// buildDecisionPrompt renders the system prompt for a role, listing only the
// capabilities that role may trigger.
func buildDecisionPrompt(role Role, visible []*Descriptor, today time.Time) string {
	var tools strings.Builder
	for _, d := range visible {
		fmt.Fprintf(&tools, "- %s: %s\n", d.Name, d.Description)
		names := make([]string, 0, len(d.Schema))
		for name := range d.Schema {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			spec := d.Schema[name]
			req := "optional"
			if spec.Required {
				req = "required"
			}
			fmt.Fprintf(&tools, "    %s (%s, %s): %s\n", name, spec.Type, req, spec.Description)
		}
	}

	return fmt.Sprintf(decisionSystemPrompt, role, today.Format("2006-01-02"), tools.String())
}
