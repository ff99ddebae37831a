package plan

import (
	"fmt"
	"strings"
	"time"
)

// BuildPrompt renders the instruction sent to the model. The output contract
// matches what Normalize accepts.
func BuildPrompt(req *Request, maxSteps int, now time.Time) string {
	loc := req.Location()
	var b strings.Builder
	b.WriteString("You are a planning assistant. Break the task below into concrete, dated subtasks.\n")
	b.WriteString("Respond with a single JSON object and nothing else, using this shape:\n")
	b.WriteString(`{"goal": string, "summary": string, "subtasks": [{"title": string, "description": string, ` +
		`"dueAt": RFC3339 timestamp, "durationMinutes": integer}], "assumptions": [string]}`)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Task: %s\n", strings.TrimSpace(req.Task))
	if c := strings.TrimSpace(req.Context); c != "" {
		fmt.Fprintf(&b, "Context: %s\n", c)
	}
	fmt.Fprintf(&b, "Current time: %s\n", now.In(loc).Format(time.RFC3339))
	fmt.Fprintf(&b, "Timezone: %s\n", loc.String())
	if req.Deadline != nil {
		fmt.Fprintf(&b, "Deadline: %s (no subtask may be due after it)\n", req.Deadline.In(loc).Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Use at most %d subtasks, ordered by due time. ", maxSteps)
	b.WriteString("Each subtask should take between 15 and 240 minutes.\n")
	return b.String()
}
