package calendar

import (
	"fmt"
	"strings"

	"github.com/compozy/plansync/engine/plan"
)

const taskLabelRunes = 40

// EventTitle is a pure function of its inputs so replays send identical text.
func EventTitle(index, count int, st *plan.Subtask, task string) string {
	title := fmt.Sprintf("%s (%d/%d)", strings.TrimSpace(st.Title), index+1, count)
	if label := taskLabel(task); label != "" {
		return label + ": " + title
	}
	return title
}

// taskLabel is the first line of the task, cut to taskLabelRunes.
func taskLabel(task string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(task), "\n")
	runes := []rune(strings.TrimSpace(line))
	if len(runes) <= taskLabelRunes {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:taskLabelRunes])) + "..."
}

func EventDescription(index, count int, st *plan.Subtask, task string) string {
	var b strings.Builder
	if d := strings.TrimSpace(st.Description); d != "" {
		b.WriteString(d)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Step %d of %d\n", index+1, count)
	fmt.Fprintf(&b, "Part of: %s", strings.TrimSpace(task))
	return b.String()
}
