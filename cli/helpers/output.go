package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/compozy/plansync/engine/workflow"
)

// OutputFormat selects how command results are printed.
type OutputFormat string

const (
	OutputFormatJSON OutputFormat = "json"
	OutputFormatText OutputFormat = "text"
)

// ParseOutputFormat validates the --output flag value.
func ParseOutputFormat(v string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(v))) {
	case OutputFormatJSON:
		return OutputFormatJSON, nil
	case OutputFormatText, "":
		return OutputFormatText, nil
	default:
		return "", NewCliError("INVALID_FLAG", "unsupported output format", v)
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusStyle = map[workflow.Status]lipgloss.Style{
		workflow.StatusCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		workflow.StatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderStatus(s workflow.Status) string {
	if style, ok := statusStyle[s]; ok {
		return style.Render(string(s))
	}
	return string(s)
}

// WriteInstance prints one workflow record.
func WriteInstance(w io.Writer, inst *workflow.Instance, format OutputFormat) error {
	if format == OutputFormatJSON {
		return WriteJSON(w, inst)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("workflow"), inst.WorkflowID)
	field := func(label, value string) {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render(label+":"), value)
	}
	field("status", renderStatus(inst.Status))
	field("task", inst.TaskInput)
	if inst.RetryOf != nil {
		field("retry of", inst.RetryOf.String())
	}
	if inst.ErrorMessage != nil {
		field("error", *inst.ErrorMessage)
	}
	if p := inst.PlanOutput; p != nil {
		field("goal", p.Goal)
		for i := range p.Subtasks {
			st := &p.Subtasks[i]
			fmt.Fprintf(&b, "    %d. %s (%s, %dm)\n", i+1, st.Title, st.DueAt.Format(time.RFC3339), st.DurationMinutes)
		}
		for _, warn := range p.Warnings {
			fmt.Fprintf(&b, "    %s %s\n", hintStyle.Render("warning"), warn.Message)
		}
	}
	if out := inst.CalendarOutput; out != nil {
		field("calendar", fmt.Sprintf("%s (%d events)", out.CalendarID, len(out.CreatedEvents)))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteInstances prints a list of records, one line each in text mode.
func WriteInstances(w io.Writer, items []*workflow.Instance, format OutputFormat) error {
	if format == OutputFormatJSON {
		return WriteJSON(w, items)
	}
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, labelStyle.Render("no workflows"))
		return err
	}
	for _, inst := range items {
		if _, err := fmt.Fprintf(w, "%s  %-16s  %s  %s\n",
			inst.WorkflowID,
			renderStatus(inst.Status),
			inst.CreatedAt.Format(time.RFC3339),
			truncate(inst.TaskInput, 60),
		); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
