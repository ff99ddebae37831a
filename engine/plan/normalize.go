package plan

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/tidwall/gjson"
)

const fallbackAssumption = "The model output could not be used as a schedule, so a generic milestone plan was substituted."

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Normalize reduces raw model text to a valid Plan. Malformed input degrades
// field by field to the fallback sequence; Normalize never fails.
func Normalize(raw string, req *Request, limits Limits, now time.Time) *Plan {
	maxSteps := limits.MaxSteps(req.MaxSteps)
	fallback := Fallback(req, maxSteps, limits, now)
	p := &Plan{Assumptions: []string{}}

	doc, ok := parseDocument(raw)
	if !ok {
		p.warn(WarningUnparsableOutput, -1, "model output is not a JSON object")
	}

	p.Goal = trimmedString(doc.Get("goal"))
	if p.Goal == "" {
		p.Goal = strings.TrimSpace(req.Task)
		p.warn(WarningMissingGoal, -1, "goal defaulted to the task text")
	}
	p.Summary = trimmedString(doc.Get("summary"))
	if p.Summary == "" {
		p.Summary = fmt.Sprintf("Step-by-step plan to complete: %s", strings.TrimSpace(req.Task))
		p.warn(WarningMissingSummary, -1, "summary defaulted to a template")
	}

	p.Subtasks = normalizeSubtasks(p, doc.Get("subtasks"), req, limits, maxSteps, fallback, now)
	if len(p.Subtasks) == 0 {
		p.Subtasks = fallback
		p.warn(WarningFallbackSubtasks, -1, "no usable subtasks, using %d generic milestones", len(fallback))
		p.Assumptions = append(p.Assumptions, fallbackAssumption)
	}
	slices.SortStableFunc(p.Subtasks, func(a, b Subtask) int {
		return a.DueAt.Compare(b.DueAt)
	})

	for _, item := range doc.Get("assumptions").Array() {
		if s := trimmedString(item); s != "" {
			p.Assumptions = append(p.Assumptions, s)
		}
	}
	return p
}

// parseDocument accepts only a clean JSON object, optionally wrapped in one
// code fence.
func parseDocument(raw string) (gjson.Result, bool) {
	text := stripFence(strings.TrimSpace(raw))
	if text == "" || !gjson.Valid(text) {
		return gjson.Result{}, false
	}
	doc := gjson.Parse(text)
	if !doc.IsObject() {
		return gjson.Result{}, false
	}
	return doc, true
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || len(text) < 6 {
		return text
	}
	body := strings.TrimSuffix(text, "```")
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		// single-line fence: drop the language tag, if any
		rest := strings.TrimLeftFunc(body[3:], func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsDigit(r)
		})
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(body[nl+1:])
}

func normalizeSubtasks(
	p *Plan,
	list gjson.Result,
	req *Request,
	limits Limits,
	maxSteps int,
	fallback []Subtask,
	now time.Time,
) []Subtask {
	if !list.IsArray() {
		return nil
	}
	candidates := list.Array()
	if len(candidates) > maxSteps {
		p.warn(WarningTruncated, -1, "kept the first %d of %d subtasks", maxSteps, len(candidates))
		candidates = candidates[:maxSteps]
	}
	loc := req.Location()
	var deadline *time.Time
	if req.Deadline != nil && req.Deadline.After(now) {
		deadline = req.Deadline
	}
	out := make([]Subtask, 0, len(candidates))
	for i, c := range candidates {
		fb := fallback[min(i, len(fallback)-1)]
		var fields gjson.Result
		var title string
		switch {
		case c.Type == gjson.String:
			title = strings.TrimSpace(c.Str)
		case c.IsObject():
			fields = c
			title = trimmedString(c.Get("title"))
		}
		if title == "" {
			p.warn(WarningSubtaskDropped, i, "subtask has no title")
			continue
		}
		st := Subtask{Title: title}

		st.Description = trimmedString(fields.Get("description"))
		if st.Description == "" {
			st.Description = fb.Description
			p.warn(WarningDescription, i, "description taken from the fallback milestone")
		}

		due, ok := parseInstant(firstOf(fields, "dueAt", "due_at", "due"), loc)
		switch {
		case !ok:
			due = fb.DueAt
			p.warn(WarningDueAt, i, "due time missing or invalid")
		case deadline != nil && due.After(*deadline):
			due = deadline.In(loc)
			p.warn(WarningDueAfterDeadline, i, "due time moved back to the deadline")
		}
		st.DueAt = due

		minutes, ok := parseMinutes(firstOf(fields, "durationMinutes", "duration_minutes", "duration"))
		if !ok {
			st.DurationMinutes = limits.ClampDuration(limits.DefaultDurationMinutes)
			p.warn(WarningDuration, i, "duration missing or not an integer")
		} else {
			st.DurationMinutes = limits.ClampDuration(minutes)
			if st.DurationMinutes != minutes {
				p.warn(WarningDurationClamped, i, "duration %d clamped to %d", minutes, st.DurationMinutes)
			}
		}
		out = append(out, st)
	}
	return out
}

func firstOf(obj gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if r := obj.Get(k); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

func trimmedString(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(r.Str)
}

// parseInstant accepts RFC 3339 instants, local date-times interpreted in loc
// and bare dates, which resolve to the end of the working day.
func parseInstant(r gjson.Result, loc *time.Location) (time.Time, bool) {
	s := trimmedString(r)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t.Add(17 * time.Hour), true
	}
	return time.Time{}, false
}

// maxMinutes saturates out-of-range integers before clamping.
const maxMinutes = 1_000_000_000

func parseMinutes(r gjson.Result) (int, bool) {
	switch r.Type {
	case gjson.Number:
		if r.Num != math.Trunc(r.Num) || math.IsInf(r.Num, 0) {
			return 0, false
		}
		return int(min(max(r.Num, -maxMinutes), maxMinutes)), true
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		n, err := strconv.Atoi(s)
		if errors.Is(err, strconv.ErrRange) {
			if strings.HasPrefix(s, "-") {
				return -maxMinutes, true
			}
			return maxMinutes, true
		}
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
