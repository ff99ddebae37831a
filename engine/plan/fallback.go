package plan

import (
	"fmt"
	"time"
)

type milestone struct {
	title       string
	description string
}

var milestones = []milestone{
	{"Clarify requirements", "Confirm the scope, constraints and definition of done for: %s"},
	{"Collect inputs", "Gather the material, access and information needed for: %s"},
	{"Plan the work", "Break the remaining work into a concrete schedule for: %s"},
	{"Execute", "Do the main body of work for: %s"},
	{"Verify", "Review the result against the requirements of: %s"},
	{"Submit", "Deliver the finished result for: %s"},
}

// FallbackEnd returns the deadline when it lies after now, otherwise now plus
// one day per subtask.
func FallbackEnd(now time.Time, deadline *time.Time, count int) time.Time {
	if deadline != nil && deadline.After(now) {
		return *deadline
	}
	return now.Add(time.Duration(count) * 24 * time.Hour)
}

// Fallback builds the content-independent milestone sequence, evenly spread
// between now and the fallback end. The last milestone lands on the end.
func Fallback(req *Request, maxSteps int, limits Limits, now time.Time) []Subtask {
	count := min(max(maxSteps, 1), fallbackMilestoneCap)
	end := FallbackEnd(now, req.Deadline, count)
	step := end.Sub(now) / time.Duration(count)
	loc := req.Location()
	out := make([]Subtask, 0, count)
	for i := range count {
		m := milestones[i]
		due := now.Add(step * time.Duration(i+1))
		if i == count-1 {
			due = end
		}
		out = append(out, Subtask{
			Title:           m.title,
			Description:     fmt.Sprintf(m.description, req.Task),
			DueAt:           due.In(loc),
			DurationMinutes: limits.ClampDuration(limits.DefaultDurationMinutes),
		})
	}
	return out
}
