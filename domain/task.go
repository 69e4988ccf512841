package domain

import (
	"strconv"
	"strings"
	"time"
)

const (
	maxTags            = 10
	maxEstimateMinutes = 9999
	maxPointsPossible  = 999999
)

// TaskInput carries the raw form values for creating or updating a task.
// Numeric fields arrive as free text; anything that does not parse as a number
// is treated as absent.
type TaskInput struct {
	Title           string
	CourseID        string
	DueISO          string
	Priority        Priority
	Notes           string
	Tags            string // comma separated
	EstimateMinutes string
	PointsPossible  string
}

// AddTask validates the input and inserts a new open task at the head of the
// task list.
func AddTask(doc Document, in TaskInput, now time.Time) (Document, Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return doc, Task{}, validationErrorf("task title is required")
	}
	out := doc.Clone()
	task := Task{
		ID:              newID(),
		Title:           title,
		CourseID:        validCourseRef(out, in.CourseID),
		DueISO:          strings.TrimSpace(in.DueISO),
		Priority:        validPriority(in.Priority),
		Notes:           in.Notes,
		CreatedISO:      isoNow(now),
		Tags:            splitTags(in.Tags),
		EstimateMinutes: parseClampedInt(in.EstimateMinutes, 0, maxEstimateMinutes),
		PointsPossible:  parseClampedFloat(in.PointsPossible, 0, maxPointsPossible),
	}
	out.Tasks = append([]Task{task}, out.Tasks...)
	return out, task, nil
}

// UpdateTask replaces the editable fields of a task. When the points ceiling
// shrinks below the recorded earned score, the earned score is clamped down.
// A done task with point tracking re-derives its linked grade item so grades
// stay in lockstep with the task.
func UpdateTask(doc Document, id string, in TaskInput) (Document, Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return doc, Task{}, validationErrorf("task title is required")
	}
	out := doc.Clone()
	t := out.task(id)
	if t == nil {
		return doc, Task{}, validationErrorf("task not found")
	}
	t.Title = title
	t.CourseID = validCourseRef(out, in.CourseID)
	t.DueISO = strings.TrimSpace(in.DueISO)
	t.Priority = validPriority(in.Priority)
	t.Notes = in.Notes
	t.Tags = splitTags(in.Tags)
	t.EstimateMinutes = parseClampedInt(in.EstimateMinutes, 0, maxEstimateMinutes)
	t.PointsPossible = parseClampedFloat(in.PointsPossible, 0, maxPointsPossible)
	if t.PointsEarned != nil {
		if t.PointsPossible == nil {
			t.PointsEarned = nil
		} else if *t.PointsEarned > *t.PointsPossible {
			v := *t.PointsPossible
			t.PointsEarned = &v
		}
	}
	if t.Done {
		syncDerivedGrade(&out, *t)
	}
	return out, *t, nil
}

// DeleteTask removes the task and its derived grade item, if any.
func DeleteTask(doc Document, id string) Document {
	out := doc.Clone()
	kept := out.Tasks[:0]
	for _, t := range out.Tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	out.Tasks = kept
	removeGradeByTask(&out, id)
	return out
}

func validPriority(p Priority) Priority {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	}
	return PriorityMedium
}

func validCourseRef(doc Document, id string) string {
	if id == "" || doc.course(id) == nil {
		return ""
	}
	return id
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		tags = append(tags, p)
		if len(tags) == maxTags {
			break
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

func parseClampedInt(raw string, lo, hi int) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || !isFinite(f) {
			return nil
		}
		v = int(f)
	}
	v = clampInt(v, lo, hi)
	return &v
}

func parseClampedFloat(raw string, lo, hi float64) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !isFinite(v) {
		return nil
	}
	v = clampFloat(v, lo, hi)
	return &v
}
