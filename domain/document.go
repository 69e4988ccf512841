package domain

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current persisted document version. Older documents are
// forward-merged by Normalize, never migrated field by field.
const SchemaVersion = 2

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Course represents a course owned by the document. Tasks and grade items
// reference it by id but never own it.
type Course struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Color   string   `json:"color,omitempty"`
	Credits *float64 `json:"credits,omitempty"`
}

// Task represents a single planner item.
type Task struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	CourseID        string   `json:"courseId,omitempty"`
	DueISO          string   `json:"dueISO,omitempty"`
	Priority        Priority `json:"priority"`
	Notes           string   `json:"notes,omitempty"`
	Done            bool     `json:"done"`
	CreatedISO      string   `json:"createdISO"`
	Tags            []string `json:"tags,omitempty"`
	EstimateMinutes *int     `json:"estimateMinutes,omitempty"`
	PointsPossible  *float64 `json:"pointsPossible,omitempty"`
	PointsEarned    *float64 `json:"pointsEarned,omitempty"`
	CompletedISO    string   `json:"completedISO,omitempty"`
}

// GradeItem records a score for a course. When TaskID is set the item is
// derived: it mirrors the point fields of its source task and is never edited
// directly. Without TaskID it is manual and fully user controlled.
type GradeItem struct {
	ID          string   `json:"id"`
	CourseID    string   `json:"courseId,omitempty"`
	Name        string   `json:"name"`
	ScoreEarned float64  `json:"scoreEarned"`
	ScoreTotal  float64  `json:"scoreTotal"`
	Weight      *float64 `json:"weight,omitempty"`
	DueISO      string   `json:"dueISO,omitempty"`
	TaskID      string   `json:"taskId,omitempty"`
	CreatedISO  string   `json:"createdISO"`
}

// Derived reports whether the item mirrors a completed task.
func (g GradeItem) Derived() bool { return g.TaskID != "" }

// Settings holds user preferences. After normalization every field is set.
type Settings struct {
	SemesterName string `json:"semesterName"`
	WeekStartsOn int    `json:"weekStartsOn"`
	Theme        string `json:"theme,omitempty"`
	DefaultView  string `json:"defaultView,omitempty"`
}

// Document is the root persisted unit: the whole application state as one
// JSON blob, replaced wholesale on every remote read and write.
type Document struct {
	Version  int         `json:"version"`
	Courses  []Course    `json:"courses"`
	Tasks    []Task      `json:"tasks"`
	Grades   []GradeItem `json:"grades"`
	Settings Settings    `json:"settings"`
}

// DefaultSettings returns the settings applied to fresh or partial documents.
func DefaultSettings() Settings {
	return Settings{
		SemesterName: "Semester",
		WeekStartsOn: 1,
		Theme:        "light",
		DefaultView:  "dashboard",
	}
}

// DefaultDocument returns the empty well-formed document.
func DefaultDocument() Document {
	return Document{
		Version:  SchemaVersion,
		Courses:  []Course{},
		Tasks:    []Task{},
		Grades:   []GradeItem{},
		Settings: DefaultSettings(),
	}
}

// UpdateSettings replaces the document settings, normalized.
func UpdateSettings(doc Document, s Settings) Document {
	out := doc.Clone()
	out.Settings = normalizeSettings(s)
	return out
}

// Clone returns a deep copy so entity operations can stay pure.
func (d Document) Clone() Document {
	out := d
	out.Courses = make([]Course, len(d.Courses))
	for i, c := range d.Courses {
		out.Courses[i] = c
		out.Courses[i].Credits = clonePtr(c.Credits)
	}
	out.Tasks = make([]Task, len(d.Tasks))
	for i, t := range d.Tasks {
		out.Tasks[i] = t
		out.Tasks[i].Tags = append([]string(nil), t.Tags...)
		out.Tasks[i].EstimateMinutes = clonePtr(t.EstimateMinutes)
		out.Tasks[i].PointsPossible = clonePtr(t.PointsPossible)
		out.Tasks[i].PointsEarned = clonePtr(t.PointsEarned)
	}
	out.Grades = make([]GradeItem, len(d.Grades))
	for i, g := range d.Grades {
		out.Grades[i] = g
		out.Grades[i].Weight = clonePtr(g.Weight)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (d Document) course(id string) *Course {
	for i := range d.Courses {
		if d.Courses[i].ID == id {
			return &d.Courses[i]
		}
	}
	return nil
}

func (d Document) task(id string) *Task {
	for i := range d.Tasks {
		if d.Tasks[i].ID == id {
			return &d.Tasks[i]
		}
	}
	return nil
}

func (d Document) gradeByTask(taskID string) *GradeItem {
	for i := range d.Grades {
		if d.Grades[i].TaskID == taskID {
			return &d.Grades[i]
		}
	}
	return nil
}

func newID() string { return uuid.NewString() }

func isoNow(now time.Time) string { return now.UTC().Format(time.RFC3339) }
