package domain

import (
	"encoding/json"
	"math"

	"github.com/bytedance/sonic"
)

// rawDocument defers decoding of the pieces that legacy clients are known to
// mangle: settings values of the wrong type and half-formed list items.
type rawDocument struct {
	Version  any               `json:"version"`
	Courses  []json.RawMessage `json:"courses"`
	Tasks    []json.RawMessage `json:"tasks"`
	Grades   []json.RawMessage `json:"grades"`
	Settings json.RawMessage   `json:"settings"`
}

type rawSettings struct {
	SemesterName any `json:"semesterName"`
	WeekStartsOn any `json:"weekStartsOn"`
	Theme        any `json:"theme"`
	DefaultView  any `json:"defaultView"`
}

// ParseDocument decodes an arbitrary JSON payload claiming to be a document
// and returns it normalized. The same path serves remote loads and file
// imports. Syntactically malformed JSON yields a *ParseError; list items that
// fail to decode are dropped rather than failing the whole document.
func ParseDocument(data []byte) (Document, error) {
	var raw rawDocument
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return Document{}, &ParseError{Err: err}
	}

	doc := Document{
		Version:  asInt(raw.Version, 0),
		Courses:  make([]Course, 0, len(raw.Courses)),
		Tasks:    make([]Task, 0, len(raw.Tasks)),
		Grades:   make([]GradeItem, 0, len(raw.Grades)),
		Settings: decodeSettings(raw.Settings),
	}
	for _, item := range raw.Courses {
		var c Course
		if sonic.Unmarshal(item, &c) == nil {
			doc.Courses = append(doc.Courses, c)
		}
	}
	for _, item := range raw.Tasks {
		var t Task
		if sonic.Unmarshal(item, &t) == nil {
			doc.Tasks = append(doc.Tasks, t)
		}
	}
	for _, item := range raw.Grades {
		var g GradeItem
		if sonic.Unmarshal(item, &g) == nil {
			doc.Grades = append(doc.Grades, g)
		}
	}
	return Normalize(doc), nil
}

func decodeSettings(data json.RawMessage) Settings {
	out := DefaultSettings()
	if len(data) == 0 {
		return out
	}
	var raw rawSettings
	if sonic.Unmarshal(data, &raw) != nil {
		return out
	}
	if s, ok := raw.SemesterName.(string); ok && s != "" {
		out.SemesterName = s
	}
	// JSON numbers decode as float64; anything that is not exactly 0 or 1
	// becomes a Monday week start.
	out.WeekStartsOn = 1
	if f, ok := raw.WeekStartsOn.(float64); ok && f == 0 {
		out.WeekStartsOn = 0
	}
	if s, ok := raw.Theme.(string); ok && s != "" {
		out.Theme = s
	}
	if s, ok := raw.DefaultView.(string); ok && s != "" {
		out.DefaultView = s
	}
	return out
}

func asInt(v any, fallback int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return fallback
	}
}

// Normalize turns a possibly partial document into a well-formed one. It never
// mutates its input, fills defaults, and repairs the cross-entity invariants:
// point fields are clamped, completion markers match the done flag, dangling
// course references are cleared and derived grade items are re-aligned with
// their source tasks. Normalize is idempotent.
func Normalize(in Document) Document {
	doc := in.Clone()

	if doc.Version <= 0 {
		doc.Version = SchemaVersion
	}
	if doc.Courses == nil {
		doc.Courses = []Course{}
	}
	if doc.Tasks == nil {
		doc.Tasks = []Task{}
	}
	if doc.Grades == nil {
		doc.Grades = []GradeItem{}
	}
	doc.Settings = normalizeSettings(doc.Settings)

	courses := map[string]bool{}
	kept := doc.Courses[:0]
	for _, c := range doc.Courses {
		if c.ID == "" || courses[c.ID] {
			continue
		}
		courses[c.ID] = true
		kept = append(kept, c)
	}
	doc.Courses = kept

	tasks := map[string]bool{}
	keptTasks := doc.Tasks[:0]
	for _, t := range doc.Tasks {
		if t.ID == "" || tasks[t.ID] {
			continue
		}
		tasks[t.ID] = true
		keptTasks = append(keptTasks, normalizeTask(t, courses))
	}
	doc.Tasks = keptTasks

	doc.Grades = normalizeGrades(doc, courses)
	return doc
}

func normalizeSettings(s Settings) Settings {
	if s.SemesterName == "" {
		s.SemesterName = "Semester"
	}
	if s.WeekStartsOn != 0 && s.WeekStartsOn != 1 {
		s.WeekStartsOn = 1
	}
	if s.Theme != "light" && s.Theme != "dark" {
		s.Theme = "light"
	}
	if s.DefaultView == "" {
		s.DefaultView = "dashboard"
	}
	return s
}

func normalizeTask(t Task, courses map[string]bool) Task {
	switch t.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		t.Priority = PriorityMedium
	}
	if t.CourseID != "" && !courses[t.CourseID] {
		t.CourseID = ""
	}
	if len(t.Tags) > maxTags {
		t.Tags = t.Tags[:maxTags]
	}
	if t.EstimateMinutes != nil {
		v := clampInt(*t.EstimateMinutes, 0, maxEstimateMinutes)
		t.EstimateMinutes = &v
	}
	if t.PointsPossible != nil {
		if !isFinite(*t.PointsPossible) {
			t.PointsPossible = nil
		} else {
			v := clampFloat(*t.PointsPossible, 0, maxPointsPossible)
			t.PointsPossible = &v
		}
	}
	if !t.Done {
		t.PointsEarned = nil
		t.CompletedISO = ""
		return t
	}
	if t.CompletedISO == "" {
		t.CompletedISO = t.CreatedISO
	}
	if t.PointsEarned != nil {
		if t.PointsPossible == nil || !isFinite(*t.PointsEarned) {
			t.PointsEarned = nil
		} else {
			v := clampFloat(*t.PointsEarned, 0, *t.PointsPossible)
			t.PointsEarned = &v
		}
	}
	return t
}

// normalizeGrades drops grade items that violate their invariants and mirrors
// derived items from their source tasks. Manual items are kept as-is apart
// from reference cleanup.
func normalizeGrades(doc Document, courses map[string]bool) []GradeItem {
	out := doc.Grades[:0]
	seen := map[string]bool{}
	for _, g := range doc.Grades {
		if g.ID == "" || seen[g.ID] {
			continue
		}
		if g.CourseID != "" && !courses[g.CourseID] {
			g.CourseID = ""
		}
		if g.Weight != nil {
			if !isFinite(*g.Weight) {
				g.Weight = nil
			} else {
				v := clampFloat(*g.Weight, 0, 100)
				g.Weight = &v
			}
		}
		if g.Derived() {
			src := doc.task(g.TaskID)
			if src == nil || !src.Done || src.PointsPossible == nil || *src.PointsPossible <= 0 || src.PointsEarned == nil {
				continue
			}
			g.Name = src.Title
			g.CourseID = src.CourseID
			g.DueISO = src.DueISO
			g.ScoreEarned = *src.PointsEarned
			g.ScoreTotal = *src.PointsPossible
		} else if !isFinite(g.ScoreTotal) || g.ScoreTotal <= 0 || !isFinite(g.ScoreEarned) {
			continue
		}
		seen[g.ID] = true
		out = append(out, g)
	}
	return out
}

// Export renders the normalized document as pretty-printed JSON for file
// interchange. Import of the result is the identity on normalized documents.
func (d Document) Export() ([]byte, error) {
	return sonic.MarshalIndent(Normalize(d), "", "  ")
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
