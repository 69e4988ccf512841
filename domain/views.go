package domain

import (
	"sort"
	"strings"
	"time"
)

// DefaultDueSoonDays is the forward window of the dueSoon bucket. The window
// is explicit and configurable rather than baked into each view.
const DefaultDueSoonDays = 7

// BucketOptions tunes the due-date bucketing.
type BucketOptions struct {
	// DueSoonDays is the number of days after today that still count as due
	// soon. Zero means DefaultDueSoonDays.
	DueSoonDays int
}

// Buckets groups open tasks by how their due day relates to today.
type Buckets struct {
	Overdue  []Task
	DueToday []Task
	DueSoon  []Task
}

// ComputeBuckets classifies open tasks by calendar day. Both "now" and each
// due date are truncated to day resolution in now's location before comparing.
// Done tasks and tasks without a parseable due date are left out.
func ComputeBuckets(doc Document, now time.Time, opts BucketOptions) Buckets {
	window := opts.DueSoonDays
	if window <= 0 {
		window = DefaultDueSoonDays
	}
	today := truncateToDay(now, now.Location())
	horizon := today.AddDate(0, 0, window)

	var b Buckets
	for _, t := range doc.Tasks {
		if t.Done {
			continue
		}
		due, ok := parseDueDay(t.DueISO, now.Location())
		if !ok {
			continue
		}
		switch {
		case due.Before(today):
			b.Overdue = append(b.Overdue, t)
		case due.Equal(today):
			b.DueToday = append(b.DueToday, t)
		case !due.After(horizon):
			b.DueSoon = append(b.DueSoon, t)
		}
	}
	return b
}

// StatusFilter narrows tasks by completion state.
type StatusFilter string

const (
	StatusAll  StatusFilter = "all"
	StatusOpen StatusFilter = "open"
	StatusDone StatusFilter = "done"
)

// CourseNone selects tasks without a course in TaskQuery.CourseID.
const CourseNone = "none"

// TaskQuery combines independent filter predicates; all of them must match.
// Zero values mean "all". Search matches case-insensitively against title,
// notes, tags and the resolved course name.
type TaskQuery struct {
	Status   StatusFilter
	CourseID string
	Priority Priority
	Search   string
}

// FilterTasks returns the tasks matching the query, in document order.
func FilterTasks(doc Document, q TaskQuery) []Task {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	courseNames := map[string]string{}
	for _, c := range doc.Courses {
		courseNames[c.ID] = c.Name
	}

	out := make([]Task, 0, len(doc.Tasks))
	for _, t := range doc.Tasks {
		switch q.Status {
		case StatusOpen:
			if t.Done {
				continue
			}
		case StatusDone:
			if !t.Done {
				continue
			}
		}
		switch q.CourseID {
		case "", "all":
		case CourseNone:
			if t.CourseID != "" {
				continue
			}
		default:
			if t.CourseID != q.CourseID {
				continue
			}
		}
		if q.Priority != "" && q.Priority != "all" && t.Priority != q.Priority {
			continue
		}
		if needle != "" && !taskMatches(t, courseNames[t.CourseID], needle) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func taskMatches(t Task, courseName, needle string) bool {
	haystack := strings.ToLower(t.Title + " " + t.Notes + " " + strings.Join(t.Tags, " ") + " " + courseName)
	return strings.Contains(haystack, needle)
}

// TaskSort selects the ordering of a task list.
type TaskSort string

const (
	SortByDue      TaskSort = "due"
	SortByPriority TaskSort = "priority"
	SortByCreated  TaskSort = "created"
)

var priorityRank = map[Priority]int{PriorityHigh: 0, PriorityMedium: 1, PriorityLow: 2}

// SortTasks returns a sorted copy. Due sorts ascending with missing due dates
// last, priority sorts high first, created sorts newest first. Ties keep the
// incoming order.
func SortTasks(tasks []Task, by TaskSort) []Task {
	out := append([]Task(nil), tasks...)
	switch by {
	case SortByDue:
		sort.SliceStable(out, func(i, j int) bool {
			return dueUnix(out[i]) < dueUnix(out[j])
		})
	case SortByPriority:
		sort.SliceStable(out, func(i, j int) bool {
			return priorityRank[out[i].Priority] < priorityRank[out[j].Priority]
		})
	case SortByCreated:
		sort.SliceStable(out, func(i, j int) bool {
			return createdUnix(out[i]) > createdUnix(out[j])
		})
	}
	return out
}

// CourseAggregate accumulates grade items for one course. The raw points
// channel and the weighted channel are independent outputs; they are never
// blended into one percentage.
type CourseAggregate struct {
	CourseID      string
	Items         int
	Earned        float64
	Total         float64
	WeightedScore float64 // sum of (earned/total)*weight over weighted items
	WeightTotal   float64 // sum of declared weights
}

// Percent returns the raw points percentage. The second return is false when
// no points have been recorded.
func (a CourseAggregate) Percent() (float64, bool) {
	if a.Total <= 0 {
		return 0, false
	}
	return a.Earned / a.Total * 100, true
}

// WeightedPercent returns the weighted average over items that declare a
// weight. The second return is false when no item does.
func (a CourseAggregate) WeightedPercent() (float64, bool) {
	if a.WeightTotal <= 0 {
		return 0, false
	}
	return a.WeightedScore / a.WeightTotal * 100, true
}

// CourseAggregates sums grade items per course id. Items without a course land
// in the synthetic CourseNone bucket.
func CourseAggregates(doc Document) map[string]CourseAggregate {
	out := map[string]CourseAggregate{}
	for _, g := range doc.Grades {
		key := g.CourseID
		if key == "" {
			key = CourseNone
		}
		agg := out[key]
		agg.CourseID = key
		accumulate(&agg, g)
		out[key] = agg
	}
	return out
}

// OverallAggregate sums every grade item into a single aggregate.
func OverallAggregate(doc Document) CourseAggregate {
	agg := CourseAggregate{CourseID: "all"}
	for _, g := range doc.Grades {
		accumulate(&agg, g)
	}
	return agg
}

func accumulate(agg *CourseAggregate, g GradeItem) {
	if g.ScoreTotal <= 0 {
		return
	}
	agg.Items++
	agg.Earned += g.ScoreEarned
	agg.Total += g.ScoreTotal
	if g.Weight != nil {
		agg.WeightedScore += g.ScoreEarned / g.ScoreTotal * *g.Weight
		agg.WeightTotal += *g.Weight
	}
}

func truncateToDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func parseDueDay(iso string, loc *time.Location) (time.Time, bool) {
	if iso == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, iso); err == nil {
			return truncateToDay(t, loc), true
		}
	}
	return time.Time{}, false
}

func dueUnix(t Task) int64 {
	if ts, ok := parseISOTime(t.DueISO); ok {
		return ts.Unix()
	}
	// Missing due dates sort after everything with one.
	return int64(1) << 62
}

func parseISOTime(iso string) (time.Time, bool) {
	if iso == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, iso); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func createdUnix(t Task) int64 {
	if ts, ok := parseISOTime(t.CreatedISO); ok {
		return ts.Unix()
	}
	return 0
}
