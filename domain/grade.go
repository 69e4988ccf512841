package domain

import (
	"strings"
	"time"
)

// GradeInput carries the form values for a manual grade item.
type GradeInput struct {
	Name        string
	CourseID    string
	ScoreEarned float64
	ScoreTotal  float64
	Weight      *float64
	DueISO      string
}

func (in GradeInput) validate() (GradeInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, validationErrorf("grade name is required")
	}
	if !isFinite(in.ScoreTotal) || in.ScoreTotal <= 0 {
		return in, validationErrorf("score total must be a number greater than zero")
	}
	if !isFinite(in.ScoreEarned) {
		return in, validationErrorf("earned score must be a number")
	}
	if in.Weight != nil {
		v := clampFloat(*in.Weight, 0, 100)
		in.Weight = &v
	}
	return in, nil
}

// AddGrade inserts a manual grade item at the head of the grade list.
func AddGrade(doc Document, in GradeInput, now time.Time) (Document, GradeItem, error) {
	in, err := in.validate()
	if err != nil {
		return doc, GradeItem{}, err
	}
	out := doc.Clone()
	item := GradeItem{
		ID:          newID(),
		CourseID:    validCourseRef(out, in.CourseID),
		Name:        in.Name,
		ScoreEarned: in.ScoreEarned,
		ScoreTotal:  in.ScoreTotal,
		Weight:      clonePtr(in.Weight),
		DueISO:      strings.TrimSpace(in.DueISO),
		CreatedISO:  isoNow(now),
	}
	out.Grades = append([]GradeItem{item}, out.Grades...)
	return out, item, nil
}

// UpdateGrade edits a manual grade item. Derived items are owned by their
// source task and cannot be edited directly.
func UpdateGrade(doc Document, id string, in GradeInput) (Document, GradeItem, error) {
	in, err := in.validate()
	if err != nil {
		return doc, GradeItem{}, err
	}
	out := doc.Clone()
	for i := range out.Grades {
		if out.Grades[i].ID != id {
			continue
		}
		if out.Grades[i].Derived() {
			return doc, GradeItem{}, validationErrorf("this grade mirrors a completed task; edit the task instead")
		}
		g := &out.Grades[i]
		g.Name = in.Name
		g.CourseID = validCourseRef(out, in.CourseID)
		g.ScoreEarned = in.ScoreEarned
		g.ScoreTotal = in.ScoreTotal
		g.Weight = clonePtr(in.Weight)
		g.DueISO = strings.TrimSpace(in.DueISO)
		return out, *g, nil
	}
	return doc, GradeItem{}, validationErrorf("grade not found")
}

// DeleteGrade removes a grade item unconditionally. Deleting a derived item
// never touches its source task.
func DeleteGrade(doc Document, id string) Document {
	out := doc.Clone()
	kept := out.Grades[:0]
	for _, g := range out.Grades {
		if g.ID != id {
			kept = append(kept, g)
		}
	}
	out.Grades = kept
	return out
}

// syncDerivedGrade creates, updates or removes the grade item linked to the
// task so that it exists exactly when the task is done with a positive points
// ceiling and a recorded score. The item's id and createdISO survive updates.
func syncDerivedGrade(doc *Document, t Task) {
	eligible := t.Done && t.PointsPossible != nil && *t.PointsPossible > 0 && t.PointsEarned != nil
	if !eligible {
		removeGradeByTask(doc, t.ID)
		return
	}
	if g := doc.gradeByTask(t.ID); g != nil {
		g.Name = t.Title
		g.CourseID = t.CourseID
		g.DueISO = t.DueISO
		g.ScoreEarned = *t.PointsEarned
		g.ScoreTotal = *t.PointsPossible
		return
	}
	doc.Grades = append([]GradeItem{{
		ID:          newID(),
		CourseID:    t.CourseID,
		Name:        t.Title,
		ScoreEarned: *t.PointsEarned,
		ScoreTotal:  *t.PointsPossible,
		DueISO:      t.DueISO,
		TaskID:      t.ID,
		CreatedISO:  t.CompletedISO,
	}}, doc.Grades...)
}

func removeGradeByTask(doc *Document, taskID string) {
	kept := doc.Grades[:0]
	for _, g := range doc.Grades {
		if g.TaskID != taskID {
			kept = append(kept, g)
		}
	}
	doc.Grades = kept
}
