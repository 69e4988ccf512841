package domain

import (
	"math"
	"time"
)

// ScorePrompt asks the user for the earned score before a task with point
// tracking can finish. Suggested holds the previously recorded score, or full
// credit when none was recorded.
type ScorePrompt struct {
	TaskID         string
	PointsPossible float64
	Suggested      float64
}

// CompleteTask starts the completion flow for an open task. Tasks without a
// positive points ceiling finish immediately. Tasks with point tracking are
// left untouched and a ScorePrompt is returned instead; the completion commits
// only via ConfirmScore. Abandoning the prompt leaves the task open.
func CompleteTask(doc Document, id string, now time.Time) (Document, *ScorePrompt, error) {
	t := doc.task(id)
	if t == nil {
		return doc, nil, validationErrorf("task not found")
	}
	if t.Done {
		return doc, nil, nil
	}
	if t.PointsPossible != nil && *t.PointsPossible > 0 {
		prompt := &ScorePrompt{
			TaskID:         id,
			PointsPossible: *t.PointsPossible,
			Suggested:      *t.PointsPossible,
		}
		if t.PointsEarned != nil {
			prompt.Suggested = *t.PointsEarned
		}
		return doc, prompt, nil
	}
	out := doc.Clone()
	done := out.task(id)
	done.Done = true
	done.CompletedISO = isoNow(now)
	done.PointsEarned = nil
	return out, nil, nil
}

// ConfirmScore commits a pending completion with the entered score. The score
// is rounded to one decimal place and clamped into [0, pointsPossible]; the
// linked grade item is created or updated to mirror the task, keeping its id
// and createdISO across updates.
func ConfirmScore(doc Document, id string, score float64, now time.Time) (Document, error) {
	t := doc.task(id)
	if t == nil {
		return doc, validationErrorf("task not found")
	}
	if t.PointsPossible == nil || *t.PointsPossible <= 0 {
		return doc, validationErrorf("task has no points to score")
	}
	if !isFinite(score) {
		return doc, validationErrorf("earned score must be a number")
	}
	out := doc.Clone()
	done := out.task(id)
	earned := clampFloat(math.Round(score*10)/10, 0, *done.PointsPossible)
	done.Done = true
	done.CompletedISO = isoNow(now)
	done.PointsEarned = &earned
	syncDerivedGrade(&out, *done)
	return out, nil
}

// UndoTask reverts a done task to open, clearing its score and completion
// marker and deleting exactly its derived grade item.
func UndoTask(doc Document, id string) (Document, error) {
	t := doc.task(id)
	if t == nil {
		return doc, validationErrorf("task not found")
	}
	if !t.Done {
		return doc, nil
	}
	out := doc.Clone()
	open := out.task(id)
	open.Done = false
	open.PointsEarned = nil
	open.CompletedISO = ""
	removeGradeByTask(&out, id)
	return out, nil
}
