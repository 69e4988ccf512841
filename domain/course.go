package domain

import "strings"

// AddCourse inserts a new course at the head of the course list, so the most
// recently added course is shown first.
func AddCourse(doc Document, name, color string, credits *float64) (Document, Course, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return doc, Course{}, validationErrorf("course name is required")
	}
	out := doc.Clone()
	course := Course{
		ID:      newID(),
		Name:    name,
		Color:   color,
		Credits: clonePtr(credits),
	}
	out.Courses = append([]Course{course}, out.Courses...)
	return out, course, nil
}

// UpdateCourse renames or recolors an existing course.
func UpdateCourse(doc Document, id, name, color string, credits *float64) (Document, Course, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return doc, Course{}, validationErrorf("course name is required")
	}
	out := doc.Clone()
	c := out.course(id)
	if c == nil {
		return doc, Course{}, validationErrorf("course not found")
	}
	c.Name = name
	c.Color = color
	c.Credits = clonePtr(credits)
	return out, *c, nil
}

// DeleteCourse removes the course and clears courseId on every task and grade
// item that referenced it. References are nullified, never cascaded into
// deletes.
func DeleteCourse(doc Document, id string) Document {
	out := doc.Clone()
	kept := out.Courses[:0]
	for _, c := range out.Courses {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	out.Courses = kept
	for i := range out.Tasks {
		if out.Tasks[i].CourseID == id {
			out.Tasks[i].CourseID = ""
		}
	}
	for i := range out.Grades {
		if out.Grades[i].CourseID == id {
			out.Grades[i].CourseID = ""
		}
	}
	return out
}
