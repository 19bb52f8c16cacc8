// Package portal exposes what each role may do: Teacher and Student are two distinct capability sets
// built over the same class, gradebook and attendance services.
package portal

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/attendance"
	"github.com/trezcool/notas/core/class"
	"github.com/trezcool/notas/core/gradebook"
	"github.com/trezcool/notas/core/grading"
)

// ErrStudentNotFound is returned when a student is not enrolled in the class.
var ErrStudentNotFound = errors.New("student not found in this class")

// Teacher holds the operations available to teachers. Class scoped operations require the actor to own the class:
// other teachers' classes are reported as not found.
type Teacher struct {
	classes    *class.Service
	gradebook  *gradebook.Service
	attendance *attendance.Service
}

func NewTeacher(classes *class.Service, gb *gradebook.Service, att *attendance.Service) *Teacher {
	return &Teacher{classes: classes, gradebook: gb, attendance: att}
}

func (t *Teacher) ownedClass(ctx context.Context, actor core.Actor, classID string) (class.Class, error) {
	if !actor.IsTeacher() {
		return class.Class{}, core.ErrForbidden
	}
	c, err := t.classes.Get(ctx, classID)
	if err != nil {
		return class.Class{}, err
	}
	if c.TeacherID != actor.ID {
		return class.Class{}, class.ErrNotFound
	}
	return c, nil
}

func (t *Teacher) enrolledStudent(ctx context.Context, classID, studentID string) error {
	ok, err := t.classes.IsEnrolled(ctx, classID, studentID)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	if !ok {
		return ErrStudentNotFound
	}
	return nil
}

func (t *Teacher) CreateClass(ctx context.Context, actor core.Actor, nc class.NewClass) (class.Class, error) {
	if !actor.IsTeacher() {
		return class.Class{}, core.ErrForbidden
	}
	return t.classes.Create(ctx, actor.ID, nc)
}

func (t *Teacher) Classes(ctx context.Context, actor core.Actor) ([]class.Class, error) {
	if !actor.IsTeacher() {
		return nil, core.ErrForbidden
	}
	return t.classes.ListForTeacher(ctx, actor.ID)
}

func (t *Teacher) Class(ctx context.Context, actor core.Actor, classID string) (class.Class, error) {
	return t.ownedClass(ctx, actor, classID)
}

func (t *Teacher) DeleteClass(ctx context.Context, actor core.Actor, classID string) error {
	if _, err := t.ownedClass(ctx, actor, classID); err != nil {
		return err
	}
	return t.classes.Delete(ctx, classID)
}

func (t *Teacher) Roster(ctx context.Context, actor core.Actor, classID string) ([]class.RosterEntry, error) {
	if _, err := t.ownedClass(ctx, actor, classID); err != nil {
		return nil, err
	}
	return t.classes.Roster(ctx, classID)
}

func (t *Teacher) CreateGradeItem(ctx context.Context, actor core.Actor, classID string, ni gradebook.NewGradeItem) (gradebook.GradeItem, error) {
	if _, err := t.ownedClass(ctx, actor, classID); err != nil {
		return gradebook.GradeItem{}, err
	}
	return t.gradebook.CreateItem(ctx, classID, ni)
}

func (t *Teacher) DeleteGradeItem(ctx context.Context, actor core.Actor, classID, itemID string) error {
	if _, err := t.ownedClass(ctx, actor, classID); err != nil {
		return err
	}
	return t.gradebook.DeleteItem(ctx, classID, itemID)
}

func (t *Teacher) GradeItems(ctx context.Context, actor core.Actor, classID string, cortes ...grading.Corte) ([]gradebook.GradeItem, error) {
	if _, err := t.ownedClass(ctx, actor, classID); err != nil {
		return nil, err
	}
	return t.gradebook.Items(ctx, classID, cortes...)
}

func (t *Teacher) GradeBudget(ctx context.Context, actor core.Actor, classID string, corte grading.Corte) (grading.Usage, error) {
	if _, err := t.ownedClass(ctx, actor, classID); err != nil {
		return grading.Usage{}, err
	}
	return t.gradebook.Budget(ctx, classID, corte)
}

func (t *Teacher) GradeSheet(ctx context.Context, actor core.Actor, classID string, corte grading.Corte) (gradebook.Sheet, error) {
	if _, err := t.ownedClass(ctx, actor, classID); err != nil {
		return gradebook.Sheet{}, err
	}
	return t.gradebook.Sheet(ctx, classID, corte)
}

func (t *Teacher) SaveGrades(ctx context.Context, actor core.Actor, classID string, inputs []gradebook.GradeInput) ([]gradebook.Grade, error) {
	if _, err := t.ownedClass(ctx, actor, classID); err != nil {
		return nil, err
	}
	return t.gradebook.SaveGrades(ctx, classID, inputs)
}

func (t *Teacher) StudentReport(ctx context.Context, actor core.Actor, classID, studentID string) (gradebook.Report, error) {
	if _, err := t.ownedClass(ctx, actor, classID); err != nil {
		return gradebook.Report{}, err
	}
	if err := t.enrolledStudent(ctx, classID, studentID); err != nil {
		return gradebook.Report{}, err
	}
	return t.gradebook.StudentReport(ctx, classID, studentID)
}

// ClassReport returns the class with the grade report of every enrolled student.
func (t *Teacher) ClassReport(ctx context.Context, actor core.Actor, classID string) (class.Class, gradebook.ClassReport, error) {
	c, err := t.ownedClass(ctx, actor, classID)
	if err != nil {
		return class.Class{}, gradebook.ClassReport{}, err
	}
	rep, err := t.gradebook.ClassReport(ctx, classID)
	return c, rep, err
}

func (t *Teacher) AttendanceSheet(ctx context.Context, actor core.Actor, classID, date string) (attendance.Sheet, error) {
	if _, err := t.ownedClass(ctx, actor, classID); err != nil {
		return attendance.Sheet{}, err
	}
	return t.attendance.Sheet(ctx, classID, date)
}

func (t *Teacher) SaveAttendance(ctx context.Context, actor core.Actor, classID, date string, marks []attendance.Mark) ([]attendance.Record, error) {
	if _, err := t.ownedClass(ctx, actor, classID); err != nil {
		return nil, err
	}
	return t.attendance.Save(ctx, classID, date, marks)
}

func (t *Teacher) StudentAttendance(ctx context.Context, actor core.Actor, classID, studentID string) (attendance.History, error) {
	if _, err := t.ownedClass(ctx, actor, classID); err != nil {
		return attendance.History{}, err
	}
	if err := t.enrolledStudent(ctx, classID, studentID); err != nil {
		return attendance.History{}, err
	}
	return t.attendance.StudentHistory(ctx, classID, studentID)
}
