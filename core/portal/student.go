package portal

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/attendance"
	"github.com/trezcool/notas/core/class"
	"github.com/trezcool/notas/core/gradebook"
)

// Student holds the operations available to students. Class scoped operations require an enrollment:
// classes the actor is not enrolled in are reported as not found.
type Student struct {
	classes    *class.Service
	gradebook  *gradebook.Service
	attendance *attendance.Service
}

func NewStudent(classes *class.Service, gb *gradebook.Service, att *attendance.Service) *Student {
	return &Student{classes: classes, gradebook: gb, attendance: att}
}

func (s *Student) enrolledClass(ctx context.Context, actor core.Actor, classID string) (class.Class, error) {
	if !actor.IsStudent() {
		return class.Class{}, core.ErrForbidden
	}
	ok, err := s.classes.IsEnrolled(ctx, classID, actor.ID)
	if err != nil {
		return class.Class{}, errors.Wrap(err, "checking enrollment")
	}
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	return s.classes.Get(ctx, classID)
}

// JoinClass enrolls the actor in the class identified by code.
func (s *Student) JoinClass(ctx context.Context, actor core.Actor, code string) (class.Class, error) {
	if !actor.IsStudent() {
		return class.Class{}, core.ErrForbidden
	}
	return s.classes.Join(ctx, actor.ID, code)
}

func (s *Student) Classes(ctx context.Context, actor core.Actor) ([]class.Class, error) {
	if !actor.IsStudent() {
		return nil, core.ErrForbidden
	}
	return s.classes.ListForStudent(ctx, actor.ID)
}

func (s *Student) Class(ctx context.Context, actor core.Actor, classID string) (class.Class, error) {
	return s.enrolledClass(ctx, actor, classID)
}

// Report returns the actor's own grade report in the class.
func (s *Student) Report(ctx context.Context, actor core.Actor, classID string) (gradebook.Report, error) {
	if _, err := s.enrolledClass(ctx, actor, classID); err != nil {
		return gradebook.Report{}, err
	}
	return s.gradebook.StudentReport(ctx, classID, actor.ID)
}

// Attendance returns the actor's own attendance history in the class.
func (s *Student) Attendance(ctx context.Context, actor core.Actor, classID string) (attendance.History, error) {
	if _, err := s.enrolledClass(ctx, actor, classID); err != nil {
		return attendance.History{}, err
	}
	return s.attendance.StudentHistory(ctx, classID, actor.ID)
}
