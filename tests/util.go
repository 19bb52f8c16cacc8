package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/class"
	"github.com/trezcool/notas/core/gradebook"
	"github.com/trezcool/notas/core/grading"
	"github.com/trezcool/notas/core/profile"
)

func CreateProfile(
	t *testing.T,
	repo profile.Repository,
	name, email, pwd string,
	role core.Role,
	createdAt ...time.Time,
) profile.Profile {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	p := profile.Profile{
		ID:        uuid.New().String(),
		FullName:  name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := p.SetPassword(pwd); err != nil {
			t.Fatalf("CreateProfile() failed: %v", err)
		}
	}
	p, err := repo.CreateProfile(context.Background(), p)
	if err != nil {
		t.Fatalf("CreateProfile() failed: %v", err)
	}
	return p
}

func CreateClass(t *testing.T, repo class.Repository, teacherID, name, code string, createdAt ...time.Time) class.Class {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	c, err := repo.CreateClass(context.Background(), class.Class{
		ID:        uuid.New().String(),
		Name:      name,
		Code:      code,
		TeacherID: teacherID,
		CreatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return c
}

func Enroll(t *testing.T, repo class.Repository, classID, studentID string, enrolledAt ...time.Time) class.Enrollment {
	tstamp := time.Now().UTC()
	if len(enrolledAt) > 0 {
		tstamp = enrolledAt[0].UTC()
	}
	e, err := repo.CreateEnrollment(context.Background(), class.Enrollment{
		ID:         uuid.New().String(),
		StudentID:  studentID,
		ClassID:    classID,
		EnrolledAt: tstamp,
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return e
}

func CreateGradeItem(
	t *testing.T,
	repo gradebook.Repository,
	classID, name string,
	corte grading.Corte,
	pct float64,
	createdAt ...time.Time,
) gradebook.GradeItem {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	item, err := repo.CreateGradeItem(context.Background(), gradebook.GradeItem{
		ID:         uuid.New().String(),
		ClassID:    classID,
		Name:       name,
		Corte:      corte,
		Percentage: pct,
		CreatedAt:  tstamp,
	})
	if err != nil {
		t.Fatalf("CreateGradeItem() failed: %v", err)
	}
	return item
}

func SetGrade(t *testing.T, repo gradebook.Repository, studentID, itemID string, score float64) {
	err := repo.UpsertGrades(context.Background(), []gradebook.Grade{{
		ID:          uuid.New().String(),
		StudentID:   studentID,
		GradeItemID: itemID,
		Score:       score,
		UpdatedAt:   time.Now().UTC(),
	}})
	if err != nil {
		t.Fatalf("SetGrade() failed: %v", err)
	}
}
