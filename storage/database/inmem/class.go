package inmemdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/class"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil)

func NewClassRepository(db *DB) class.Repository {
	return &classRepository{db: db}
}

// withCount sets the StudentCount of c. Callers hold the lock.
func (repo *classRepository) withCount(c class.Class) class.Class {
	c.StudentCount = 0
	for _, e := range repo.db.enrollments {
		if e.ClassID == c.ID {
			c.StudentCount++
		}
	}
	return c
}

func (repo *classRepository) CreateClass(_ context.Context, c class.Class) (class.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.classes {
		if other.Code == c.Code {
			return class.Class{}, core.NewConflictError(errors.New("duplicate class code"), class.CodeConstraint)
		}
	}
	c.StudentCount = 0
	repo.db.classes[c.ID] = c
	return c, nil
}

func (repo *classRepository) GetClassByID(_ context.Context, id string) (class.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.classes[id]; ok {
		return repo.withCount(c), nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) GetClassByCode(_ context.Context, code string) (class.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.classes {
		if c.Code == code {
			return repo.withCount(c), nil
		}
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) ListClassesByTeacher(_ context.Context, teacherID string) ([]class.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	classes := make([]class.Class, 0)
	for _, c := range repo.db.classes {
		if c.TeacherID == teacherID {
			classes = append(classes, repo.withCount(c))
		}
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].CreatedAt.Equal(classes[j].CreatedAt) {
			return classes[i].Name < classes[j].Name
		}
		return classes[i].CreatedAt.After(classes[j].CreatedAt)
	})
	return classes, nil
}

func (repo *classRepository) ListClassesByStudent(_ context.Context, studentID string) ([]class.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrollments := make([]class.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if e.StudentID == studentID {
			enrollments = append(enrollments, e)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].EnrolledAt.After(enrollments[j].EnrolledAt) })

	classes := make([]class.Class, 0, len(enrollments))
	for _, e := range enrollments {
		if c, ok := repo.db.classes[e.ClassID]; ok {
			classes = append(classes, repo.withCount(c))
		}
	}
	return classes, nil
}

func (repo *classRepository) DeleteClass(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.classes[id]; !ok {
		return class.ErrNotFound
	}
	delete(repo.db.classes, id)

	for eid, e := range repo.db.enrollments {
		if e.ClassID == id {
			delete(repo.db.enrollments, eid)
		}
	}
	for iid, item := range repo.db.gradeItems {
		if item.ClassID == id {
			delete(repo.db.gradeItems, iid)
			for gid, g := range repo.db.grades {
				if g.GradeItemID == iid {
					delete(repo.db.grades, gid)
				}
			}
		}
	}
	for rid, r := range repo.db.attendance {
		if r.ClassID == id {
			delete(repo.db.attendance, rid)
		}
	}
	return nil
}

func (repo *classRepository) CreateEnrollment(_ context.Context, e class.Enrollment) (class.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.classes[e.ClassID]; !ok {
		return class.Enrollment{}, class.ErrNotFound
	}
	for _, other := range repo.db.enrollments {
		if other.ClassID == e.ClassID && other.StudentID == e.StudentID {
			return class.Enrollment{}, core.NewConflictError(errors.New("duplicate enrollment"), class.EnrollmentConstraint)
		}
	}
	repo.db.enrollments[e.ID] = e
	return e, nil
}

func (repo *classRepository) IsEnrolled(_ context.Context, classID, studentID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, e := range repo.db.enrollments {
		if e.ClassID == classID && e.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *classRepository) ListRoster(_ context.Context, classID string) ([]class.RosterEntry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	roster := make([]class.RosterEntry, 0)
	for _, e := range repo.db.enrollments {
		if e.ClassID != classID {
			continue
		}
		p := repo.db.profiles[e.StudentID]
		roster = append(roster, class.RosterEntry{
			StudentID:  e.StudentID,
			FullName:   p.FullName,
			Email:      p.Email,
			AvatarURL:  p.AvatarURL,
			EnrolledAt: e.EnrolledAt,
		})
	}
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].FullName == roster[j].FullName {
			return roster[i].StudentID < roster[j].StudentID
		}
		return roster[i].FullName < roster[j].FullName
	})
	return roster, nil
}
