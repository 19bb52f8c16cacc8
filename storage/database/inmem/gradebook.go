package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/notas/core/class"
	"github.com/trezcool/notas/core/gradebook"
	"github.com/trezcool/notas/core/grading"
)

type gradebookRepository struct {
	db *DB
}

var _ gradebook.Repository = (*gradebookRepository)(nil)

func NewGradebookRepository(db *DB) gradebook.Repository {
	return &gradebookRepository{db: db}
}

func (repo *gradebookRepository) CreateGradeItem(_ context.Context, item gradebook.GradeItem) (gradebook.GradeItem, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.classes[item.ClassID]; !ok {
		return gradebook.GradeItem{}, class.ErrNotFound
	}
	repo.db.gradeItems[item.ID] = item
	return item, nil
}

func (repo *gradebookRepository) CreateGradeItemWithinCap(
	_ context.Context,
	item gradebook.GradeItem,
	fits func(existing []float64) error,
) (gradebook.GradeItem, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.classes[item.ClassID]; !ok {
		return gradebook.GradeItem{}, class.ErrNotFound
	}
	var existing []float64
	for _, gi := range repo.db.gradeItems {
		if gi.ClassID == item.ClassID && gi.Corte == item.Corte {
			existing = append(existing, gi.Percentage)
		}
	}
	if err := fits(existing); err != nil {
		return gradebook.GradeItem{}, err
	}
	repo.db.gradeItems[item.ID] = item
	return item, nil
}

func (repo *gradebookRepository) GetGradeItem(_ context.Context, id string) (gradebook.GradeItem, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if item, ok := repo.db.gradeItems[id]; ok {
		return item, nil
	}
	return gradebook.GradeItem{}, gradebook.ErrItemNotFound
}

func (repo *gradebookRepository) ListGradeItems(_ context.Context, classID string, cortes ...grading.Corte) ([]gradebook.GradeItem, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	inCortes := func(c grading.Corte) bool {
		if len(cortes) == 0 {
			return true
		}
		for _, corte := range cortes {
			if c == corte {
				return true
			}
		}
		return false
	}

	items := make([]gradebook.GradeItem, 0)
	for _, item := range repo.db.gradeItems {
		if item.ClassID == classID && inCortes(item.Corte) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Corte != items[j].Corte {
			return items[i].Corte < items[j].Corte
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

func (repo *gradebookRepository) DeleteGradeItem(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.gradeItems[id]; !ok {
		return gradebook.ErrItemNotFound
	}
	delete(repo.db.gradeItems, id)
	for gid, g := range repo.db.grades {
		if g.GradeItemID == id {
			delete(repo.db.grades, gid)
		}
	}
	return nil
}

func (repo *gradebookRepository) UpsertGrades(_ context.Context, grades []gradebook.Grade) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	byKey := make(map[[2]string]string, len(repo.db.grades))
	for id, g := range repo.db.grades {
		byKey[[2]string{g.StudentID, g.GradeItemID}] = id
	}
	for _, g := range grades {
		if id, ok := byKey[[2]string{g.StudentID, g.GradeItemID}]; ok {
			g.ID = id
		}
		repo.db.grades[g.ID] = g
	}
	return nil
}

func (repo *gradebookRepository) ListGrades(_ context.Context, classID string, studentIDs ...string) ([]gradebook.Grade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make(map[string]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		students[id] = struct{}{}
	}

	grades := make([]gradebook.Grade, 0)
	for _, g := range repo.db.grades {
		item, ok := repo.db.gradeItems[g.GradeItemID]
		if !ok || item.ClassID != classID {
			continue
		}
		if _, ok = students[g.StudentID]; len(students) > 0 && !ok {
			continue
		}
		grades = append(grades, g)
	}
	return grades, nil
}
