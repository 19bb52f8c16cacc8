package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/notas/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) ListByClassDate(_ context.Context, classID, date string) ([]attendance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	records := make([]attendance.Record, 0)
	for _, r := range repo.db.attendance {
		if r.ClassID == classID && r.Date == date {
			records = append(records, r)
		}
	}
	return records, nil
}

func (repo *attendanceRepository) ListByStudent(_ context.Context, classID, studentID string) ([]attendance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	records := make([]attendance.Record, 0)
	for _, r := range repo.db.attendance {
		if r.ClassID == classID && r.StudentID == studentID {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date > records[j].Date })
	return records, nil
}

func (repo *attendanceRepository) ReplaceForDate(_ context.Context, classID, date string, records []attendance.Record) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, r := range repo.db.attendance {
		if r.ClassID == classID && r.Date == date {
			delete(repo.db.attendance, id)
		}
	}
	for _, r := range records {
		repo.db.attendance[r.ID] = r
	}
	return nil
}
