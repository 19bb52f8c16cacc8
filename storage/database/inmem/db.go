// Package inmemdb keeps every table in memory. It backs the tests and the API when no database is configured.
package inmemdb

import (
	"sync"

	"github.com/trezcool/notas/core/attendance"
	"github.com/trezcool/notas/core/class"
	"github.com/trezcool/notas/core/gradebook"
	"github.com/trezcool/notas/core/profile"
)

// DB is guarded by a single lock so multi-table writes (cascades, attendance replacement) are atomic.
type DB struct {
	mu          sync.RWMutex
	profiles    map[string]profile.Profile
	classes     map[string]class.Class
	enrollments map[string]class.Enrollment
	gradeItems  map[string]gradebook.GradeItem
	grades      map[string]gradebook.Grade
	attendance  map[string]attendance.Record
}

func Open() *DB {
	db := new(DB)
	db.Reset()
	return db
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.profiles = make(map[string]profile.Profile)
	db.classes = make(map[string]class.Class)
	db.enrollments = make(map[string]class.Enrollment)
	db.gradeItems = make(map[string]gradebook.GradeItem)
	db.grades = make(map[string]gradebook.Grade)
	db.attendance = make(map[string]attendance.Record)
}
