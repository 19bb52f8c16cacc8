package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/notas/core/class"
	"github.com/trezcool/notas/storage/database"
)

const classSelect = `
	SELECT c.id, c.name, c.code, c.description, c.teacher_id, c.created_at,
		(SELECT COUNT(*) FROM enrollments e WHERE e.class_id = c.id) AS student_count
	FROM classes c`

type classRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Code         string      `db:"code"`
	Description  null.String `db:"description"`
	TeacherID    string      `db:"teacher_id"`
	CreatedAt    time.Time   `db:"created_at"`
	StudentCount int         `db:"student_count"`
}

func (r classRow) toClass() class.Class {
	return class.Class{
		ID:           r.ID,
		Name:         r.Name,
		Code:         r.Code,
		Description:  r.Description.String,
		TeacherID:    r.TeacherID,
		CreatedAt:    r.CreatedAt.UTC(),
		StudentCount: r.StudentCount,
	}
}

type rosterRow struct {
	StudentID  string      `db:"student_id"`
	FullName   string      `db:"full_name"`
	Email      string      `db:"email"`
	AvatarURL  null.String `db:"avatar_url"`
	EnrolledAt time.Time   `db:"enrolled_at"`
}

type classRepository struct {
	db *sqlx.DB
}

var _ class.Repository = (*classRepository)(nil)

func NewClassRepository(db *sqlx.DB) class.Repository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(ctx context.Context, c class.Class) (class.Class, error) {
	row := classRow{
		ID:          c.ID,
		Name:        c.Name,
		Code:        c.Code,
		Description: null.NewString(c.Description, c.Description != ""),
		TeacherID:   c.TeacherID,
		CreatedAt:   c.CreatedAt,
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO classes (id, name, code, description, teacher_id, created_at)
		VALUES (:id, :name, :code, :description, :teacher_id, :created_at)`,
		row,
	)
	if err != nil {
		return class.Class{}, database.MapError(err)
	}
	return row.toClass(), nil
}

func (repo *classRepository) get(ctx context.Context, where string, arg interface{}) (class.Class, error) {
	var row classRow
	if err := repo.db.GetContext(ctx, &row, classSelect+" WHERE "+where, arg); err != nil {
		if err == sql.ErrNoRows {
			return class.Class{}, class.ErrNotFound
		}
		return class.Class{}, database.MapError(err)
	}
	return row.toClass(), nil
}

func (repo *classRepository) GetClassByID(ctx context.Context, id string) (class.Class, error) {
	if !validIDs(id) {
		return class.Class{}, class.ErrNotFound
	}
	return repo.get(ctx, "c.id = $1", id)
}

func (repo *classRepository) GetClassByCode(ctx context.Context, code string) (class.Class, error) {
	return repo.get(ctx, "c.code = $1", code)
}

func (repo *classRepository) list(ctx context.Context, query string, arg interface{}) ([]class.Class, error) {
	var rows []classRow
	if err := repo.db.SelectContext(ctx, &rows, query, arg); err != nil {
		return nil, database.MapError(err)
	}
	classes := make([]class.Class, len(rows))
	for i, r := range rows {
		classes[i] = r.toClass()
	}
	return classes, nil
}

func (repo *classRepository) ListClassesByTeacher(ctx context.Context, teacherID string) ([]class.Class, error) {
	if !validIDs(teacherID) {
		return []class.Class{}, nil
	}
	return repo.list(ctx, classSelect+" WHERE c.teacher_id = $1 ORDER BY c.created_at DESC, c.name", teacherID)
}

func (repo *classRepository) ListClassesByStudent(ctx context.Context, studentID string) ([]class.Class, error) {
	if !validIDs(studentID) {
		return []class.Class{}, nil
	}
	return repo.list(ctx, classSelect+`
		JOIN enrollments me ON me.class_id = c.id
		WHERE me.student_id = $1
		ORDER BY me.enrolled_at DESC`,
		studentID,
	)
}

func (repo *classRepository) DeleteClass(ctx context.Context, id string) error {
	if !validIDs(id) {
		return class.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM classes WHERE id = $1", id)
	if err != nil {
		return database.MapError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return class.ErrNotFound
	}
	return nil
}

func (repo *classRepository) CreateEnrollment(ctx context.Context, e class.Enrollment) (class.Enrollment, error) {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO enrollments (id, student_id, class_id, enrolled_at) VALUES ($1, $2, $3, $4)",
		e.ID, e.StudentID, e.ClassID, e.EnrolledAt,
	)
	if err != nil {
		return class.Enrollment{}, database.MapError(err)
	}
	return e, nil
}

func (repo *classRepository) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	if !validIDs(classID, studentID) {
		return false, nil
	}
	var found bool
	err := repo.db.GetContext(ctx, &found,
		"SELECT EXISTS (SELECT 1 FROM enrollments WHERE class_id = $1 AND student_id = $2)",
		classID, studentID,
	)
	if err != nil {
		return false, database.MapError(err)
	}
	return found, nil
}

func (repo *classRepository) ListRoster(ctx context.Context, classID string) ([]class.RosterEntry, error) {
	if !validIDs(classID) {
		return []class.RosterEntry{}, nil
	}
	var rows []rosterRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT p.id AS student_id, p.full_name, p.email, p.avatar_url, e.enrolled_at
		FROM enrollments e
		JOIN profiles p ON p.id = e.student_id
		WHERE e.class_id = $1
		ORDER BY p.full_name, p.id`,
		classID,
	)
	if err != nil {
		return nil, database.MapError(err)
	}
	roster := make([]class.RosterEntry, len(rows))
	for i, r := range rows {
		roster[i] = class.RosterEntry{
			StudentID:  r.StudentID,
			FullName:   r.FullName,
			Email:      r.Email,
			AvatarURL:  r.AvatarURL.String,
			EnrolledAt: r.EnrolledAt.UTC(),
		}
	}
	return roster, nil
}
