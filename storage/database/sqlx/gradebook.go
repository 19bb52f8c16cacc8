package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/notas/core/class"
	"github.com/trezcool/notas/core/gradebook"
	"github.com/trezcool/notas/core/grading"
	"github.com/trezcool/notas/storage/database"
)

const gradeItemColumns = "id, class_id, name, corte, percentage, created_at"

type gradeItemRow struct {
	ID         string        `db:"id"`
	ClassID    string        `db:"class_id"`
	Name       string        `db:"name"`
	Corte      grading.Corte `db:"corte"`
	Percentage float64       `db:"percentage"`
	CreatedAt  time.Time     `db:"created_at"`
}

func (r gradeItemRow) toItem() gradebook.GradeItem {
	return gradebook.GradeItem{
		ID:         r.ID,
		ClassID:    r.ClassID,
		Name:       r.Name,
		Corte:      r.Corte,
		Percentage: r.Percentage,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type gradeRow struct {
	ID          string    `db:"id"`
	StudentID   string    `db:"student_id"`
	GradeItemID string    `db:"grade_item_id"`
	Score       float64   `db:"score"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type gradebookRepository struct {
	db *sqlx.DB
}

var _ gradebook.Repository = (*gradebookRepository)(nil)

func NewGradebookRepository(db *sqlx.DB) gradebook.Repository {
	return &gradebookRepository{db: db}
}

func (repo *gradebookRepository) CreateGradeItem(ctx context.Context, item gradebook.GradeItem) (gradebook.GradeItem, error) {
	row := gradeItemRow{
		ID:         item.ID,
		ClassID:    item.ClassID,
		Name:       item.Name,
		Corte:      item.Corte,
		Percentage: item.Percentage,
		CreatedAt:  item.CreatedAt,
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO grade_items (`+gradeItemColumns+`)
		VALUES (:id, :class_id, :name, :corte, :percentage, :created_at)`,
		row,
	)
	if err != nil {
		return gradebook.GradeItem{}, database.MapError(err)
	}
	return row.toItem(), nil
}

// CreateGradeItemWithinCap locks the class row so the corte sum and the insert see no concurrent item.
func (repo *gradebookRepository) CreateGradeItemWithinCap(
	ctx context.Context,
	item gradebook.GradeItem,
	fits func(existing []float64) error,
) (_ gradebook.GradeItem, err error) {
	if !validIDs(item.ClassID) {
		return gradebook.GradeItem{}, class.ErrNotFound
	}
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return gradebook.GradeItem{}, database.MapError(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var classID string
	if err = tx.GetContext(ctx, &classID, "SELECT id FROM classes WHERE id = $1 FOR UPDATE", item.ClassID); err != nil {
		if err == sql.ErrNoRows {
			return gradebook.GradeItem{}, class.ErrNotFound
		}
		return gradebook.GradeItem{}, database.MapError(err)
	}

	var existing []float64
	err = tx.SelectContext(ctx, &existing,
		"SELECT percentage FROM grade_items WHERE class_id = $1 AND corte = $2",
		item.ClassID, item.Corte,
	)
	if err != nil {
		return gradebook.GradeItem{}, database.MapError(err)
	}
	if err = fits(existing); err != nil {
		return gradebook.GradeItem{}, err
	}

	row := gradeItemRow{
		ID:         item.ID,
		ClassID:    item.ClassID,
		Name:       item.Name,
		Corte:      item.Corte,
		Percentage: item.Percentage,
		CreatedAt:  item.CreatedAt,
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO grade_items (`+gradeItemColumns+`)
		VALUES (:id, :class_id, :name, :corte, :percentage, :created_at)`,
		row,
	)
	if err != nil {
		return gradebook.GradeItem{}, database.MapError(err)
	}

	if err = tx.Commit(); err != nil {
		return gradebook.GradeItem{}, errors.Wrap(database.MapError(err), "committing grade item")
	}
	return row.toItem(), nil
}

func (repo *gradebookRepository) GetGradeItem(ctx context.Context, id string) (gradebook.GradeItem, error) {
	if !validIDs(id) {
		return gradebook.GradeItem{}, gradebook.ErrItemNotFound
	}
	var row gradeItemRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+gradeItemColumns+" FROM grade_items WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return gradebook.GradeItem{}, gradebook.ErrItemNotFound
		}
		return gradebook.GradeItem{}, database.MapError(err)
	}
	return row.toItem(), nil
}

func (repo *gradebookRepository) ListGradeItems(ctx context.Context, classID string, cortes ...grading.Corte) ([]gradebook.GradeItem, error) {
	if !validIDs(classID) {
		return []gradebook.GradeItem{}, nil
	}
	q, args := "SELECT "+gradeItemColumns+" FROM grade_items WHERE class_id = ?", []interface{}{classID}
	if len(cortes) > 0 {
		q += " AND corte IN (?)"
		args = append(args, cortes)
	}
	q, args, err := in(repo.db, q+" ORDER BY corte, created_at, name", args...)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []gradeItemRow
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, database.MapError(err)
	}
	items := make([]gradebook.GradeItem, len(rows))
	for i, r := range rows {
		items[i] = r.toItem()
	}
	return items, nil
}

func (repo *gradebookRepository) DeleteGradeItem(ctx context.Context, id string) error {
	if !validIDs(id) {
		return gradebook.ErrItemNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM grade_items WHERE id = $1", id)
	if err != nil {
		return database.MapError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return gradebook.ErrItemNotFound
	}
	return nil
}

// UpsertGrades expects at most one grade per (student, grade item): postgres rejects a statement
// that updates the same row twice.
func (repo *gradebookRepository) UpsertGrades(ctx context.Context, grades []gradebook.Grade) error {
	if len(grades) == 0 {
		return nil
	}

	const cols = 5
	args := make([]interface{}, 0, len(grades)*cols)
	for _, g := range grades {
		args = append(args, g.ID, g.StudentID, g.GradeItemID, g.Score, g.UpdatedAt)
	}
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO grades (id, student_id, grade_item_id, score, updated_at)
		VALUES `+valuesPlaceholders(len(grades), cols)+`
		ON CONFLICT ON CONSTRAINT grades_student_id_grade_item_id_key
		DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`,
		args...,
	)
	return database.MapError(err)
}

func (repo *gradebookRepository) ListGrades(ctx context.Context, classID string, studentIDs ...string) ([]gradebook.Grade, error) {
	if len(studentIDs) > 0 {
		studentIDs = onlyValidIDs(studentIDs)
		if len(studentIDs) == 0 {
			return []gradebook.Grade{}, nil
		}
	}
	if !validIDs(classID) {
		return []gradebook.Grade{}, nil
	}
	q, args := `
		SELECT g.id, g.student_id, g.grade_item_id, g.score, g.updated_at
		FROM grades g
		JOIN grade_items i ON i.id = g.grade_item_id
		WHERE i.class_id = ?`, []interface{}{classID}
	if len(studentIDs) > 0 {
		q += " AND g.student_id IN (?)"
		args = append(args, studentIDs)
	}
	q, args, err := in(repo.db, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []gradeRow
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, database.MapError(err)
	}
	grades := make([]gradebook.Grade, len(rows))
	for i, r := range rows {
		grades[i] = gradebook.Grade{
			ID:          r.ID,
			StudentID:   r.StudentID,
			GradeItemID: r.GradeItemID,
			Score:       r.Score,
			UpdatedAt:   r.UpdatedAt.UTC(),
		}
	}
	return grades, nil
}
