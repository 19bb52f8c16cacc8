package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/notas/core/attendance"
	"github.com/trezcool/notas/storage/database"
)

const attendanceSelect = `
	SELECT id, student_id, class_id, to_char(date, 'YYYY-MM-DD') AS date, present, created_at
	FROM attendance`

type attendanceRow struct {
	ID        string    `db:"id"`
	StudentID string    `db:"student_id"`
	ClassID   string    `db:"class_id"`
	Date      string    `db:"date"`
	Present   bool      `db:"present"`
	CreatedAt time.Time `db:"created_at"`
}

func toRecords(rows []attendanceRow) []attendance.Record {
	records := make([]attendance.Record, len(rows))
	for i, r := range rows {
		records[i] = attendance.Record{
			ID:        r.ID,
			StudentID: r.StudentID,
			ClassID:   r.ClassID,
			Date:      r.Date,
			Present:   r.Present,
			CreatedAt: r.CreatedAt.UTC(),
		}
	}
	return records
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) ListByClassDate(ctx context.Context, classID, date string) ([]attendance.Record, error) {
	if !validIDs(classID) {
		return []attendance.Record{}, nil
	}
	var rows []attendanceRow
	err := repo.db.SelectContext(ctx, &rows, attendanceSelect+" WHERE class_id = $1 AND date = $2::date", classID, date)
	if err != nil {
		return nil, database.MapError(err)
	}
	return toRecords(rows), nil
}

func (repo *attendanceRepository) ListByStudent(ctx context.Context, classID, studentID string) ([]attendance.Record, error) {
	if !validIDs(classID, studentID) {
		return []attendance.Record{}, nil
	}
	var rows []attendanceRow
	err := repo.db.SelectContext(ctx, &rows,
		attendanceSelect+" WHERE class_id = $1 AND student_id = $2 ORDER BY date DESC",
		classID, studentID,
	)
	if err != nil {
		return nil, database.MapError(err)
	}
	return toRecords(rows), nil
}

// ReplaceForDate deletes the marks of students absent from records and upserts the others in one transaction.
func (repo *attendanceRepository) ReplaceForDate(ctx context.Context, classID, date string, records []attendance.Record) (err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return database.MapError(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	studentIDs := make([]string, len(records))
	for i, r := range records {
		studentIDs[i] = r.StudentID
	}
	_, err = tx.ExecContext(ctx,
		"DELETE FROM attendance WHERE class_id = $1 AND date = $2::date AND NOT (student_id = ANY($3::uuid[]))",
		classID, date, pq.Array(studentIDs),
	)
	if err != nil {
		return database.MapError(err)
	}

	if len(records) > 0 {
		const cols = 6
		args := make([]interface{}, 0, len(records)*cols)
		for _, r := range records {
			args = append(args, r.ID, r.StudentID, r.ClassID, r.Date, r.Present, r.CreatedAt)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO attendance (id, student_id, class_id, date, present, created_at)
			VALUES `+valuesPlaceholders(len(records), cols)+`
			ON CONFLICT ON CONSTRAINT attendance_student_id_class_id_date_key
			DO UPDATE SET present = EXCLUDED.present`,
			args...,
		)
		if err != nil {
			return database.MapError(err)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(database.MapError(err), "committing attendance")
	}
	return nil
}
