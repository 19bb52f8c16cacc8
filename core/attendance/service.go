package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/class"
	"github.com/trezcool/notas/core/grading"
)

var (
	// errors
	ErrInvalidDate = errors.New("date must be formatted as YYYY-MM-DD")
)

type (
	Repository interface {
		ListByClassDate(ctx context.Context, classID, date string) ([]Record, error)
		// ListByStudent returns the student's records in the class, most recent date first.
		ListByStudent(ctx context.Context, classID, studentID string) ([]Record, error)
		// ReplaceForDate makes records the complete attendance of the class on date, atomically:
		// concurrent readers see either the previous set or the new one.
		ReplaceForDate(ctx context.Context, classID, date string, records []Record) error
	}

	// Roster lists the students enrolled in a class.
	Roster interface {
		Roster(ctx context.Context, classID string) ([]class.RosterEntry, error)
	}

	Service struct {
		repo   Repository
		roster Roster
	}
)

func NewService(repo Repository, roster Roster) *Service {
	return &Service{repo: repo, roster: roster}
}

// ParseDate validates a YYYY-MM-DD date and returns it normalized.
func ParseDate(date string) (string, error) {
	t, err := time.Parse(DateLayout, core.CleanString(date))
	if err != nil {
		return "", core.NewValidationError(ErrInvalidDate, core.FieldError{Field: "date", Error: ErrInvalidDate.Error()})
	}
	return t.Format(DateLayout), nil
}

// Sheet returns every enrolled student with their mark on date. Students without a saved mark default to present.
func (svc *Service) Sheet(ctx context.Context, classID, date string) (Sheet, error) {
	date, err := ParseDate(date)
	if err != nil {
		return Sheet{}, err
	}

	students, err := svc.roster.Roster(ctx, classID)
	if err != nil {
		return Sheet{}, errors.Wrap(err, "querying roster")
	}
	records, err := svc.repo.ListByClassDate(ctx, classID, date)
	if err != nil {
		return Sheet{}, errors.Wrap(err, "querying attendance")
	}

	present := make(map[string]bool, len(records))
	for _, r := range records {
		present[r.StudentID] = r.Present
	}

	sheet := Sheet{ClassID: classID, Date: date, Rows: make([]SheetRow, len(students))}
	for i, s := range students {
		row := SheetRow{Student: s, Present: true}
		if p, ok := present[s.StudentID]; ok {
			row.Present = p
			row.Recorded = true
		}
		sheet.Rows[i] = row
	}
	return sheet, nil
}

// Save replaces the attendance of the class on date with marks.
// Every mark must target an enrolled student; the last mark of a student wins.
func (svc *Service) Save(ctx context.Context, classID, date string, marks []Mark) ([]Record, error) {
	date, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	students, err := svc.roster.Roster(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying roster")
	}
	enrolled := make(map[string]struct{}, len(students))
	for _, s := range students {
		enrolled[s.StudentID] = struct{}{}
	}

	var fldErrs []core.FieldError
	now := time.Now().UTC()
	byStudent := make(map[string]int, len(marks))
	records := make([]Record, 0, len(marks))
	for i, m := range marks {
		if _, ok := enrolled[m.StudentID]; !ok {
			fldErrs = append(fldErrs, core.FieldError{Field: fmt.Sprintf("marks[%d].student_id", i), Error: "student is not enrolled in this class"})
			continue
		}
		r := Record{
			ID:        uuid.New().String(),
			StudentID: m.StudentID,
			ClassID:   classID,
			Date:      date,
			Present:   m.Present,
			CreatedAt: now,
		}
		if idx, ok := byStudent[m.StudentID]; ok {
			records[idx] = r
			continue
		}
		byStudent[m.StudentID] = len(records)
		records = append(records, r)
	}
	if fldErrs != nil {
		return nil, core.NewValidationError(nil, fldErrs...)
	}

	if err = svc.repo.ReplaceForDate(ctx, classID, date, records); err != nil {
		return nil, errors.Wrap(err, "saving attendance")
	}
	return records, nil
}

// StudentHistory returns the student's records and attendance percentage in the class.
func (svc *Service) StudentHistory(ctx context.Context, classID, studentID string) (History, error) {
	records, err := svc.repo.ListByStudent(ctx, classID, studentID)
	if err != nil {
		return History{}, errors.Wrap(err, "querying attendance")
	}

	h := History{ClassID: classID, StudentID: studentID, Records: records, Total: len(records)}
	if h.Records == nil {
		h.Records = []Record{}
	}
	marks := make([]grading.AttendanceRecord, len(records))
	for i, r := range records {
		marks[i].Present = r.Present
		if r.Present {
			h.Present++
		}
	}
	if pct, ok := grading.AttendancePercentage(marks); ok {
		h.Percentage = &pct
	}
	return h, nil
}
