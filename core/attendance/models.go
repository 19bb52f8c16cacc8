package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/notas/core/class"
)

// DateLayout is the format of attendance dates.
const DateLayout = "2006-01-02"

// Record marks a student present or absent in a class on a date.
type Record struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	ClassID   string    `json:"class_id"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Present   bool      `json:"present"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type Mark struct {
	StudentID string `json:"student_id" validate:"required"`
	Present   bool   `json:"present"`
}

type SaveRequest struct {
	Marks []Mark `json:"marks" validate:"dive"`
}

func (sr *SaveRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(sr)
}

type (
	// SheetRow is a student's mark for the sheet date. Recorded is false for unsaved defaults.
	SheetRow struct {
		Student  class.RosterEntry `json:"student"`
		Present  bool              `json:"present"`
		Recorded bool              `json:"recorded"`
	}

	Sheet struct {
		ClassID string     `json:"class_id"`
		Date    string     `json:"date"`
		Rows    []SheetRow `json:"rows"`
	}

	// History is the attendance of a student in a class, most recent first.
	History struct {
		ClassID    string   `json:"class_id"`
		StudentID  string   `json:"student_id"`
		Records    []Record `json:"records"`
		Present    int      `json:"present"`
		Total      int      `json:"total"`
		Percentage *float64 `json:"percentage"` // nil when there are no records
	}
)
