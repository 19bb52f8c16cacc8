package gradebook

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/class"
	"github.com/trezcool/notas/core/grading"
)

// GradeItem is an evaluation of a class worth Percentage of its Corte.
type GradeItem struct {
	ID         string        `json:"id"`
	ClassID    string        `json:"class_id"`
	Name       string        `json:"name"`
	Corte      grading.Corte `json:"corte"`
	Percentage float64       `json:"percentage"`
	CreatedAt  time.Time     `json:"created_at"` // UTC
}

// Grade is the score of a student on a grade item, on the 0-5 scale.
type Grade struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	GradeItemID string    `json:"grade_item_id"`
	Score       float64   `json:"score"`
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// NewGradeItem contains information needed to create a new GradeItem.
type NewGradeItem struct {
	Name       string        `json:"name" validate:"required,notblank,max=100"`
	Corte      grading.Corte `json:"corte" validate:"required,corte"`
	Percentage float64       `json:"percentage" validate:"required,gt=0,lte=100,twodecimals"`
}

func (ni *NewGradeItem) Validate(validate *validator.Validate) error {
	ni.Name = core.CleanString(ni.Name)
	return validate.Struct(ni)
}

// GradeInput is a score typed by the teacher. Out of range scores are clamped, not rejected.
type GradeInput struct {
	StudentID   string  `json:"student_id" validate:"required"`
	GradeItemID string  `json:"grade_item_id" validate:"required"`
	Score       float64 `json:"score"`
}

type SaveGradesRequest struct {
	Grades []GradeInput `json:"grades" validate:"required,dive"`
}

func (sr *SaveGradesRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(sr)
}

type (
	// SheetRow holds the recorded scores of a student, indexed by grade item ID.
	SheetRow struct {
		Student class.RosterEntry  `json:"student"`
		Scores  map[string]float64 `json:"scores"`
	}

	// Sheet is the grade entry matrix of a corte: enrolled students by grade items.
	Sheet struct {
		ClassID string        `json:"class_id"`
		Corte   grading.Corte `json:"corte"`
		Budget  grading.Usage `json:"budget"`
		Items   []GradeItem   `json:"items"`
		Rows    []SheetRow    `json:"rows"`
	}
)

type (
	ItemScore struct {
		Item  GradeItem `json:"item"`
		Score *float64  `json:"score"` // nil when ungraded
	}

	CorteReport struct {
		Corte        grading.Corte `json:"corte"`
		Weight       float64       `json:"weight"`
		Cap          float64       `json:"cap"`
		Items        []ItemScore   `json:"items"`
		Average      *float64      `json:"average"` // nil when no item is graded
		Contribution float64       `json:"contribution"`
	}

	// Report is the grade summary of a student in a class.
	Report struct {
		ClassID    string        `json:"class_id"`
		StudentID  string        `json:"student_id"`
		Cortes     []CorteReport `json:"cortes"`
		FinalGrade float64       `json:"final_grade"`
	}

	ClassReportRow struct {
		Student class.RosterEntry `json:"student"`
		Report  Report            `json:"report"`
	}

	// ClassReport holds the Report of every enrolled student.
	ClassReport struct {
		ClassID string           `json:"class_id"`
		Items   []GradeItem      `json:"items"`
		Rows    []ClassReportRow `json:"rows"`
	}
)
