package class

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/notas/core"
)

// Class is a course owned by a teacher. Students join it with its Code.
type Class struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	Description  string    `json:"description"`
	TeacherID    string    `json:"teacher_id"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	StudentCount int       `json:"student_count"`
}

type Enrollment struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	ClassID    string    `json:"class_id"`
	EnrolledAt time.Time `json:"enrolled_at"` // UTC
}

// RosterEntry is an enrolled student as shown to the class teacher.
type RosterEntry struct {
	StudentID  string    `json:"student_id"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	AvatarURL  string    `json:"avatar_url"`
	EnrolledAt time.Time `json:"enrolled_at"` // UTC
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"max=500"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// JoinRequest is sent by a student to enroll in a class.
type JoinRequest struct {
	Code string `json:"code" validate:"required"`
}

func (jr *JoinRequest) Validate(validate *validator.Validate) error {
	jr.Code = NormalizeCode(jr.Code)
	return validate.Struct(jr)
}
