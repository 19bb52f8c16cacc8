package class

import (
	"context"
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/notas/core"
)

const (
	CodeLength    = 6
	codeAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeMaxTrials = 5

	// store constraints
	CodeConstraint       = "classes_code_key"
	EnrollmentConstraint = "enrollments_student_id_class_id_key"
)

var (
	codeRegex = regexp.MustCompile("^[A-Z0-9]{6}$")
	codeFunc  = generateCode // mockable

	// errors
	ErrNotFound        = errors.New("class not found")
	ErrInvalidCode     = errors.New("invalid class code")
	ErrAlreadyEnrolled = errors.New("already enrolled in this class")
	ErrCodeExhausted   = errors.New("could not generate a unique class code")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, c Class) (Class, error)
		GetClassByID(ctx context.Context, id string) (Class, error)
		GetClassByCode(ctx context.Context, code string) (Class, error)
		// ListClassesByTeacher returns the teacher's classes, newest first, with their StudentCount.
		ListClassesByTeacher(ctx context.Context, teacherID string) ([]Class, error)
		// ListClassesByStudent returns the classes the student is enrolled in, newest enrollment first.
		ListClassesByStudent(ctx context.Context, studentID string) ([]Class, error)
		// DeleteClass deletes the class with its enrollments, grade items, grades and attendance.
		DeleteClass(ctx context.Context, id string) error
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
		// ListRoster returns the enrolled students ordered by name.
		ListRoster(ctx context.Context, classID string) ([]RosterEntry, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NormalizeCode trims and upper-cases a class code as typed by a student.
func NormalizeCode(code string) string {
	return strings.ToUpper(core.CleanString(code))
}

func generateCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	code := make([]byte, CodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// Create creates a class owned by teacherID with a fresh join code.
// A code collision is retried with a new code, up to 5 attempts.
func (svc *Service) Create(ctx context.Context, teacherID string, nc NewClass) (Class, error) {
	c := Class{
		ID:          uuid.New().String(),
		Name:        nc.Name,
		Description: nc.Description,
		TeacherID:   teacherID,
		CreatedAt:   time.Now().UTC(),
	}

	for i := 0; i < codeMaxTrials; i++ {
		code, err := codeFunc()
		if err != nil {
			return Class{}, errors.Wrap(err, "generating class code")
		}
		c.Code = code

		created, err := svc.repo.CreateClass(ctx, c)
		if err == nil {
			return created, nil
		}
		var cErr *core.ConflictError
		if !errors.As(err, &cErr) || cErr.Constraint != CodeConstraint {
			return Class{}, errors.Wrap(err, "creating class")
		}
	}
	return Class{}, ErrCodeExhausted
}

func (svc *Service) ListForTeacher(ctx context.Context, teacherID string) ([]Class, error) {
	return svc.repo.ListClassesByTeacher(ctx, teacherID)
}

func (svc *Service) ListForStudent(ctx context.Context, studentID string) ([]Class, error) {
	return svc.repo.ListClassesByStudent(ctx, studentID)
}

func (svc *Service) Get(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClassByID(ctx, id)
}

func (svc *Service) GetByCode(ctx context.Context, code string) (Class, error) {
	return svc.repo.GetClassByCode(ctx, NormalizeCode(code))
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteClass(ctx, id)
}

func (svc *Service) Roster(ctx context.Context, classID string) ([]RosterEntry, error) {
	return svc.repo.ListRoster(ctx, classID)
}

func (svc *Service) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	return svc.repo.IsEnrolled(ctx, classID, studentID)
}

// Join enrolls the student in the class identified by code.
// An unknown code is a ValidationError, an existing enrollment a ConflictError.
func (svc *Service) Join(ctx context.Context, studentID, code string) (Class, error) {
	code = NormalizeCode(code)
	invalidErr := core.NewValidationError(ErrInvalidCode, core.FieldError{Field: "code", Error: ErrInvalidCode.Error()})
	if !codeRegex.MatchString(code) {
		return Class{}, invalidErr
	}

	c, err := svc.repo.GetClassByCode(ctx, code)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Class{}, invalidErr
		}
		return Class{}, errors.Wrap(err, "finding class by code")
	}

	_, err = svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:         uuid.New().String(),
		StudentID:  studentID,
		ClassID:    c.ID,
		EnrolledAt: time.Now().UTC(),
	})
	if err != nil {
		if core.IsConflict(err) {
			return Class{}, core.NewConflictError(ErrAlreadyEnrolled, EnrollmentConstraint)
		}
		return Class{}, errors.Wrap(err, "creating enrollment")
	}
	return c, nil
}
