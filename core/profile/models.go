package profile

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/notas/core"
)

// Profile is an identity of the application: a teacher or a student.
type Profile struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	Role         core.Role `json:"role"`
	AvatarURL    string    `json:"avatar_url"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (p *Profile) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.PasswordHash = hash
	return nil
}

func (p *Profile) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(p.PasswordHash, []byte(pwd))
}

func (p Profile) IsTeacher() bool { return p.Role == core.RoleTeacher }
func (p Profile) IsStudent() bool { return p.Role == core.RoleStudent }

// Actor returns the profile as the authenticated actor of a request.
func (p Profile) Actor() core.Actor {
	return core.Actor{ID: p.ID, Email: p.Email, Role: p.Role}
}

// NewProfile contains information needed to register a new Profile.
type NewProfile struct {
	FullName        string    `json:"full_name" validate:"required,notblank"`
	Email           string    `json:"email" validate:"required,email"`
	Password        string    `json:"password" validate:"required"`
	PasswordConfirm string    `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            core.Role `json:"role" validate:"required,oneof=teacher student"`
}

func (np *NewProfile) Validate(validate *validator.Validate, svc *Service) error {
	np.FullName = core.CleanString(np.FullName)
	np.Email = core.CleanString(np.Email, true /* lower */)

	if err := validate.Struct(np); err != nil {
		return err
	}
	return svc.CheckUniqueness(np.Email)
}

// UpdateProfile defines what a profile owner may modify.
type UpdateProfile struct {
	FullName     string `json:"full_name" validate:"omitempty,notblank"`
	RemoveAvatar bool   `json:"remove_avatar"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.FullName = core.CleanString(up.FullName)
	return validate.Struct(up)
}

// Credentials are exchanged for an access token.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Email = core.CleanString(c.Email, true /* lower */)
	return validate.Struct(c)
}

// ResetPassword confirms a password reset requested by email.
type ResetPassword struct {
	UID             string `json:"uid" validate:"required"`
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (rp *ResetPassword) Validate(validate *validator.Validate) error {
	rp.UID = core.CleanString(rp.UID)
	rp.Token = core.CleanString(rp.Token)
	return validate.Struct(rp)
}
