package core

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

var AllRoles = []Role{RoleTeacher, RoleStudent}

func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// Actor is the authenticated profile performing a request.
type Actor struct {
	ID    string
	Email string
	Role  Role
}

func (a Actor) CurrentUserID() string { return a.ID }
func (a Actor) CurrentRole() Role     { return a.Role }
func (a Actor) IsTeacher() bool       { return a.Role == RoleTeacher }
func (a Actor) IsStudent() bool       { return a.Role == RoleStudent }
