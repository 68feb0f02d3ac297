package identity

// Role is supplied by the identity/session provider. The engine treats it as
// an opaque input; it never computes who a user is.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleFaculty Role = "FACULTY"
	RoleStudent Role = "STUDENT"
)

// Staff reports whether the role may approve, reject and confirm returns.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleFaculty
}

// Actor identifies who is issuing a mutating call.
type Actor struct {
	ID   string
	Role Role
}
