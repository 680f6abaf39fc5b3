package models

// Role is an operator's authorization level.
type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleSuperuser Role = "superuser"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperuser:
		return true
	}
	return false
}

// CanModerate reports whether the role may submit manual review decisions.
func (r Role) CanModerate() bool {
	return r == RoleAdmin || r == RoleSuperuser
}

// Actor is the authenticated operator.
type Actor struct {
	ID     string `json:"userId,omitempty"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Role   Role   `json:"role,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// User is a platform account as returned by the role-change endpoint.
type User struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}
