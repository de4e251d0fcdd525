package auth

import "errors"

// Role is the authorisation tier carried in a token.
type Role string

const (
	// RoleViewer may read records and the audit trail.
	RoleViewer Role = "viewer"

	// RoleOperator may also write and process records.
	RoleOperator Role = "operator"
)

// ValidRoles lists the roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator}

// IsValidRole reports whether r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if v == r {
			return true
		}
	}
	return false
}

// Auth errors.
var (
	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrInvalidRole  = errors.New("auth: invalid role")
	ErrNoSecret     = errors.New("auth: signing secret is empty")
)
