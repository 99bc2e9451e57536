package auth

import "errors"

// Role represents an authorisation tier carried in the token.
type Role string

const (
	// RoleViewer can search and read factory data and its history.
	RoleViewer Role = "viewer"

	// RoleOperator is a production line account: it provisions devices
	// and reads everything a viewer can.
	RoleOperator Role = "operator"

	// RoleAdmin additionally updates and decommissions vehicles.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrForbidden    = errors.New("insufficient permissions")
	ErrInvalidRole  = errors.New("invalid role")
)
