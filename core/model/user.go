package model

import "fmt"

// Role defines the privilege level of a caller. Authentication itself is
// handled outside the core; operations receive the resolved role as a value.
type Role int

const (
	RoleOperator Role = iota
	RoleManager
	RoleAdmin
)

// String returns a human-readable representation of the role.
func (r Role) String() string {
	switch r {
	case RoleOperator:
		return "operator"
	case RoleManager:
		return "manager"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseRole converts a wire string into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "operator":
		return RoleOperator, nil
	case "manager":
		return RoleManager, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("invalid role %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// User is a fleet operator, manager or administrator.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}
