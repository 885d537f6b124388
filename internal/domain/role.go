package domain

import "fmt"

// Role is an ordered access level. A higher role satisfies every requirement
// of a lower one.
type Role int

const (
	RoleStandard Role = iota + 1
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleStandard: "ROLE_USER",
	RoleAdmin:    "ROLE_ADMIN",
}

// ParseRole converts a wire name such as "ROLE_ADMIN" into a Role.
func ParseRole(name string) (Role, error) {
	for role, n := range roleNames {
		if n == name {
			return role, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// Satisfies reports whether a holder of r may perform an operation that
// requires the given role.
func (r Role) Satisfies(required Role) bool {
	return r.Valid() && required.Valid() && r >= required
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
