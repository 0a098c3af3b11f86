package models

// Role is the account's position in the ordered hierarchy
// user < admin < super_admin. Comparisons go through Level so
// authorization checks cannot accidentally compare raw strings.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Level returns the rank of the role in the hierarchy. Unknown values rank
// below user so a corrupted role never passes an authorization check.
func (r Role) Level() int {
	switch r {
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperAdmin:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether r ranks at or above other.
func (r Role) AtLeast(other Role) bool {
	return r.Level() >= other.Level()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.Level() > 0
}
