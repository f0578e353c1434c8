package auth

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ValidRole reports whether role is one the gate understands.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}
