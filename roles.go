package auth

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleUser,
		RoleGuide,
		RoleLeadGuide,
		RoleAdmin,
	}
}

// RoleSet is an explicit set of permitted roles. Protected routes declare
// their set alongside the route registration rather than passing a variadic
// list into the middleware internals.
type RoleSet map[UserRole]struct{}

// NewRoleSet builds a RoleSet from the given roles
func NewRoleSet(roles ...UserRole) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Contains reports membership of a role in the set
func (s RoleSet) Contains(role UserRole) bool {
	_, ok := s[role]
	return ok
}
