package authz

// Authorize reports ALLOW when the role set intersects the required
// roles. An empty required list allows everything; an empty role set is
// denied whenever at least one role is required. Pure function, no state.
func Authorize(roles RoleSet, required ...Role) bool {
	if len(required) == 0 {
		return true
	}
	for _, role := range required {
		if roles.Has(role) {
			return true
		}
	}
	return false
}

// AuthorizeAll reports ALLOW only when every required role is held.
func AuthorizeAll(roles RoleSet, required ...Role) bool {
	for _, role := range required {
		if !roles.Has(role) {
			return false
		}
	}
	return true
}
