package auth

import "taskdesk/internal/domain"

// RequireRole is the coarse role gate applied per endpoint. An empty
// allow-list always denies.
func RequireRole(pc PrincipalContext, allowed ...domain.Role) error {
	for _, r := range allowed {
		if pc.Role == r {
			return nil
		}
	}
	return ForbiddenError{Reason: "role " + string(pc.Role) + " is not authorized"}
}
