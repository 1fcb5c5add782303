package middleware

import (
	"net/http"

	"github.com/gosuda/boardsync/internal/auth"
)

// RequireRole admits requests whose token role is one of roles. Chain it
// after Auth. A request without a role gets 401; a role outside the set
// gets 403.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok || role == "" {
				http.Error(w, `{"title":"Unauthorized","status":401,"detail":"authentication required"}`, http.StatusUnauthorized)
				return
			}

			if _, match := allowed[role]; !match {
				http.Error(w, `{"title":"Forbidden","status":403,"detail":"insufficient permissions"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireBoardRole admits any of the three board roles.
func RequireBoardRole() func(http.Handler) http.Handler {
	return RequireRole(auth.RoleOwner, auth.RoleCollaborator, auth.RoleViewer)
}
