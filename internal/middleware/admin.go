package middleware

import (
	"context"
	"net/http"

	"bankcards/internal/store"
)

// OwnerDirectory is the slice of the owner store the admin check needs.
type OwnerDirectory interface {
	GetByID(ctx context.Context, ownerID int64) (store.Owner, error)
}

// RequireAdmin rejects requests whose resolved owner is not an admin. It
// must run after Owner.
func RequireAdmin(owners OwnerDirectory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID, ok := OwnerIDFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			owner, err := owners.GetByID(r.Context(), ownerID)
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			if !owner.IsAdmin {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
