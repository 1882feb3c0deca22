package middleware

import (
	"context"
	"net/http"
	"strconv"
)

type contextKey string

const ownerIDKey contextKey = "owner_id"

func OwnerIDFromContext(ctx context.Context) (int64, bool) {
	ownerID, ok := ctx.Value(ownerIDKey).(int64)
	return ownerID, ok
}

// WithOwnerID stores an owner ID on the context. Exposed for handler tests.
func WithOwnerID(ctx context.Context, ownerID int64) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// Owner resolves the calling owner from the X-Owner-ID header set by the
// authenticating proxy in front of this service.
func Owner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("X-Owner-ID")
		if header == "" {
			http.Error(w, "missing X-Owner-ID header", http.StatusUnauthorized)
			return
		}
		ownerID, err := strconv.ParseInt(header, 10, 64)
		if err != nil || ownerID <= 0 {
			http.Error(w, "invalid X-Owner-ID header", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), ownerID)))
	})
}
