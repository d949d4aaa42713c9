package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"qrdine/internal/core/services"
	"strings"
)

type contextKey string

const StaffKey contextKey = "staff"

// StaffFromContext returns the claims injected by AuthMiddleware.
func StaffFromContext(ctx context.Context) (services.StaffClaims, bool) {
	c, ok := ctx.Value(StaffKey).(services.StaffClaims)
	return c, ok
}

// AuthMiddleware guards kitchen and admin routes with a staff bearer token.
func AuthMiddleware(tokenSvc *services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "authorization header required")
				return
			}
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				unauthorized(w, "invalid authorization format")
				return
			}
			claims, err := tokenSvc.ValidateToken(strings.TrimSpace(raw))
			if err != nil {
				unauthorized(w, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), StaffKey, claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
