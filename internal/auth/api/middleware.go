package authapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/Kiplya/DialogiX/internal/auth/session"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the verified session claims installed by the
// auth middleware.
func ClaimsFromContext(ctx context.Context) (session.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(session.Claims)
	return c, ok
}

// RequireAuth verifies the bearer access token, the refresh cookie
// presence, and the user-agent fingerprint before calling next. Every
// failure yields the same 401 so callers cannot probe which check
// rejected them.
func (h *Handler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		_, refreshPresent := h.refreshTokenFromCookie(r)
		fingerprint := strings.TrimSpace(r.UserAgent())

		claims, err := h.sessions.Authorize(r.Context(), token, refreshPresent, fingerprint)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), claimsContextKey{}, claims)))
	}
}
