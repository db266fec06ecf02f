package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/kazna/internal/auth"
	"github.com/dukerupert/kazna/internal/store"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "kazna_session"

// Identify resolves the session cookie, when present, and populates
// AuthContext. Requests without a valid session pass through as visitors.
// Admin privilege is looked up on every request so a revoke takes effect
// immediately.
func Identify(sessions *store.SessionStore, users *store.UserStore, admins *store.AdminStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := sessions.GetByToken(cookie.Value)
			if err != nil {
				logger.Error("identify session", "error", err)
			}
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetByID(sess.UserID)
			if err != nil || user == nil {
				next.ServeHTTP(w, r)
				return
			}

			isAdmin, err := admins.IsAdmin(user.ID)
			if err != nil {
				logger.Error("identify admin", "user_id", user.ID, "error", err)
			}

			ac := auth.AuthContext{
				UserID:    user.ID,
				SessionID: sess.ID,
				Email:     user.Email,
				Admin:     isAdmin,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireAdmin rejects visitors with 401 and signed-in non-admins with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "sign in required")
			return
		}
		if !ac.Admin {
			writeError(w, http.StatusForbidden, "administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
