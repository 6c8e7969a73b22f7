package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/simonkvalheim/hm9-console/internal/apiclient"
	"github.com/simonkvalheim/hm9-console/internal/model"
	"github.com/simonkvalheim/hm9-console/internal/session"
)

// ContextKey is the type for context keys to avoid collisions
type ContextKey string

const (
	// SessionKey is the context key for the caller's session
	SessionKey ContextKey = "session"
	// UserKey is the context key for the caller's profile
	UserKey ContextKey = "user"
)

// SessionLoader resolves session ids to live sessions
type SessionLoader interface {
	Load(ctx context.Context, id string) (*session.Session, error)
	Logout(ctx context.Context, id string) error
}

// AuthMiddleware loads the caller's session from its cookie and adds it to context
type AuthMiddleware struct {
	sessions SessionLoader
	cookie   session.CookieConfig
	logger   *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(sessions SessionLoader, cookie session.CookieConfig, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, cookie: cookie, logger: logger}
}

// RequireSession is middleware that requires a logged-in session whose token
// the banking API still accepts
func (m *AuthMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := m.cookie.Read(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		s, err := m.sessions.Load(r.Context(), id)
		if err != nil {
			if errors.Is(err, model.ErrNotAuthenticated) {
				m.cookie.Clear(w)
				writeError(w, http.StatusUnauthorized, "Session expired")
				return
			}
			m.logger.Error("failed to load session", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		user, err := s.EnsureUser(r.Context())
		if err != nil {
			// The banking API revoked the token; end the session
			if apiclient.StatusCode(err, 0) == http.StatusUnauthorized || errors.Is(err, model.ErrNotAuthenticated) {
				if err := m.sessions.Logout(r.Context(), id); err != nil {
					m.logger.Error("failed to end rejected session", "error", err)
				}
				m.cookie.Clear(w)
				writeError(w, http.StatusUnauthorized, "Session expired")
				return
			}
			m.logger.Warn("failed to load profile", "error", err)
			writeError(w, http.StatusBadGateway, apiclient.Message(err))
			return
		}

		ctx := context.WithValue(r.Context(), SessionKey, s)
		ctx = context.WithValue(ctx, UserKey, user)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireActive rejects suspended accounts. Must run after RequireSession.
func RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if user.IsSuspended() {
			writeError(w, http.StatusForbidden, model.ErrAccountSuspended.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects callers without administrator rights. Must run after RequireSession.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if !user.IsAdmin {
			writeError(w, http.StatusForbidden, model.ErrNotAdmin.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetSession extracts the session from the request context
// Returns nil if not authenticated (shouldn't happen if RequireSession was used)
func GetSession(ctx context.Context) *session.Session {
	s, _ := ctx.Value(SessionKey).(*session.Session)
	return s
}

// GetUser extracts the caller's profile from the request context
func GetUser(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(UserKey).(model.User)
	return u, ok
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
