package http

import (
	"context"
	"net/http"

	"intake/internal/domain"
	"intake/internal/service"
)

type ctxKey string

const (
	ctxKeyUserID    ctxKey = "user_id"
	ctxKeySessionID ctxKey = "session_id"
)

// requireSession authenticates requests by the session cookie and stashes
// the resolved identity in the context.
func requireSession(sessions service.SessionService, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			userID, sessionID, err := sessions.Lookup(r.Context(), cookie.Value)
			if err != nil {
				http.Error(w, "invalid session", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
			ctx = context.WithValue(ctx, ctxKeySessionID, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userIDFrom(ctx context.Context) (domain.UserID, bool) {
	id, ok := ctx.Value(ctxKeyUserID).(domain.UserID)
	return id, ok
}

func sessionIDFrom(ctx context.Context) (domain.SessionID, bool) {
	id, ok := ctx.Value(ctxKeySessionID).(domain.SessionID)
	return id, ok
}
