package service

import (
	"context"

	"intake/internal/domain"
)

// SessionService turns a verified identity into a cookie token and back.
// Lookup is the narrow gate the notification gateway authenticates against;
// it must not expose anything beyond the owning user.
type SessionService interface {
	Issue(ctx context.Context, userID domain.UserID, ip, ua string) (token string, sess *domain.Session, err error)
	Lookup(ctx context.Context, token string) (domain.UserID, domain.SessionID, error)
	Revoke(ctx context.Context, sessionID domain.SessionID) error
}
