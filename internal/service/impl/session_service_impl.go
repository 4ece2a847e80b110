package impl

import (
	"context"
	"errors"
	"time"

	"intake/internal/domain"
	"intake/internal/netutil"
	"intake/internal/service"
	"intake/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var _ service.SessionService = (*SessionServiceImpl)(nil)

type SessionConfig struct {
	Issuer     string
	TTL        time.Duration
	SigningKey []byte // HS256 secret
}

// SessionServiceImpl binds an HS256 cookie token to a session row: the token
// proves integrity, the row carries revocation and expiry.
type SessionServiceImpl struct {
	cfg   SessionConfig
	store *store.Store
	now   func() time.Time
}

func NewSessionServiceHS256(cfg SessionConfig, st *store.Store) (*SessionServiceImpl, error) {
	if len(cfg.SigningKey) < 32 {
		return nil, ErrSessionKeyTooShort
	}
	return &SessionServiceImpl{
		cfg:   cfg,
		store: st,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *SessionServiceImpl) Issue(ctx context.Context, userID domain.UserID, ip, ua string) (string, *domain.Session, error) {
	now := s.now()
	if normalized, ok := netutil.NormalizeIP(ip); ok {
		ip = normalized
	}

	sess := &domain.Session{
		ID:        uuid.New(),
		UserID:    userID,
		ExpiresAt: now.Add(s.cfg.TTL),
		CreatedAt: now,
		IP:        ip,
		UserAgent: netutil.TruncateUserAgent(ua),
	}
	if err := s.store.Sessions().Create(ctx, sess); err != nil {
		return "", nil, err
	}

	claims := jwt.RegisteredClaims{
		Issuer:    s.cfg.Issuer,
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        sess.ID.String(), // binds the token to the session row
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SigningKey)
	if err != nil {
		return "", nil, err
	}
	return token, sess, nil
}

// Lookup resolves a cookie value to its owning user, or fails with
// domain.ErrSessionInvalid. This is the only gate the notification gateway
// sees.
func (s *SessionServiceImpl) Lookup(ctx context.Context, token string) (domain.UserID, domain.SessionID, error) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.cfg.SigningKey, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, uuid.Nil, domain.ErrSessionInvalid
	}
	if claims.Issuer != s.cfg.Issuer {
		return uuid.Nil, uuid.Nil, domain.ErrSessionInvalid
	}

	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return uuid.Nil, uuid.Nil, domain.ErrSessionInvalid
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, uuid.Nil, domain.ErrSessionInvalid
	}

	sess, err := s.store.Sessions().GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return uuid.Nil, uuid.Nil, domain.ErrSessionInvalid
		}
		return uuid.Nil, uuid.Nil, err
	}
	if !sess.Live(s.now()) || sess.UserID != userID {
		return uuid.Nil, uuid.Nil, domain.ErrSessionInvalid
	}
	return userID, sessionID, nil
}

func (s *SessionServiceImpl) Revoke(ctx context.Context, sessionID domain.SessionID) error {
	return s.store.Sessions().Revoke(ctx, sessionID, s.now())
}
