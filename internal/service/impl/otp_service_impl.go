package impl

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"intake/internal/domain"
	"intake/internal/observability/metrics"
	"intake/internal/service"
	"intake/internal/store"
)

var _ service.OTPService = (*OTPServiceImpl)(nil)

// OTPServiceImpl keeps no in-memory state; the store's single-row updates
// are the only synchronization point, so it is safe to share across request
// handlers.
type OTPServiceImpl struct {
	store *store.Store
	now   func() time.Time
}

func NewOTPServiceImpl(st *store.Store) *OTPServiceImpl {
	return &OTPServiceImpl{
		store: st,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *OTPServiceImpl) Create(ctx context.Context, userID domain.UserID, ip, deviceInfo string) (string, error) {
	now := s.now()
	if err := s.checkLockout(ctx, userID, now); err != nil {
		return "", err
	}

	// One unused record per user: issuing a new code supersedes any
	// pending one, last writer wins.
	if err := s.store.OTPs().DeleteUnusedByUser(ctx, userID); err != nil {
		return "", err
	}

	code, err := randomCode()
	if err != nil {
		return "", err
	}
	rec := &domain.OTPRecord{
		UserID:     userID,
		Code:       code,
		IPAddress:  ip,
		DeviceInfo: deviceInfo,
		CreatedAt:  now,
		ExpiresAt:  now.Add(domain.OTPTTL),
	}
	if err := s.store.OTPs().Create(ctx, rec); err != nil {
		return "", err
	}

	metrics.OTPIssuedTotal.Inc()
	// Delivery stub: the real channel (SMS) hangs off this log line.
	slog.Info("otp issued", "user_id", userID, "expires_at", rec.ExpiresAt)
	slog.Debug("otp delivery stub", "user_id", userID, "code", code)
	return code, nil
}

func (s *OTPServiceImpl) Verify(ctx context.Context, userID domain.UserID, code, ip, deviceInfo string) (bool, error) {
	now := s.now()
	// Lockout is checked before even looking at the submitted code.
	if err := s.checkLockout(ctx, userID, now); err != nil {
		metrics.OTPVerificationsTotal.WithLabelValues("locked").Inc()
		return false, err
	}

	rec, err := s.store.OTPs().GetUnusedByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			// No pending challenge for this user at all.
			metrics.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
			return false, domain.ErrOTPInvalid
		}
		return false, err
	}

	if rec.Code == code {
		if rec.Expired(now) {
			metrics.OTPVerificationsTotal.WithLabelValues("expired").Inc()
			return false, domain.ErrOTPExpired
		}
		used, err := s.store.OTPs().MarkUsed(ctx, rec.ID, ip, deviceInfo, now)
		if err != nil {
			return false, err
		}
		if !used {
			// Raced with another verification or a superseding create.
			metrics.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
			return false, domain.ErrOTPInvalid
		}
		s.stampLogin(ctx, userID, ip, deviceInfo, now)
		metrics.OTPVerificationsTotal.WithLabelValues("success").Inc()
		return true, nil
	}

	// Wrong code: count the attempt against the pending record.
	updated, err := s.store.OTPs().RecordFailedAttempt(ctx, rec.ID, now)
	if err != nil {
		return false, err
	}
	if updated.Attempts >= domain.OTPMaxAttempts {
		metrics.OTPVerificationsTotal.WithLabelValues("max_attempts").Inc()
		return false, domain.ErrMaxAttempts
	}
	metrics.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
	return false, nil
}

// checkLockout fails with *domain.LockedError while the pending record has
// exhausted its attempts inside the lockout window.
func (s *OTPServiceImpl) checkLockout(ctx context.Context, userID domain.UserID, now time.Time) error {
	rec, err := s.store.OTPs().GetUnusedByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if until := rec.LockedUntil(); !until.IsZero() && now.Before(until) {
		return &domain.LockedError{Remaining: until.Sub(now)}
	}
	return nil
}

// stampLogin updates last-login and the device ring. Verification already
// succeeded, so failures here only get logged.
func (s *OTPServiceImpl) stampLogin(ctx context.Context, userID domain.UserID, ip, deviceInfo string, now time.Time) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		slog.Warn("otp verified but user load failed", "user_id", userID, "error", err)
		return
	}
	user.LastLogin = &now
	user.RecordDevice(ip, deviceInfo, now)
	if err := s.store.Users().Save(ctx, user); err != nil {
		slog.Warn("otp verified but login stamp failed", "user_id", userID, "error", err)
	}
}

func randomCode() (string, error) {
	// Uniform over 100000..999999.
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
