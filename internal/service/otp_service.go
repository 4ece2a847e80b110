package service

import (
	"context"

	"intake/internal/domain"
)

// OTPService issues and verifies one-time codes. Both operations consult the
// brute-force lockout state first and fail with *domain.LockedError while it
// is active.
type OTPService interface {
	// Create invalidates any pending unused code for the user, stores a
	// fresh one and returns it. Delivery is the caller's concern.
	Create(ctx context.Context, userID domain.UserID, ip, deviceInfo string) (string, error)
	// Verify consumes a pending code. A wrong code below the attempt
	// threshold returns (false, nil); crossing it returns
	// domain.ErrMaxAttempts; a correct-but-stale code returns
	// domain.ErrOTPExpired.
	Verify(ctx context.Context, userID domain.UserID, code, ip, deviceInfo string) (bool, error)
}
