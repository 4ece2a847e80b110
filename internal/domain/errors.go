package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrOTPInvalid         = errors.New("invalid otp")
	ErrOTPExpired         = errors.New("otp expired")
	ErrMaxAttempts        = errors.New("maximum otp attempts exceeded")
	ErrSessionInvalid     = errors.New("invalid session")
)

// LockedError reports an active brute-force lockout and how long is left.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minute(s)", e.RemainingMinutes())
}

// RemainingMinutes rounds up so a caller never under-reports the wait.
func (e *LockedError) RemainingMinutes() int {
	mins := int(e.Remaining / time.Minute)
	if e.Remaining%time.Minute != 0 {
		mins++
	}
	if mins < 1 {
		mins = 1
	}
	return mins
}
