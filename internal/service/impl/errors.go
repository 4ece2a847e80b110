package impl

import "errors"

var (
	ErrEmptyUsername      = errors.New("empty username")
	ErrEmptyPassword      = errors.New("empty password")
	ErrPasswordLength     = errors.New("password too short")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordNotSet     = errors.New("no password configured for this account")
	ErrUnknownAuthMethod  = errors.New("unknown auth method")
	ErrMalformedHash      = errors.New("malformed password hash")
	ErrSessionKeyTooShort = errors.New("session signing key too short")
)
