package service

import (
	"context"

	"intake/internal/domain"
	"intake/internal/dto"
)

type AuthService interface {
	// RequestOTP creates the user on first contact, then issues a code.
	RequestOTP(ctx context.Context, r dto.RequestOTPRequest, ip, ua string) (*dto.RequestOTPResponse, error)
	// VerifyOTP turns a correct code into an authenticated user.
	VerifyOTP(ctx context.Context, r dto.VerifyOTPRequest, ip, ua string) (*dto.UserResponse, error)
	// PasswordLogin is the deprecated path: every success carries a
	// deprecation warning and starts the migration clock if absent.
	PasswordLogin(ctx context.Context, r dto.PasswordLoginRequest, ip, ua string) (*dto.LoginResponse, error)
	SetupPassword(ctx context.Context, userID domain.UserID, r dto.SetupPasswordRequest) (*dto.UserResponse, error)
	ChangeAuthMethod(ctx context.Context, userID domain.UserID, method string) (*dto.UserResponse, error)
}
