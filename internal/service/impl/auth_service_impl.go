package impl

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"intake/internal/domain"
	"intake/internal/dto"
	"intake/internal/observability/metrics"
	"intake/internal/service"
	"intake/internal/store"

	"github.com/google/uuid"
)

var _ service.AuthService = (*AuthServiceImpl)(nil)

// PasswordDeprecationWarning goes out on every password-authenticated
// response while the retirement window is open.
const PasswordDeprecationWarning = "password login is deprecated and will be disabled; please switch to one-time codes"

type AuthServiceImpl struct {
	Store     *store.Store
	OTP       service.OTPService
	Passwords service.PasswordService
	Migration service.MigrationService
	// EchoOTP puts the issued code in the response body. Dev only.
	EchoOTP bool

	now func() time.Time
}

func NewAuthServiceImpl(st *store.Store, otp service.OTPService, pw service.PasswordService, mig service.MigrationService) *AuthServiceImpl {
	return &AuthServiceImpl{
		Store:     st,
		OTP:       otp,
		Passwords: pw,
		Migration: mig,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// RequestOTP finds or creates the user, then delegates to the OTP engine.
// First contact with an unknown username registers it.
func (a *AuthServiceImpl) RequestOTP(ctx context.Context, r dto.RequestOTPRequest, ip, ua string) (*dto.RequestOTPResponse, error) {
	username := strings.TrimSpace(strings.ToLower(r.Username))
	if username == "" {
		return nil, ErrEmptyUsername
	}

	user, err := a.Store.Users().GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrRecordNotFound) {
			return nil, err
		}
		now := a.now()
		user = &domain.User{
			ID:                  uuid.New(),
			Username:            username,
			PreferredAuthMethod: domain.AuthMethodOTP,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := a.Store.Users().Create(ctx, user); err != nil {
			return nil, err
		}
		slog.Info("user registered on first otp request", "user_id", user.ID, "username", username)
	}

	code, err := a.OTP.Create(ctx, user.ID, ip, ua)
	if err != nil {
		return nil, err
	}

	resp := &dto.RequestOTPResponse{
		Message: "verification code sent",
		UserID:  user.ID.String(),
	}
	if a.EchoOTP {
		resp.Code = code
	}
	return resp, nil
}

func (a *AuthServiceImpl) VerifyOTP(ctx context.Context, r dto.VerifyOTPRequest, ip, ua string) (*dto.UserResponse, error) {
	userID, err := uuid.Parse(strings.TrimSpace(r.UserID))
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	ok, err := a.OTP.Verify(ctx, userID, strings.TrimSpace(r.OTP), ip, ua)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("otp", "failure").Inc()
		return nil, err
	}
	if !ok {
		metrics.LoginsTotal.WithLabelValues("otp", "failure").Inc()
		return nil, domain.ErrOTPInvalid
	}

	user, err := a.Store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	metrics.LoginsTotal.WithLabelValues("otp", "success").Inc()
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

func (a *AuthServiceImpl) PasswordLogin(ctx context.Context, r dto.PasswordLoginRequest, ip, ua string) (*dto.LoginResponse, error) {
	username := strings.TrimSpace(strings.ToLower(r.Username))
	if username == "" || r.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := a.Store.Users().GetByUsername(ctx, username)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("password", "failure").Inc()
		// Same failure for unknown user and bad password.
		return nil, domain.ErrInvalidCredentials
	}
	if !user.HasPassword || user.PasswordHash == "" {
		metrics.LoginsTotal.WithLabelValues("password", "failure").Inc()
		return nil, domain.ErrInvalidCredentials
	}
	if !a.Passwords.Verify(r.Password, user.PasswordHash) {
		metrics.LoginsTotal.WithLabelValues("password", "failure").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	now := a.now()
	user.LastLogin = &now
	user.RecordDevice(ip, ua, now)
	if err := a.Store.Users().Save(ctx, user); err != nil {
		return nil, err
	}

	// Every password login keeps the retirement clock honest: start it if
	// it somehow is not running yet.
	if !user.Migration.Active() {
		if err := a.Migration.StartMigration(ctx, user.ID); err != nil {
			slog.Warn("migration start on login failed", "user_id", user.ID, "error", err)
		}
	}

	metrics.LoginsTotal.WithLabelValues("password", "success").Inc()
	return &dto.LoginResponse{
		User:       dto.NewUserResponse(user),
		Deprecated: true,
		Warning:    PasswordDeprecationWarning,
	}, nil
}

func (a *AuthServiceImpl) SetupPassword(ctx context.Context, userID domain.UserID, r dto.SetupPasswordRequest) (*dto.UserResponse, error) {
	if r.Password == "" {
		return nil, ErrEmptyPassword
	}
	if len(r.Password) < 8 {
		return nil, ErrPasswordLength
	}
	if r.Password != r.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	user, err := a.Store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	hash, err := a.Passwords.Hash(r.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.HasPassword = true
	user.UpdatedAt = a.now()
	if err := a.Store.Users().Save(ctx, user); err != nil {
		return nil, err
	}

	// Setting up (or re-enabling) a password restarts the retirement clock.
	if err := a.Migration.StartMigration(ctx, user.ID); err != nil {
		return nil, err
	}

	user, err = a.Store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

func (a *AuthServiceImpl) ChangeAuthMethod(ctx context.Context, userID domain.UserID, method string) (*dto.UserResponse, error) {
	m := domain.AuthMethod(strings.TrimSpace(strings.ToLower(method)))
	if m != domain.AuthMethodOTP && m != domain.AuthMethodPassword {
		return nil, ErrUnknownAuthMethod
	}

	user, err := a.Store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if m == domain.AuthMethodPassword && !user.HasPassword {
		return nil, ErrPasswordNotSet
	}

	user.PreferredAuthMethod = m
	user.UpdatedAt = a.now()
	if err := a.Store.Users().Save(ctx, user); err != nil {
		return nil, err
	}
	resp := dto.NewUserResponse(user)
	return &resp, nil
}
