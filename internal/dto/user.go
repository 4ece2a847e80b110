package dto

import (
	"time"

	"intake/internal/domain"
)

// UserResponse is the safe projection returned to clients. The password hash
// and OTP internals never cross this boundary.
type UserResponse struct {
	ID                  string     `json:"id"`
	Username            string     `json:"username"`
	PreferredAuthMethod string     `json:"preferredAuthMethod"`
	HasPassword         bool       `json:"hasPassword"`
	IsAdmin             bool       `json:"isAdmin"`
	LastLogin           *time.Time `json:"lastLogin,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
}

func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:                  u.ID.String(),
		Username:            u.Username,
		PreferredAuthMethod: string(u.PreferredAuthMethod),
		HasPassword:         u.HasPassword,
		IsAdmin:             u.IsAdmin,
		LastLogin:           u.LastLogin,
		CreatedAt:           u.CreatedAt,
	}
}

type LoginResponse struct {
	User UserResponse `json:"user"`
	// Deprecated and Warning are set on every password-authenticated
	// response while the migration window is open.
	Deprecated bool   `json:"deprecated,omitempty"`
	Warning    string `json:"warning,omitempty"`
}

type MigrationStatusResponse struct {
	DaysRemaining         int        `json:"daysRemaining"`
	NotifiedAt            time.Time  `json:"notifiedAt"`
	ReminderCount         int        `json:"reminderCount"`
	LastReminder          *time.Time `json:"lastReminder,omitempty"`
	ScheduledDeletionDate time.Time  `json:"scheduledDeletionDate"`
}
