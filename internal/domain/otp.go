package domain

import "time"

// OTP policy constants. Fixed, not configurable per call.
const (
	OTPTTL           = 5 * time.Minute
	OTPMaxAttempts   = 3
	OTPLockoutWindow = 15 * time.Minute
)

// OTPRecord is an ephemeral credential challenge. At most one unused record
// exists per user: creating a new one deletes prior unused ones. A record
// goes unused -> used exactly once and never back.
type OTPRecord struct {
	ID            OTPID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        UserID     `gorm:"type:uuid;index:ix_otp_user" json:"userId"`
	Code          string     `gorm:"type:text;not null" json:"-"`
	IsUsed        bool       `gorm:"not null;default:false" json:"isUsed"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	LastAttemptAt *time.Time `json:"lastAttemptAt"`
	IPAddress     string     `gorm:"type:text" json:"ipAddress"`
	DeviceInfo    string     `gorm:"type:text" json:"deviceInfo"`
	CreatedAt     time.Time  `gorm:"not null" json:"createdAt"`
	ExpiresAt     time.Time  `gorm:"not null;index" json:"expiresAt"`
}

func (OTPRecord) TableName() string { return "otp_records" }

func (o *OTPRecord) Expired(now time.Time) bool { return now.After(o.ExpiresAt) }

// LockedUntil returns the end of the lockout window, or the zero time when
// the record does not lock the account.
func (o *OTPRecord) LockedUntil() time.Time {
	if o.Attempts < OTPMaxAttempts || o.LastAttemptAt == nil {
		return time.Time{}
	}
	return o.LastAttemptAt.Add(OTPLockoutWindow)
}
