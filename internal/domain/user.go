package domain

import "time"

type AuthMethod string

const (
	AuthMethodOTP      AuthMethod = "otp"
	AuthMethodPassword AuthMethod = "password"
)

// MaxKnownDevices bounds the per-user recent device list.
const MaxKnownDevices = 5

// DeviceFingerprint is one entry of the recent-device ring kept on a user,
// most recent first.
type DeviceFingerprint struct {
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	SeenAt    time.Time `json:"seenAt"`
}

type User struct {
	ID                  UserID              `gorm:"type:uuid;primaryKey" json:"id"`
	Username            string              `gorm:"type:text;uniqueIndex:ux_users_username" json:"username"`
	PasswordHash        string              `gorm:"type:text" json:"-"`
	HasPassword         bool                `gorm:"not null;default:false" json:"hasPassword"`
	PreferredAuthMethod AuthMethod          `gorm:"type:text;not null;default:otp" json:"preferredAuthMethod"`
	IsAdmin             bool                `gorm:"not null;default:false" json:"isAdmin"`
	LastLogin           *time.Time          `json:"lastLogin"`
	KnownDevices        []DeviceFingerprint `gorm:"serializer:json" json:"-"`
	Migration           MigrationStatus     `gorm:"embedded;embeddedPrefix:migration_" json:"-"`
	CreatedAt           time.Time           `gorm:"not null" json:"createdAt"`
	UpdatedAt           time.Time           `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// RecordDevice pushes a fingerprint onto the front of the ring, capped at
// MaxKnownDevices. A repeat of the same ip+agent pair moves to the front
// instead of duplicating.
func (u *User) RecordDevice(ip, userAgent string, at time.Time) {
	fp := DeviceFingerprint{IP: ip, UserAgent: userAgent, SeenAt: at}
	ring := make([]DeviceFingerprint, 0, MaxKnownDevices)
	ring = append(ring, fp)
	for _, known := range u.KnownDevices {
		if known.IP == ip && known.UserAgent == userAgent {
			continue
		}
		if len(ring) == MaxKnownDevices {
			break
		}
		ring = append(ring, known)
	}
	u.KnownDevices = ring
}
