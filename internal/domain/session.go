package domain

import "time"

type Session struct {
	ID        SessionID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    UserID     `gorm:"type:uuid;index" json:"userId"`
	ExpiresAt time.Time  `gorm:"not null" json:"expiresAt"`
	RevokedAt *time.Time `json:"revokedAt"`
	CreatedAt time.Time  `gorm:"not null" json:"createdAt"`
	IP        string     `gorm:"type:text" json:"ip"`
	UserAgent string     `gorm:"type:text" json:"userAgent"`
}

func (Session) TableName() string { return "sessions" }

// Live reports whether the session can still authenticate requests.
func (s *Session) Live(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
