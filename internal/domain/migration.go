package domain

import "time"

// MigrationGracePeriod is how long a user keeps password auth after the
// migration clock (re)starts.
const MigrationGracePeriod = 30 * 24 * time.Hour

// MigrationReminderDays are the days-remaining thresholds at which a reminder
// goes out. ReminderCount doubles as the dedupe guard: once it reaches the
// index of a threshold the reminder for that threshold has been sent.
var MigrationReminderDays = []int{7, 3, 1}

// MigrationStatus tracks the password-retirement clock for a user. A zero
// value (NULL notified_at column) means no migration is active; the embedded
// columns exist only while HasPassword is true.
type MigrationStatus struct {
	NotifiedAt            *time.Time `json:"notifiedAt"`
	ReminderCount         int        `gorm:"not null;default:0" json:"reminderCount"`
	LastReminder          *time.Time `json:"lastReminder"`
	ScheduledDeletionDate *time.Time `json:"scheduledDeletionDate"`
}

// Active reports whether a migration clock is running.
func (m MigrationStatus) Active() bool { return m.NotifiedAt != nil }

// DaysRemaining is ceil((scheduledDeletionDate - now) / 24h), never negative.
func (m MigrationStatus) DaysRemaining(now time.Time) int {
	if m.ScheduledDeletionDate == nil {
		return 0
	}
	left := m.ScheduledDeletionDate.Sub(now)
	if left <= 0 {
		return 0
	}
	days := int(left / (24 * time.Hour))
	if left%(24*time.Hour) != 0 {
		days++
	}
	return days
}
