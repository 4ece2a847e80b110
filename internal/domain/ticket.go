package domain

import "time"

type WorkStatus string

const (
	WorkStatusOpen   WorkStatus = "open"
	WorkStatusClosed WorkStatus = "closed"
)

// Ticket and Task carry only what the notification layer needs: ownership
// and an open/closed status for the pending-items snapshot. The intake CRUD
// surface for these lives elsewhere.
type Ticket struct {
	ID        TicketID   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    UserID     `gorm:"type:uuid;index" json:"userId"`
	Status    WorkStatus `gorm:"type:text;not null;default:open" json:"status"`
	CreatedAt time.Time  `gorm:"not null" json:"createdAt"`
}

func (Ticket) TableName() string { return "tickets" }

type Task struct {
	ID        TaskID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    UserID     `gorm:"type:uuid;index" json:"userId"`
	Status    WorkStatus `gorm:"type:text;not null;default:open" json:"status"`
	CreatedAt time.Time  `gorm:"not null" json:"createdAt"`
}

func (Task) TableName() string { return "tasks" }
