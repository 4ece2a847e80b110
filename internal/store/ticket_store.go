package store

import (
	"context"

	"intake/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TicketStore answers the pending-item counts pushed to a freshly
// authenticated notification connection.
type TicketStore struct{ db *gorm.DB }

func (s *Store) Tickets() *TicketStore { return &TicketStore{db: s.DB} }

func (t *TicketStore) CountOpenTickets(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := t.db.WithContext(ctx).Model(&domain.Ticket{}).
		Where("user_id = ? AND status = ?", userID, domain.WorkStatusOpen).
		Count(&n).Error
	return n, err
}

func (t *TicketStore) CountOpenTasks(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := t.db.WithContext(ctx).Model(&domain.Task{}).
		Where("user_id = ? AND status = ?", userID, domain.WorkStatusOpen).
		Count(&n).Error
	return n, err
}
