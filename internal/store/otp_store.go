package store

import (
	"context"
	"time"

	"intake/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OTPStore struct{ db *gorm.DB }

func (s *Store) OTPs() *OTPStore { return &OTPStore{db: s.DB} }

func (o *OTPStore) Create(ctx context.Context, rec *domain.OTPRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	return o.db.WithContext(ctx).Create(rec).Error
}

// GetUnusedByUser returns the single unused record for the user, if any.
func (o *OTPStore) GetUnusedByUser(ctx context.Context, userID uuid.UUID) (*domain.OTPRecord, error) {
	var rec domain.OTPRecord
	err := o.db.WithContext(ctx).
		First(&rec, "user_id = ? AND is_used = ?", userID, false).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (o *OTPStore) DeleteUnusedByUser(ctx context.Context, userID uuid.UUID) error {
	return o.db.WithContext(ctx).
		Where("user_id = ? AND is_used = ?", userID, false).
		Delete(&domain.OTPRecord{}).Error
}

// MarkUsed flips a record to used, stamping the verifying device. The
// is_used guard makes the transition atomic: a replay finds zero rows.
func (o *OTPStore) MarkUsed(ctx context.Context, id uuid.UUID, ip, deviceInfo string, at time.Time) (bool, error) {
	tx := o.db.WithContext(ctx).Model(&domain.OTPRecord{}).
		Where("id = ? AND is_used = ?", id, false).
		Updates(map[string]interface{}{
			"is_used":         true,
			"ip_address":      ip,
			"device_info":     deviceInfo,
			"last_attempt_at": at,
		})
	return tx.RowsAffected == 1, tx.Error
}

// RecordFailedAttempt bumps the attempt counter in the database and returns
// the updated record. The increment is expressed in SQL so concurrent
// failures do not lose updates.
func (o *OTPStore) RecordFailedAttempt(ctx context.Context, id uuid.UUID, at time.Time) (*domain.OTPRecord, error) {
	err := o.db.WithContext(ctx).Model(&domain.OTPRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":        gorm.Expr("attempts + 1"),
			"last_attempt_at": at,
		}).Error
	if err != nil {
		return nil, err
	}
	var rec domain.OTPRecord
	if err := o.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// PurgeExpired removes records past their expiry, used or not. Stands in for
// the TTL cleanup a document store would do on its own.
func (o *OTPStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tx := o.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.OTPRecord{})
	return tx.RowsAffected, tx.Error
}
