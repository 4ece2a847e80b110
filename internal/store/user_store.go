package store

import (
	"context"
	"time"

	"intake/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserStore struct{ db *gorm.DB }

func (s *Store) Users() *UserStore { return &UserStore{db: s.DB} }

func (u *UserStore) Create(ctx context.Context, usr *domain.User) error {
	if usr.ID == uuid.Nil {
		usr.ID = uuid.New()
	}
	return u.db.WithContext(ctx).Create(usr).Error
}

func (u *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	if err := u.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (u *UserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	if err := u.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Save writes the full row back. Used when the caller has mutated composite
// fields (device ring, migration columns) on a loaded user.
func (u *UserStore) Save(ctx context.Context, usr *domain.User) error {
	return u.db.WithContext(ctx).Save(usr).Error
}

func (u *UserStore) SetLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return u.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", userID).
		Update("last_login", at).Error
}

// ListMigrating returns users still on password auth with an active
// migration clock.
func (u *UserStore) ListMigrating(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := u.db.WithContext(ctx).
		Where("has_password = ? AND migration_scheduled_deletion_date IS NOT NULL", true).
		Find(&users).Error
	return users, err
}

// ListMigrationDue returns users whose deletion deadline has passed.
func (u *UserStore) ListMigrationDue(ctx context.Context, now time.Time) ([]domain.User, error) {
	var users []domain.User
	err := u.db.WithContext(ctx).
		Where("has_password = ? AND migration_scheduled_deletion_date <= ?", true, now).
		Find(&users).Error
	return users, err
}

// CompleteMigration clears the password credential and migration columns in
// one update. Running it again for the same user is a no-op because
// has_password is already false.
func (u *UserStore) CompleteMigration(ctx context.Context, userID uuid.UUID) error {
	return u.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND has_password = ?", userID, true).
		Updates(map[string]interface{}{
			"password_hash":                     "",
			"has_password":                      false,
			"preferred_auth_method":             domain.AuthMethodOTP,
			"migration_notified_at":             nil,
			"migration_reminder_count":          0,
			"migration_last_reminder":           nil,
			"migration_scheduled_deletion_date": nil,
		}).Error
}
