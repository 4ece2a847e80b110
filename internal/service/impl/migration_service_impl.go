package impl

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"intake/internal/domain"
	"intake/internal/dto"
	"intake/internal/observability/metrics"
	"intake/internal/service"
	"intake/internal/store"
)

var _ service.MigrationService = (*MigrationServiceImpl)(nil)

type MigrationServiceImpl struct {
	store *store.Store
	now   func() time.Time
	// remind delivers one reminder; the default implementation only logs.
	remind func(user *domain.User, daysLeft int)
}

func NewMigrationServiceImpl(st *store.Store) *MigrationServiceImpl {
	return &MigrationServiceImpl{
		store: st,
		now: func() time.Time {
			return time.Now().UTC()
		},
		remind: func(user *domain.User, daysLeft int) {
			slog.Info("password retirement reminder",
				"user_id", user.ID, "username", user.Username, "days_left", daysLeft)
		},
	}
}

// StartMigration (re)initializes the clock: notifiedAt = now, deadline =
// now + 30 days. Calling it again restarts the window, it never extends a
// prior one. Users without a password are silently skipped.
func (m *MigrationServiceImpl) StartMigration(ctx context.Context, userID domain.UserID) error {
	user, err := m.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if !user.HasPassword {
		return nil
	}

	now := m.now()
	deadline := now.Add(domain.MigrationGracePeriod)
	user.Migration = domain.MigrationStatus{
		NotifiedAt:            &now,
		ReminderCount:         0,
		ScheduledDeletionDate: &deadline,
	}
	if err := m.store.Users().Save(ctx, user); err != nil {
		return err
	}
	slog.Info("password migration started", "user_id", user.ID, "deletion_date", deadline)
	return nil
}

func (m *MigrationServiceImpl) Status(ctx context.Context, userID domain.UserID) (*dto.MigrationStatusResponse, error) {
	user, err := m.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if !user.HasPassword || !user.Migration.Active() {
		return nil, nil
	}
	return &dto.MigrationStatusResponse{
		DaysRemaining:         user.Migration.DaysRemaining(m.now()),
		NotifiedAt:            *user.Migration.NotifiedAt,
		ReminderCount:         user.Migration.ReminderCount,
		LastReminder:          user.Migration.LastReminder,
		ScheduledDeletionDate: *user.Migration.ScheduledDeletionDate,
	}, nil
}

// RunReminderJob walks users still on password auth and sends reminders at
// the 7/3/1 days-remaining marks. ReminderCount guards reentrancy: a second
// run on the same day finds nothing left to send.
func (m *MigrationServiceImpl) RunReminderJob(ctx context.Context) error {
	users, err := m.store.Users().ListMigrating(ctx)
	if err != nil {
		return err
	}
	now := m.now()
	for i := range users {
		user := &users[i]
		days := user.Migration.DaysRemaining(now)
		for idx, threshold := range domain.MigrationReminderDays {
			if days != threshold || user.Migration.ReminderCount > idx {
				continue
			}
			m.remind(user, days)
			user.Migration.ReminderCount = idx + 1
			user.Migration.LastReminder = &now
			if err := m.store.Users().Save(ctx, user); err != nil {
				slog.Error("reminder state write failed", "user_id", user.ID, "error", err)
				continue
			}
			metrics.MigrationRemindersTotal.Inc()
		}
	}
	return nil
}

// RunDeletionJob retires password auth for every user whose deadline has
// passed: hash cleared, preferred method forced to otp, migration columns
// dropped. One-way and idempotent.
func (m *MigrationServiceImpl) RunDeletionJob(ctx context.Context) error {
	users, err := m.store.Users().ListMigrationDue(ctx, m.now())
	if err != nil {
		return err
	}
	for i := range users {
		user := &users[i]
		if err := m.store.Users().CompleteMigration(ctx, user.ID); err != nil {
			slog.Error("password retirement failed", "user_id", user.ID, "error", err)
			continue
		}
		metrics.MigrationCompletionsTotal.Inc()
		slog.Info("password auth retired", "user_id", user.ID, "username", user.Username)
	}
	return nil
}
