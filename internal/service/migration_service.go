package service

import (
	"context"

	"intake/internal/domain"
	"intake/internal/dto"
)

// MigrationService drives the retirement of password authentication. The two
// jobs are idempotent and safe to run on any schedule; production runs them
// daily.
type MigrationService interface {
	// StartMigration (re)starts the 30-day clock for a user with a
	// password. No-op for users without one.
	StartMigration(ctx context.Context, userID domain.UserID) error
	// Status returns nil when no migration is active.
	Status(ctx context.Context, userID domain.UserID) (*dto.MigrationStatusResponse, error)
	RunReminderJob(ctx context.Context) error
	RunDeletionJob(ctx context.Context) error
}
