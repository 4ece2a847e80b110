package impl

import (
	"context"
	"testing"
	"time"

	"intake/internal/domain"
	"intake/internal/store"

	"github.com/google/uuid"
)

type reminderCall struct {
	username string
	daysLeft int
}

func newMigrationService(st *store.Store, clock *fakeClock) (*MigrationServiceImpl, *[]reminderCall) {
	svc := NewMigrationServiceImpl(st)
	svc.now = clock.Now
	calls := &[]reminderCall{}
	svc.remind = func(user *domain.User, daysLeft int) {
		*calls = append(*calls, reminderCall{username: user.Username, daysLeft: daysLeft})
	}
	return svc, calls
}

func seedPasswordUser(t *testing.T, st *store.Store, username string) *domain.User {
	t.Helper()

	user := seedUser(t, st, username)
	user.PasswordHash = "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"
	user.HasPassword = true
	user.PreferredAuthMethod = domain.AuthMethodPassword
	if err := st.Users().Save(context.Background(), user); err != nil {
		t.Fatalf("save user: %v", err)
	}
	return user
}

func TestStartMigrationRestartsClock(t *testing.T) {
	st := setupStore(t)
	clock := newFakeClock()
	svc, _ := newMigrationService(st, clock)
	ctx := context.Background()

	user := seedPasswordUser(t, st, "greta")
	if err := svc.StartMigration(ctx, user.ID); err != nil {
		t.Fatalf("start migration: %v", err)
	}

	got, err := st.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if !got.Migration.Active() {
		t.Fatalf("migration should be active after start")
	}
	firstDeadline := *got.Migration.ScheduledDeletionDate
	wantDeadline := clock.Now().Add(domain.MigrationGracePeriod)
	if !firstDeadline.Equal(wantDeadline) {
		t.Fatalf("deadline = %v, want %v", firstDeadline, wantDeadline)
	}

	// A later start restarts the window from the new now, it never keeps
	// the older, earlier deadline.
	clock.Advance(10 * 24 * time.Hour)
	if err := svc.StartMigration(ctx, user.ID); err != nil {
		t.Fatalf("restart migration: %v", err)
	}
	got, err = st.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if !got.Migration.ScheduledDeletionDate.After(firstDeadline) {
		t.Fatalf("restart must push the deadline forward, got %v", got.Migration.ScheduledDeletionDate)
	}
	if got.Migration.ReminderCount != 0 {
		t.Fatalf("restart must reset the reminder count, got %d", got.Migration.ReminderCount)
	}
}

func TestStartMigrationSkipsPasswordlessUser(t *testing.T) {
	st := setupStore(t)
	clock := newFakeClock()
	svc, _ := newMigrationService(st, clock)
	ctx := context.Background()

	user := seedUser(t, st, "otp-only")
	if err := svc.StartMigration(ctx, user.ID); err != nil {
		t.Fatalf("start migration: %v", err)
	}
	got, err := st.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if got.Migration.Active() {
		t.Fatalf("passwordless user must not get a migration clock")
	}
}

func TestReminderJobSendsAtThresholds(t *testing.T) {
	st := setupStore(t)
	clock := newFakeClock()
	svc, calls := newMigrationService(st, clock)
	ctx := context.Background()

	user := seedPasswordUser(t, st, "henrik")
	if err := svc.StartMigration(ctx, user.ID); err != nil {
		t.Fatalf("start migration: %v", err)
	}

	// Day 0 through day 22: nothing is due.
	if err := svc.RunReminderJob(ctx); err != nil {
		t.Fatalf("reminder job: %v", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("no reminder expected at 30 days remaining, got %v", *calls)
	}

	// 7 days remaining.
	clock.Advance(23 * 24 * time.Hour)
	if err := svc.RunReminderJob(ctx); err != nil {
		t.Fatalf("reminder job: %v", err)
	}
	if len(*calls) != 1 || (*calls)[0].daysLeft != 7 {
		t.Fatalf("want one reminder at 7 days, got %v", *calls)
	}

	// Same day again: ReminderCount blocks a duplicate.
	if err := svc.RunReminderJob(ctx); err != nil {
		t.Fatalf("reminder job: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("duplicate reminder sent on rerun: %v", *calls)
	}

	// 3 days remaining, then 1.
	clock.Advance(4 * 24 * time.Hour)
	if err := svc.RunReminderJob(ctx); err != nil {
		t.Fatalf("reminder job: %v", err)
	}
	clock.Advance(2 * 24 * time.Hour)
	if err := svc.RunReminderJob(ctx); err != nil {
		t.Fatalf("reminder job: %v", err)
	}
	want := []int{7, 3, 1}
	if len(*calls) != len(want) {
		t.Fatalf("want %d reminders, got %v", len(want), *calls)
	}
	for i, days := range want {
		if (*calls)[i].daysLeft != days {
			t.Fatalf("reminder %d: daysLeft = %d, want %d", i, (*calls)[i].daysLeft, days)
		}
	}

	got, err := st.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if got.Migration.ReminderCount != 3 {
		t.Fatalf("ReminderCount = %d, want 3", got.Migration.ReminderCount)
	}
	if got.Migration.LastReminder == nil || !got.Migration.LastReminder.Equal(clock.Now()) {
		t.Fatalf("LastReminder = %v, want %v", got.Migration.LastReminder, clock.Now())
	}
}

func TestReminderJobIgnoresUsersWithoutClock(t *testing.T) {
	st := setupStore(t)
	clock := newFakeClock()
	svc, calls := newMigrationService(st, clock)

	seedPasswordUser(t, st, "never-started")
	clock.Advance(29 * 24 * time.Hour)
	if err := svc.RunReminderJob(context.Background()); err != nil {
		t.Fatalf("reminder job: %v", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("user without an active clock must not be reminded: %v", *calls)
	}
}

func TestDeletionJobRetiresExpiredPasswords(t *testing.T) {
	st := setupStore(t)
	clock := newFakeClock()
	svc, _ := newMigrationService(st, clock)
	ctx := context.Background()

	due := seedPasswordUser(t, st, "overdue")
	if err := svc.StartMigration(ctx, due.ID); err != nil {
		t.Fatalf("start migration: %v", err)
	}

	clock.Advance(10 * 24 * time.Hour)
	fresh := seedPasswordUser(t, st, "still-in-window")
	if err := svc.StartMigration(ctx, fresh.ID); err != nil {
		t.Fatalf("start migration: %v", err)
	}

	// Past the first user's deadline, inside the second user's window.
	clock.Advance(21 * 24 * time.Hour)
	if err := svc.RunDeletionJob(ctx); err != nil {
		t.Fatalf("deletion job: %v", err)
	}

	got, err := st.Users().GetByID(ctx, due.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if got.HasPassword || got.PasswordHash != "" {
		t.Fatalf("password must be retired after the deadline")
	}
	if got.PreferredAuthMethod != domain.AuthMethodOTP {
		t.Fatalf("preferred method = %q, want otp", got.PreferredAuthMethod)
	}
	if got.Migration.Active() {
		t.Fatalf("migration columns must be cleared on completion")
	}

	untouched, err := st.Users().GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if !untouched.HasPassword || !untouched.Migration.Active() {
		t.Fatalf("user inside the window must keep password and clock")
	}

	// Idempotent: a second run finds nothing due.
	if err := svc.RunDeletionJob(ctx); err != nil {
		t.Fatalf("deletion job rerun: %v", err)
	}
}

func TestStatusReflectsClock(t *testing.T) {
	st := setupStore(t)
	clock := newFakeClock()
	svc, _ := newMigrationService(st, clock)
	ctx := context.Background()

	user := seedPasswordUser(t, st, "status")

	// No active clock: nil response, no error.
	status, err := svc.Status(ctx, user.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != nil {
		t.Fatalf("want nil status before migration starts, got %+v", status)
	}

	if err := svc.StartMigration(ctx, user.ID); err != nil {
		t.Fatalf("start migration: %v", err)
	}
	status, err = svc.Status(ctx, user.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status == nil {
		t.Fatalf("want status after migration starts")
	}
	if status.DaysRemaining != 30 {
		t.Fatalf("DaysRemaining = %d, want 30", status.DaysRemaining)
	}

	// A partial day still counts as a full remaining day.
	clock.Advance(24*time.Hour + time.Minute)
	status, err = svc.Status(ctx, user.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.DaysRemaining != 29 {
		t.Fatalf("DaysRemaining = %d, want 29", status.DaysRemaining)
	}
}

func TestStatusUnknownUser(t *testing.T) {
	st := setupStore(t)
	clock := newFakeClock()
	svc, _ := newMigrationService(st, clock)

	_, err := svc.Status(context.Background(), uuid.New())
	if err != domain.ErrUserNotFound {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}
