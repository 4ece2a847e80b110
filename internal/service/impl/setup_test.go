package impl

import (
	"context"
	"fmt"
	"testing"
	"time"

	"intake/internal/domain"
	"intake/internal/store"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()

	// Unique in-memory database per test so cases cannot bleed into each
	// other through the shared cache.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(
		&domain.User{}, &domain.OTPRecord{}, &domain.Session{},
		&domain.Ticket{}, &domain.Task{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return store.New(gdb)
}

func seedUser(t *testing.T, st *store.Store, username string) *domain.User {
	t.Helper()

	now := time.Now().UTC()
	user := &domain.User{
		ID:                  uuid.New(),
		Username:            username,
		PreferredAuthMethod: domain.AuthMethodOTP,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := st.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// fakeClock makes the services deterministic: assign its Now method to the
// service's now field and advance it by hand.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
