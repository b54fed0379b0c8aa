package account

import (
	"context"
	"testing"

	"github.com/openhub-dev/openhub/internal/shared"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(setupTestDB(t))
	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return store
}

func TestStore_CreateUser_GeneratesID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := &User{Username: "alice"}
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if u.ID == "" {
		t.Error("user ID should be generated")
	}
}

func TestStore_UsernameTaken(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.CreateUser(ctx, &User{Username: "alice"})

	tests := []struct {
		name     string
		username string
		want     bool
	}{
		{"taken", "alice", true},
		{"free", "bob", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.UsernameTaken(ctx, tt.username)
			if err != nil {
				t.Fatalf("UsernameTaken() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("UsernameTaken(%q) = %v, want %v", tt.username, got, tt.want)
			}
		})
	}
}

func TestStore_GetAccount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := &User{Username: "alice"}
	store.CreateUser(ctx, user)
	store.CreateAccount(ctx, &LinkedAccount{
		Provider: "github",
		RemoteID: "1",
		UserID:   user.ID,
		Login:    "alice",
	})

	got, err := store.GetAccount(ctx, "github", "1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if got.UserID != user.ID {
		t.Errorf("account owner = %q, want %q", got.UserID, user.ID)
	}

	if _, err := store.GetAccount(ctx, "gitlab", "1"); err != shared.ErrNotFound {
		t.Errorf("same remote id on another provider should be not found, got %v", err)
	}
}

func TestStore_ListAccountsByUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := &User{Username: "alice"}
	store.CreateUser(ctx, user)
	store.CreateAccount(ctx, &LinkedAccount{Provider: "gitlab", RemoteID: "2", UserID: user.ID})
	store.CreateAccount(ctx, &LinkedAccount{Provider: "github", RemoteID: "1", UserID: user.ID})

	accounts, err := store.ListAccountsByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListAccountsByUser() error = %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Provider != "github" {
		t.Errorf("accounts should be ordered by provider, got %q first", accounts[0].Provider)
	}
}
