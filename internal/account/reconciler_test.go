package account

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/openhub-dev/openhub/internal/provider"
	"golang.org/x/oauth2"
)

type recordingEvents struct {
	linked []string
}

func (e *recordingEvents) AccountLinked(_ context.Context, accountID string) error {
	e.linked = append(e.linked, accountID)
	return nil
}

func newTestReconciler(t *testing.T) (*Reconciler, *Store, *recordingEvents) {
	t.Helper()
	store := newTestStore(t)
	events := &recordingEvents{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewReconciler(store, events, logger), store, events
}

func testToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
}

func testProfile() *provider.Profile {
	return &provider.Profile{
		RemoteID:  "42",
		Login:     "alice",
		Name:      "Alice van der Berg",
		Email:     "alice@example.com",
		AvatarURL: "https://example.com/alice.png",
	}
}

func TestReconcile_AnonymousFirstLogin(t *testing.T) {
	r, store, events := newTestReconciler(t)
	ctx := context.Background()

	user, err := r.Reconcile(ctx, "github", testProfile(), testToken(), "")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if user.Username != "alice" {
		t.Errorf("username = %q, want alice", user.Username)
	}
	if user.FirstName != "Alice" || user.LastName != "van der Berg" {
		t.Errorf("name split on first space only, got %q / %q", user.FirstName, user.LastName)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email = %q", user.Email)
	}

	acct, err := store.GetAccount(ctx, "github", "42")
	if err != nil {
		t.Fatalf("linked account not created: %v", err)
	}
	if acct.UserID != user.ID {
		t.Errorf("account owner = %q, want %q", acct.UserID, user.ID)
	}
	if acct.AccessToken != "access-1" || acct.RefreshToken != "refresh-1" {
		t.Error("token bundle not stored")
	}

	if len(events.linked) != 1 || events.linked[0] != acct.ID {
		t.Errorf("AccountLinked should fire once for creation, got %v", events.linked)
	}
}

func TestReconcile_UsernameCollision(t *testing.T) {
	r, store, _ := newTestReconciler(t)
	ctx := context.Background()

	existing := &User{Username: "alice"}
	store.CreateUser(ctx, existing)

	user, err := r.Reconcile(ctx, "github", testProfile(), testToken(), "")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if user.ID == existing.ID {
		t.Fatal("colliding login must not take over the existing user")
	}
	if user.Username == "alice" {
		t.Error("colliding username must be disambiguated")
	}
	if !strings.HasPrefix(user.Username, "alice_") {
		t.Errorf("disambiguated username should keep the login prefix, got %q", user.Username)
	}
}

func TestReconcile_AuthenticatedAttach(t *testing.T) {
	r, store, events := newTestReconciler(t)
	ctx := context.Background()

	me := &User{Username: "me"}
	store.CreateUser(ctx, me)

	user, err := r.Reconcile(ctx, "gitlab", testProfile(), testToken(), me.ID)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if user.ID != me.ID {
		t.Errorf("authenticated caller should keep their user, got %q", user.ID)
	}

	acct, err := store.GetAccount(ctx, "gitlab", "42")
	if err != nil {
		t.Fatalf("linked account not created: %v", err)
	}
	if acct.UserID != me.ID {
		t.Errorf("new account should attach to the caller, got owner %q", acct.UserID)
	}
	if len(events.linked) != 1 {
		t.Errorf("AccountLinked should fire for attach-creation, got %v", events.linked)
	}

	taken, err := store.UsernameTaken(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if taken {
		t.Error("no new user should be created for an authenticated caller")
	}
}

func TestReconcile_TokenRotation(t *testing.T) {
	r, store, events := newTestReconciler(t)
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, "github", testProfile(), testToken(), ""); err != nil {
		t.Fatal(err)
	}

	fresh := &oauth2.Token{
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		TokenType:    "bearer",
		Expiry:       time.Now().Add(2 * time.Hour),
	}
	if _, err := r.Reconcile(ctx, "github", testProfile(), fresh, ""); err != nil {
		t.Fatal(err)
	}

	acct, _ := store.GetAccount(ctx, "github", "42")
	if acct.AccessToken != "access-2" || acct.RefreshToken != "refresh-2" {
		t.Error("token rotation must always take effect")
	}

	if len(events.linked) != 1 {
		t.Errorf("AccountLinked must not fire on update, got %d events", len(events.linked))
	}
}

func TestReconcile_OwnershipReassignment(t *testing.T) {
	r, store, _ := newTestReconciler(t)
	ctx := context.Background()

	original, err := r.Reconcile(ctx, "github", testProfile(), testToken(), "")
	if err != nil {
		t.Fatal(err)
	}

	me := &User{Username: "me"}
	store.CreateUser(ctx, me)

	user, err := r.Reconcile(ctx, "github", testProfile(), testToken(), me.ID)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if user.ID != me.ID {
		t.Errorf("result should be the authenticated caller, got %q", user.ID)
	}

	acct, _ := store.GetAccount(ctx, "github", "42")
	if acct.UserID != me.ID {
		t.Errorf("account should be reassigned from %q to %q, got %q", original.ID, me.ID, acct.UserID)
	}

	accounts, _ := store.ListAccountsByUser(ctx, original.ID)
	if len(accounts) != 0 {
		t.Error("old owner should no longer hold the account")
	}
	accounts, _ = store.ListAccountsByUser(ctx, me.ID)
	if len(accounts) != 1 {
		t.Errorf("no duplicate account rows may appear, got %d", len(accounts))
	}
}

func TestReconcile_LoginRename(t *testing.T) {
	r, store, _ := newTestReconciler(t)
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, "github", testProfile(), testToken(), ""); err != nil {
		t.Fatal(err)
	}

	renamed := testProfile()
	renamed.Login = "alice-renamed"
	if _, err := r.Reconcile(ctx, "github", renamed, testToken(), ""); err != nil {
		t.Fatal(err)
	}

	acct, _ := store.GetAccount(ctx, "github", "42")
	if acct.Login != "alice-renamed" {
		t.Errorf("vendor login rename should be picked up, got %q", acct.Login)
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		first string
		last  string
	}{
		{"two parts", "Alice Berg", "Alice", "Berg"},
		{"first space only", "Alice van der Berg", "Alice", "van der Berg"},
		{"single word", "Alice", "Alice", ""},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := SplitName(tt.in)
			if first != tt.first || last != tt.last {
				t.Errorf("SplitName(%q) = %q, %q; want %q, %q", tt.in, first, last, tt.first, tt.last)
			}
		})
	}
}
