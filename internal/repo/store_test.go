package repo

import (
	"context"
	"testing"
	"time"

	"github.com/openhub-dev/openhub/internal/shared"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	store := NewStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return store
}

func strPtr(s string) *string { return &s }

func personalRepo() *Repository {
	return &Repository{
		Provider:       "github",
		RemoteID:       "101",
		OwnerAccountID: strPtr("acct_1"),
		Name:           "widgets",
		FullName:       "alice/widgets",
		URL:            "https://github.com/alice/widgets",
		Visibility:     "public",
		Stars:          42,
		VendorUpdated:  time.Date(2023, 4, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestUpsertRepository_OwnershipInvariant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		owner   *string
		org     *string
		wantErr bool
	}{
		{"owner only", strPtr("acct_1"), nil, false},
		{"organization only", nil, strPtr("org_1"), false},
		{"both set", strPtr("acct_1"), strPtr("org_1"), true},
		{"neither set", nil, nil, true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := personalRepo()
			r.RemoteID = string(rune('a' + i))
			r.OwnerAccountID = tt.owner
			r.OrganizationID = tt.org

			_, err := store.UpsertRepository(ctx, r)
			if (err != nil) != tt.wantErr {
				t.Errorf("UpsertRepository() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpsertRepository_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.UpsertRepository(ctx, personalRepo())
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := store.UpsertRepository(ctx, personalRepo())
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("upserting the same payload twice must yield one row: %q vs %q", first.ID, second.ID)
	}

	var count int64
	store.db.Model(&Repository{}).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly 1 repository row, got %d", count)
	}
	if second.Stars != 42 || second.FullName != "alice/widgets" {
		t.Error("field values must be identical after the second upsert")
	}
}

func TestUpsertRepository_OverwritesVendorFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stored, _ := store.UpsertRepository(ctx, personalRepo())

	updated := personalRepo()
	updated.Stars = 100
	updated.Description = "now documented"
	got, err := store.UpsertRepository(ctx, updated)
	if err != nil {
		t.Fatalf("UpsertRepository() error = %v", err)
	}

	if got.ID != stored.ID {
		t.Error("update must not create a new row")
	}
	if got.Stars != 100 || got.Description != "now documented" {
		t.Error("vendor-derived fields must be overwritten on every sync")
	}
}

func TestUpsertRepository_PreservesLocalFlags(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stored, _ := store.UpsertRepository(ctx, personalRepo())
	if err := store.SetAdded(ctx, stored.ID, true); err != nil {
		t.Fatal(err)
	}

	got, err := store.UpsertRepository(ctx, personalRepo())
	if err != nil {
		t.Fatal(err)
	}
	if !got.Added {
		t.Error("a sync pass must not clear the locally managed Added flag")
	}
}

func TestUpsertRepository_OwnershipReassignment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.UpsertRepository(ctx, personalRepo()); err != nil {
		t.Fatal(err)
	}

	// The vendor now reports the repo as transferred to an organization.
	transferred := personalRepo()
	transferred.OwnerAccountID = nil
	transferred.OrganizationID = strPtr("org_1")

	got, err := store.UpsertRepository(ctx, transferred)
	if err != nil {
		t.Fatal(err)
	}
	if got.OwnerAccountID != nil {
		t.Error("owner must be cleared when organization takes ownership")
	}
	if got.OrganizationID == nil || *got.OrganizationID != "org_1" {
		t.Error("organization ownership not recorded")
	}
}

func TestSetRemoved_ClearsAdded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stored, _ := store.UpsertRepository(ctx, personalRepo())
	store.SetAdded(ctx, stored.ID, true)

	if err := store.SetRemoved(ctx, stored.ID); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetRepositoryByID(ctx, stored.ID)
	if !got.Removed || got.Added {
		t.Errorf("soft remove should set removed and clear added, got removed=%v added=%v", got.Removed, got.Added)
	}
}

func TestListForAccounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mine, _ := store.UpsertRepository(ctx, personalRepo())

	other := personalRepo()
	other.RemoteID = "102"
	other.OwnerAccountID = strPtr("acct_2")
	store.UpsertRepository(ctx, other)

	org, _ := store.UpsertOrganization(ctx, &Organization{Provider: "github", RemoteID: "9", Login: "acme"})
	store.UpsertMembership(ctx, org.ID, "acct_1", false)

	orgRepo := personalRepo()
	orgRepo.RemoteID = "103"
	orgRepo.OwnerAccountID = nil
	orgRepo.OrganizationID = &org.ID
	store.UpsertRepository(ctx, orgRepo)

	repos, err := store.ListForAccounts(ctx, []string{"acct_1"})
	if err != nil {
		t.Fatalf("ListForAccounts() error = %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("expected own repo + member-org repo, got %d", len(repos))
	}

	if err := store.SetRemoved(ctx, mine.ID); err != nil {
		t.Fatal(err)
	}
	repos, _ = store.ListForAccounts(ctx, []string{"acct_1"})
	if len(repos) != 1 {
		t.Errorf("removed repos must be filtered out, got %d", len(repos))
	}
}

func TestMembershipLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	org, _ := store.UpsertOrganization(ctx, &Organization{Provider: "github", RemoteID: "9", Login: "acme"})

	if err := store.UpsertMembership(ctx, org.ID, "acct_1", false); err != nil {
		t.Fatal(err)
	}
	m, err := store.GetMembership(ctx, org.ID, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if m.Admin {
		t.Error("member should not be admin yet")
	}

	// Promotion must update in place, not duplicate.
	if err := store.UpsertMembership(ctx, org.ID, "acct_1", true); err != nil {
		t.Fatal(err)
	}
	m, _ = store.GetMembership(ctx, org.ID, "acct_1")
	if !m.Admin {
		t.Error("admin flag should be updated")
	}

	var count int64
	store.db.Model(&Membership{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 membership row, got %d", count)
	}

	if err := store.DeleteMembership(ctx, org.ID, "acct_1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetMembership(ctx, org.ID, "acct_1"); err != shared.ErrNotFound {
		t.Errorf("membership should be gone, got %v", err)
	}
}

func TestIssueUpsertAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stored, _ := store.UpsertRepository(ctx, personalRepo())

	issue := &Issue{
		RepositoryID: stored.ID,
		RemoteID:     "301",
		Number:       1,
		Title:        "bug report",
		State:        "open",
		Labels:       shared.StringSlice{"bug"},
	}
	first, err := store.UpsertIssue(ctx, issue)
	if err != nil {
		t.Fatalf("UpsertIssue() error = %v", err)
	}

	closedAt := time.Date(2023, 4, 2, 11, 0, 0, 0, time.UTC)
	update := &Issue{
		RepositoryID: stored.ID,
		RemoteID:     "301",
		Number:       1,
		Title:        "bug report",
		State:        "closed",
		ClosedAt:     &closedAt,
	}
	second, err := store.UpsertIssue(ctx, update)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Error("issue upsert must reuse the natural-key row")
	}
	if second.State != "closed" || second.ClosedAt == nil {
		t.Error("issue state fields must be fully replaced")
	}

	if err := store.DeleteIssue(ctx, stored.ID, "301"); err != nil {
		t.Fatal(err)
	}
	issues, _ := store.ListIssues(ctx, stored.ID)
	if len(issues) != 0 {
		t.Errorf("issue should be deleted, got %d rows", len(issues))
	}
}
