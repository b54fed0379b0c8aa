package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/openhub-dev/openhub/internal/shared"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Repository{}, &Organization{}, &Membership{}, &Issue{})
}

// UpsertRepository creates or fully overwrites a repository keyed by
// (provider, remote_id). Local-only fields (Added, Removed, sync state) are
// preserved on update. The stored row is returned.
func (s *Store) UpsertRepository(ctx context.Context, incoming *Repository) (*Repository, error) {
	if (incoming.OwnerAccountID == nil) == (incoming.OrganizationID == nil) {
		return nil, fmt.Errorf("repository %s/%s: exactly one of owner and organization must be set", incoming.Provider, incoming.RemoteID)
	}

	existing, err := s.GetRepository(ctx, incoming.Provider, incoming.RemoteID)
	if errors.Is(err, shared.ErrNotFound) {
		if incoming.ID == "" {
			incoming.ID = shared.NewID("repo_")
		}
		if incoming.SyncStatus == "" {
			incoming.SyncStatus = SyncPending
		}
		if err := s.db.WithContext(ctx).Create(incoming).Error; err != nil {
			return nil, err
		}
		return incoming, nil
	}
	if err != nil {
		return nil, err
	}

	existing.OwnerAccountID = incoming.OwnerAccountID
	existing.OrganizationID = incoming.OrganizationID
	existing.Name = incoming.Name
	existing.FullName = incoming.FullName
	existing.Description = incoming.Description
	existing.URL = incoming.URL
	existing.Visibility = incoming.Visibility
	existing.Stars = incoming.Stars
	existing.Forks = incoming.Forks
	existing.OpenIssues = incoming.OpenIssues
	existing.VendorUpdated = incoming.VendorUpdated
	if incoming.Languages != nil {
		existing.Languages = incoming.Languages
	}

	if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Store) GetRepository(ctx context.Context, providerName, remoteID string) (*Repository, error) {
	var r Repository
	err := s.db.WithContext(ctx).Where("provider = ? AND remote_id = ?", providerName, remoteID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &r, err
}

func (s *Store) GetRepositoryByID(ctx context.Context, id string) (*Repository, error) {
	var r Repository
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &r, err
}

// ListForAccounts returns non-removed repositories owned by any of the given
// linked accounts or belonging to an organization one of them is a member of.
func (s *Store) ListForAccounts(ctx context.Context, accountIDs []string) ([]*Repository, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}

	memberOrgs := s.db.Model(&Membership{}).Select("organization_id").Where("account_id IN ?", accountIDs)

	var repos []*Repository
	err := s.db.WithContext(ctx).
		Where("removed = ?", false).
		Where("owner_account_id IN ? OR organization_id IN (?)", accountIDs, memberOrgs).
		Order("full_name").
		Find(&repos).Error
	return repos, err
}

func (s *Store) SetAdded(ctx context.Context, id string, added bool) error {
	return s.updateRepo(ctx, id, map[string]any{"added": added, "removed": false})
}

func (s *Store) SetRemoved(ctx context.Context, id string) error {
	return s.updateRepo(ctx, id, map[string]any{"removed": true, "added": false})
}

func (s *Store) SetSyncStatus(ctx context.Context, id, status, syncErr string) error {
	return s.updateRepo(ctx, id, map[string]any{"sync_status": status, "sync_error": syncErr})
}

func (s *Store) SetLanguages(ctx context.Context, id string, languages shared.FloatMap) error {
	return s.updateRepo(ctx, id, map[string]any{"languages": languages})
}

func (s *Store) updateRepo(ctx context.Context, id string, fields map[string]any) error {
	result := s.db.WithContext(ctx).Model(&Repository{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (s *Store) UpsertOrganization(ctx context.Context, incoming *Organization) (*Organization, error) {
	var existing Organization
	err := s.db.WithContext(ctx).Where("provider = ? AND remote_id = ?", incoming.Provider, incoming.RemoteID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if incoming.ID == "" {
			incoming.ID = shared.NewID("org_")
		}
		if err := s.db.WithContext(ctx).Create(incoming).Error; err != nil {
			return nil, err
		}
		return incoming, nil
	}
	if err != nil {
		return nil, err
	}

	existing.Login = incoming.Login
	existing.Name = incoming.Name
	existing.Description = incoming.Description
	existing.AvatarURL = incoming.AvatarURL
	existing.URL = incoming.URL

	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

func (s *Store) GetOrganizationByID(ctx context.Context, id string) (*Organization, error) {
	var o Organization
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &o, err
}

func (s *Store) ListOrganizationsForAccounts(ctx context.Context, accountIDs []string) ([]*Organization, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	memberOrgs := s.db.Model(&Membership{}).Select("organization_id").Where("account_id IN ?", accountIDs)

	var orgs []*Organization
	err := s.db.WithContext(ctx).Where("id IN (?)", memberOrgs).Order("login").Find(&orgs).Error
	return orgs, err
}

func (s *Store) UpsertMembership(ctx context.Context, orgID, accountID string, admin bool) error {
	var existing Membership
	err := s.db.WithContext(ctx).Where("organization_id = ? AND account_id = ?", orgID, accountID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		m := &Membership{
			ID:             shared.NewID("member_"),
			OrganizationID: orgID,
			AccountID:      accountID,
			Admin:          admin,
		}
		return s.db.WithContext(ctx).Create(m).Error
	}
	if err != nil {
		return err
	}

	existing.Admin = admin
	return s.db.WithContext(ctx).Save(&existing).Error
}

func (s *Store) DeleteMembership(ctx context.Context, orgID, accountID string) error {
	return s.db.WithContext(ctx).Where("organization_id = ? AND account_id = ?", orgID, accountID).Delete(&Membership{}).Error
}

func (s *Store) ListMemberships(ctx context.Context, orgID string) ([]*Membership, error) {
	var members []*Membership
	err := s.db.WithContext(ctx).Where("organization_id = ?", orgID).Find(&members).Error
	return members, err
}

func (s *Store) GetMembership(ctx context.Context, orgID, accountID string) (*Membership, error) {
	var m Membership
	err := s.db.WithContext(ctx).Where("organization_id = ? AND account_id = ?", orgID, accountID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &m, err
}

// UpsertIssue creates or fully replaces an issue keyed by
// (repository_id, remote_id).
func (s *Store) UpsertIssue(ctx context.Context, incoming *Issue) (*Issue, error) {
	var existing Issue
	err := s.db.WithContext(ctx).Where("repository_id = ? AND remote_id = ?", incoming.RepositoryID, incoming.RemoteID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if incoming.ID == "" {
			incoming.ID = shared.NewID("issue_")
		}
		if err := s.db.WithContext(ctx).Create(incoming).Error; err != nil {
			return nil, err
		}
		return incoming, nil
	}
	if err != nil {
		return nil, err
	}

	existing.Number = incoming.Number
	existing.Title = incoming.Title
	existing.Body = incoming.Body
	existing.State = incoming.State
	existing.Labels = incoming.Labels
	existing.VendorCreated = incoming.VendorCreated
	existing.VendorUpdated = incoming.VendorUpdated
	existing.ClosedAt = incoming.ClosedAt

	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

func (s *Store) DeleteIssue(ctx context.Context, repositoryID, remoteID string) error {
	return s.db.WithContext(ctx).Where("repository_id = ? AND remote_id = ?", repositoryID, remoteID).Delete(&Issue{}).Error
}

func (s *Store) ListIssues(ctx context.Context, repositoryID string) ([]*Issue, error) {
	var issues []*Issue
	err := s.db.WithContext(ctx).Where("repository_id = ?", repositoryID).Order("number").Find(&issues).Error
	return issues, err
}
