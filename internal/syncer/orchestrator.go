package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openhub-dev/openhub/internal/account"
	"github.com/openhub-dev/openhub/internal/notify"
	"github.com/openhub-dev/openhub/internal/provider"
	"github.com/openhub-dev/openhub/internal/repo"
	"github.com/openhub-dev/openhub/internal/shared"
)

// HookEnsurer provisions the vendor webhook for a deep-synced repository.
// Implemented by the webhook manager; an interface here keeps the package
// graph one-directional.
type HookEnsurer interface {
	EnsureHook(ctx context.Context, accountID, repositoryID string) error
}

// Orchestrator drives vendor adapters to pull account data and persists the
// result. It is invoked by the job worker, never by request handlers
// directly.
type Orchestrator struct {
	registry *provider.Registry
	accounts *account.Store
	repos    *repo.Store
	hooks    HookEnsurer
	notices  *notify.Store
	logger   *slog.Logger
}

func NewOrchestrator(registry *provider.Registry, accounts *account.Store, repos *repo.Store, hooks HookEnsurer, notices *notify.Store, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		accounts: accounts,
		repos:    repos,
		hooks:    hooks,
		notices:  notices,
		logger:   logger,
	}
}

// SyncAccount runs the discovery sync for one linked account: every vendor
// repository is upserted with ownership resolved, organizations and the
// account's membership in them are reconciled, and repositories the user has
// opted into get a deep sync. One repository's failure never aborts the loop
// over the others.
func (o *Orchestrator) SyncAccount(ctx context.Context, accountID string) error {
	acct, err := o.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	adapter, err := o.registry.Get(acct.Provider)
	if err != nil {
		return err
	}

	remotes, err := adapter.Repositories(ctx, acct.AccessToken)
	if err != nil {
		o.notifyFailure(ctx, acct.UserID, fmt.Sprintf("repository sync for your %s account failed", acct.Provider))
		return fmt.Errorf("fetching repositories: %w", err)
	}

	var failed int
	for _, remote := range remotes {
		if err := o.syncRepository(ctx, adapter, acct, remote); err != nil {
			failed++
			o.logger.Error("repository sync failed",
				"error", err, "repository", remote.FullName, "provider", acct.Provider)
		}
	}
	if failed > 0 {
		o.notifyFailure(ctx, acct.UserID,
			fmt.Sprintf("%d of %d repositories failed to sync from %s", failed, len(remotes), acct.Provider))
	}

	o.logger.Info("account sync finished",
		"account_id", acct.ID, "provider", acct.Provider, "repositories", len(remotes), "failed", failed)
	return nil
}

func (o *Orchestrator) syncRepository(ctx context.Context, adapter provider.Adapter, acct *account.LinkedAccount, remote provider.RemoteRepo) error {
	incoming := &repo.Repository{
		Provider:      acct.Provider,
		RemoteID:      remote.RemoteID,
		Name:          remote.Name,
		FullName:      remote.FullName,
		Description:   remote.Description,
		URL:           remote.URL,
		Visibility:    remote.Visibility,
		Stars:         remote.Stars,
		Forks:         remote.Forks,
		OpenIssues:    remote.OpenIssues,
		VendorUpdated: remote.UpdatedAt,
	}

	// Ownership resolution: organization repositories need the org synced
	// first so the foreign key exists.
	if remote.OrgOwned {
		org, err := o.syncOrganization(ctx, adapter, acct, remote.OrgRemoteID)
		if err != nil {
			return fmt.Errorf("syncing organization %s: %w", remote.OrgLogin, err)
		}
		incoming.OrganizationID = &org.ID
	} else {
		incoming.OwnerAccountID = &acct.ID
	}

	stored, err := o.repos.UpsertRepository(ctx, incoming)
	if err != nil {
		return err
	}

	if stored.Added {
		return o.DeepSyncRepository(ctx, acct.ID, stored.ID)
	}
	return nil
}

// syncOrganization upserts the organization and reconciles the calling
// account's membership. The membership check runs on every pass, not only on
// first creation, because memberships change over time.
func (o *Orchestrator) syncOrganization(ctx context.Context, adapter provider.Adapter, acct *account.LinkedAccount, orgRemoteID string) (*repo.Organization, error) {
	remote, err := adapter.Organization(ctx, acct.AccessToken, orgRemoteID)
	if err != nil {
		return nil, err
	}

	org, err := o.repos.UpsertOrganization(ctx, &repo.Organization{
		Provider:    acct.Provider,
		RemoteID:    remote.RemoteID,
		Login:       remote.Login,
		Name:        remote.Name,
		Description: remote.Description,
		AvatarURL:   remote.AvatarURL,
		URL:         remote.URL,
	})
	if err != nil {
		return nil, err
	}

	membership, err := adapter.CheckMembership(ctx, acct.AccessToken, orgRemoteID, provider.AccountRef{
		RemoteID: acct.RemoteID,
		Login:    acct.Login,
	})
	if err != nil {
		return nil, fmt.Errorf("checking membership: %w", err)
	}

	if membership == provider.MembershipNone {
		if err := o.repos.DeleteMembership(ctx, org.ID, acct.ID); err != nil {
			return nil, err
		}
	} else {
		if err := o.repos.UpsertMembership(ctx, org.ID, acct.ID, membership == provider.MembershipAdmin); err != nil {
			return nil, err
		}
	}
	return org, nil
}

// DeepSyncRepository pulls issues and languages for an opted-in repository
// and ensures its webhook exists. Failure flips the repository into the error
// state and notifies the owner; success clears it.
func (o *Orchestrator) DeepSyncRepository(ctx context.Context, accountID, repositoryID string) error {
	repository, err := o.repos.GetRepositoryByID(ctx, repositoryID)
	if err != nil {
		return err
	}
	acct, err := o.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	adapter, err := o.registry.Get(repository.Provider)
	if err != nil {
		return err
	}

	if err := o.deepSync(ctx, adapter, acct, repository); err != nil {
		if statusErr := o.repos.SetSyncStatus(ctx, repository.ID, repo.SyncError, err.Error()); statusErr != nil {
			o.logger.Error("failed to record sync error", "error", statusErr, "repository_id", repository.ID)
		}
		o.notifyFailure(ctx, acct.UserID, fmt.Sprintf("sync of %s failed", repository.FullName))
		return err
	}

	return o.repos.SetSyncStatus(ctx, repository.ID, repo.SyncDone, "")
}

func (o *Orchestrator) deepSync(ctx context.Context, adapter provider.Adapter, acct *account.LinkedAccount, repository *repo.Repository) error {
	ref := provider.RepoRef{RemoteID: repository.RemoteID, FullName: repository.FullName}

	issues, err := adapter.Issues(ctx, acct.AccessToken, ref)
	if err != nil {
		return fmt.Errorf("fetching issues: %w", err)
	}
	for _, remote := range issues {
		if _, err := o.repos.UpsertIssue(ctx, toIssue(repository.ID, remote)); err != nil {
			return fmt.Errorf("storing issue #%d: %w", remote.Number, err)
		}
	}

	languages, err := adapter.Languages(ctx, acct.AccessToken, ref)
	if err != nil {
		return fmt.Errorf("fetching languages: %w", err)
	}
	if err := o.repos.SetLanguages(ctx, repository.ID, shared.FloatMap(languages)); err != nil {
		return err
	}

	if err := o.hooks.EnsureHook(ctx, acct.ID, repository.ID); err != nil {
		return fmt.Errorf("ensuring webhook: %w", err)
	}
	return nil
}

func (o *Orchestrator) notifyFailure(ctx context.Context, userID, message string) {
	err := o.notices.Create(ctx, &notify.Notification{
		UserID:  userID,
		Kind:    notify.KindSyncFailed,
		Message: message,
	})
	if err != nil {
		o.logger.Error("failed to store notification", "error", err, "user_id", userID)
	}
}

func toIssue(repositoryID string, remote provider.RemoteIssue) *repo.Issue {
	return &repo.Issue{
		RepositoryID:  repositoryID,
		RemoteID:      remote.RemoteID,
		Number:        remote.Number,
		Title:         remote.Title,
		Body:          remote.Body,
		State:         remote.State,
		Labels:        remote.Labels,
		VendorCreated: remote.CreatedAt,
		VendorUpdated: remote.UpdatedAt,
		ClosedAt:      remote.ClosedAt,
	}
}
