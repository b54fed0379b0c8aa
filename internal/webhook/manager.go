package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openhub-dev/openhub/internal/account"
	"github.com/openhub-dev/openhub/internal/provider"
	"github.com/openhub-dev/openhub/internal/repo"
	"github.com/openhub-dev/openhub/internal/shared"
)

// Manager keeps the vendor webhook for each added repository in step with
// the local RepositoryWebhook row.
type Manager struct {
	registry *provider.Registry
	store    *Store
	repos    *repo.Store
	accounts *account.Store
	baseURL  string
	logger   *slog.Logger
}

func NewManager(registry *provider.Registry, store *Store, repos *repo.Store, accounts *account.Store, baseURL string, logger *slog.Logger) *Manager {
	return &Manager{
		registry: registry,
		store:    store,
		repos:    repos,
		accounts: accounts,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		logger:   logger,
	}
}

// EnsureHook makes sure a remote webhook exists and matches our receive URL.
// Create is retried when an earlier attempt left a row without a remote id;
// an existing remote hook is updated to cover URL drift after redeploys.
func (m *Manager) EnsureHook(ctx context.Context, accountID, repositoryID string) error {
	repository, err := m.repos.GetRepositoryByID(ctx, repositoryID)
	if err != nil {
		return err
	}
	acct, err := m.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	adapter, err := m.registry.Get(repository.Provider)
	if err != nil {
		return err
	}

	hook, err := m.store.GetByRepository(ctx, repositoryID)
	if errors.Is(err, shared.ErrNotFound) {
		// Local row first so the secret exists before the vendor ever
		// calls us.
		hook, err = m.store.Create(ctx, repositoryID)
		if err != nil {
			return err
		}
		return m.createRemote(ctx, adapter, acct, repository, hook)
	}
	if err != nil {
		return err
	}

	if hook.RemoteID == nil {
		return m.createRemote(ctx, adapter, acct, repository, hook)
	}

	ref := repoRef(repository)
	_, err = adapter.GetHook(ctx, acct.AccessToken, ref, *hook.RemoteID)
	if errors.Is(err, provider.ErrHookMissing) {
		m.logger.Info("remote webhook vanished, recreating",
			"repository", repository.FullName, "provider", repository.Provider)
		hook.RemoteID = nil
		hook.Active = false
		if err := m.store.Save(ctx, hook); err != nil {
			return err
		}
		return m.createRemote(ctx, adapter, acct, repository, hook)
	}
	if err != nil {
		return err
	}

	return adapter.UpdateHook(ctx, acct.AccessToken, ref, *hook.RemoteID, m.receiveURL(repository.Provider, hook.ID), hook.Secret)
}

func (m *Manager) createRemote(ctx context.Context, adapter provider.Adapter, acct *account.LinkedAccount, repository *repo.Repository, hook *RepositoryWebhook) error {
	remote, err := adapter.CreateHook(ctx, acct.AccessToken, repoRef(repository), m.receiveURL(repository.Provider, hook.ID), hook.Secret)
	if err != nil {
		return err
	}

	hook.RemoteID = &remote.RemoteID
	hook.Active = true
	if !remote.CreatedAt.IsZero() {
		created := remote.CreatedAt
		hook.RemoteCreated = &created
	}
	return m.store.Save(ctx, hook)
}

// RemoveHook deletes the webhook row and best-effort deletes the remote
// hook. Missing rows are not an error.
func (m *Manager) RemoveHook(ctx context.Context, repositoryID string) error {
	hook, err := m.store.GetByRepository(ctx, repositoryID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if hook.RemoteID != nil {
		if err := m.deleteRemote(ctx, repositoryID, *hook.RemoteID); err != nil {
			m.logger.Warn("remote webhook delete failed", "error", err, "repository_id", repositoryID)
		}
	}

	return m.store.Delete(ctx, hook.ID)
}

func (m *Manager) deleteRemote(ctx context.Context, repositoryID, remoteHookID string) error {
	repository, err := m.repos.GetRepositoryByID(ctx, repositoryID)
	if err != nil {
		return err
	}
	adapter, err := m.registry.Get(repository.Provider)
	if err != nil {
		return err
	}
	acct, err := m.resolveAccount(ctx, repository)
	if err != nil {
		return err
	}
	return adapter.DeleteHook(ctx, acct.AccessToken, repoRef(repository), remoteHookID)
}

// resolveAccount picks a linked account whose token can act on the
// repository: its owner, or any member of the owning organization.
func (m *Manager) resolveAccount(ctx context.Context, repository *repo.Repository) (*account.LinkedAccount, error) {
	if repository.OwnerAccountID != nil {
		return m.accounts.GetAccountByID(ctx, *repository.OwnerAccountID)
	}
	if repository.OrganizationID != nil {
		members, err := m.repos.ListMemberships(ctx, *repository.OrganizationID)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			return nil, fmt.Errorf("no linked account can act on repository %s", repository.ID)
		}
		return m.accounts.GetAccountByID(ctx, members[0].AccountID)
	}
	return nil, fmt.Errorf("repository %s has no owner", repository.ID)
}

func (m *Manager) receiveURL(providerName, hookID string) string {
	return fmt.Sprintf("%s/webhooks/%s/%s/receive", m.baseURL, providerName, hookID)
}

func repoRef(r *repo.Repository) provider.RepoRef {
	return provider.RepoRef{RemoteID: r.RemoteID, FullName: r.FullName}
}
