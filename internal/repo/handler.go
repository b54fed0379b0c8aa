package repo

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/openhub-dev/openhub/internal/account"
	"github.com/openhub-dev/openhub/internal/auth"
	"github.com/openhub-dev/openhub/internal/dto"
	"github.com/openhub-dev/openhub/internal/shared"
	"github.com/labstack/echo/v4"
)

// SyncScheduler enqueues background sync work. Implemented by the jobs
// queue; an interface here keeps the package graph one-directional.
type SyncScheduler interface {
	ScheduleDeepSync(ctx context.Context, accountID, repositoryID string) error
}

// HookRemover tears down the webhook when a repository is removed.
// Implemented by the webhook manager.
type HookRemover interface {
	RemoveHook(ctx context.Context, repositoryID string) error
}

type Handler struct {
	store     *Store
	accounts  *account.Store
	scheduler SyncScheduler
	hooks     HookRemover
	logger    *slog.Logger
}

func NewHandler(store *Store, accounts *account.Store, scheduler SyncScheduler, hooks HookRemover, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		accounts:  accounts,
		scheduler: scheduler,
		hooks:     hooks,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/repositories", h.List)
	g.POST("/repositories/:id/add", h.Add)
	g.DELETE("/repositories/:id", h.Remove)
	g.GET("/organizations", h.Organizations)
}

func (h *Handler) List(c echo.Context) error {
	userID, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	accountIDs, err := h.accountIDs(ctx, userID)
	if err != nil {
		return shared.InternalError("list_failed", "could not load linked accounts")
	}

	repos, err := h.store.ListForAccounts(ctx, accountIDs)
	if err != nil {
		h.logger.Error("failed to list repositories", "error", err, "user_id", userID)
		return shared.InternalError("list_failed", "could not load repositories")
	}

	out := make([]dto.RepositoryResponse, 0, len(repos))
	for _, r := range repos {
		out = append(out, toRepositoryResponse(r))
	}
	return c.JSON(http.StatusOK, out)
}

// Add opts a discovered repository into deep sync: issues, languages and a
// vendor webhook are synced from now on.
func (h *Handler) Add(c echo.Context) error {
	userID, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	repository, accountID, err := h.authorizedRepo(ctx, userID, c.Param("id"))
	if err != nil {
		return err
	}

	if err := h.store.SetAdded(ctx, repository.ID, true); err != nil {
		return shared.InternalError("update_failed", "could not update repository")
	}

	if err := h.scheduler.ScheduleDeepSync(ctx, accountID, repository.ID); err != nil {
		h.logger.Error("failed to schedule deep sync", "error", err, "repository_id", repository.ID)
		return shared.InternalError("schedule_failed", "could not schedule sync")
	}

	return c.NoContent(http.StatusAccepted)
}

// Remove soft-removes a repository: the row is kept with a removed flag, the
// webhook is torn down.
func (h *Handler) Remove(c echo.Context) error {
	userID, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	repository, _, err := h.authorizedRepo(ctx, userID, c.Param("id"))
	if err != nil {
		return err
	}

	if err := h.hooks.RemoveHook(ctx, repository.ID); err != nil {
		h.logger.Warn("failed to remove webhook", "error", err, "repository_id", repository.ID)
	}

	if err := h.store.SetRemoved(ctx, repository.ID); err != nil {
		return shared.InternalError("update_failed", "could not update repository")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Organizations(c echo.Context) error {
	userID, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	accountIDs, err := h.accountIDs(ctx, userID)
	if err != nil {
		return shared.InternalError("list_failed", "could not load linked accounts")
	}

	orgs, err := h.store.ListOrganizationsForAccounts(ctx, accountIDs)
	if err != nil {
		h.logger.Error("failed to list organizations", "error", err, "user_id", userID)
		return shared.InternalError("list_failed", "could not load organizations")
	}

	out := make([]dto.OrganizationResponse, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, dto.OrganizationResponse{
			ID:        o.ID,
			Provider:  o.Provider,
			Login:     o.Login,
			Name:      o.Name,
			AvatarURL: o.AvatarURL,
			URL:       o.URL,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) accountIDs(ctx context.Context, userID string) ([]string, error) {
	accounts, err := h.accounts.ListAccountsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// authorizedRepo loads a repository and checks the caller can act on it,
// returning the linked account that grants access.
func (h *Handler) authorizedRepo(ctx context.Context, userID, repoID string) (*Repository, string, error) {
	repository, err := h.store.GetRepositoryByID(ctx, repoID)
	if err != nil {
		return nil, "", shared.NotFound("repository_not_found", "repository not found")
	}

	accounts, err := h.accounts.ListAccountsByUser(ctx, userID)
	if err != nil {
		return nil, "", shared.InternalError("list_failed", "could not load linked accounts")
	}

	for _, a := range accounts {
		if repository.OwnerAccountID != nil && *repository.OwnerAccountID == a.ID {
			return repository, a.ID, nil
		}
		if repository.OrganizationID != nil {
			if _, err := h.store.GetMembership(ctx, *repository.OrganizationID, a.ID); err == nil {
				return repository, a.ID, nil
			}
		}
	}

	return nil, "", shared.Forbidden("not_owner", "repository does not belong to the caller")
}

func toRepositoryResponse(r *Repository) dto.RepositoryResponse {
	return dto.RepositoryResponse{
		ID:          r.ID,
		Provider:    r.Provider,
		Name:        r.Name,
		FullName:    r.FullName,
		Description: r.Description,
		URL:         r.URL,
		Visibility:  r.Visibility,
		Stars:       r.Stars,
		Forks:       r.Forks,
		OpenIssues:  r.OpenIssues,
		Languages:   r.Languages,
		Added:       r.Added,
		SyncStatus:  r.SyncStatus,
		UpdatedAt:   r.VendorUpdated,
	}
}
