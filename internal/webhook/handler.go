package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/openhub-dev/openhub/internal/provider"
	"github.com/openhub-dev/openhub/internal/repo"
	"github.com/openhub-dev/openhub/internal/shared"
	"github.com/labstack/echo/v4"
)

// Handler receives inbound vendor webhook deliveries and routes them to
// issue upserts or deletions.
type Handler struct {
	registry *provider.Registry
	store    *Store
	repos    *repo.Store
	logger   *slog.Logger
}

func NewHandler(registry *provider.Registry, store *Store, repos *repo.Store, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		store:    store,
		repos:    repos,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/github/:webhook_id/receive", h.ReceiveGitHub)
	g.POST("/gitlab/:webhook_id/receive", h.ReceiveGitLab)
}

func (h *Handler) ReceiveGitHub(c echo.Context) error {
	hook, err := h.store.GetByID(c.Request().Context(), c.Param("webhook_id"))
	if err != nil {
		return shared.NotFound("webhook_not_found", "unknown webhook")
	}

	signature := c.Request().Header.Get("X-Hub-Signature")
	if signature == "" {
		return shared.BadRequest("missing_signature", "X-Hub-Signature header required")
	}
	event := c.Request().Header.Get("X-GitHub-Event")
	if event == "" {
		return shared.BadRequest("missing_event", "X-GitHub-Event header required")
	}

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return shared.BadRequest("unreadable_body", "could not read request body")
	}

	adapter, err := h.registry.Get(provider.GitHub)
	if err != nil {
		return shared.InternalError("provider_missing", "github adapter not configured")
	}
	if err := adapter.VerifySignature([]byte(hook.Secret), payload, signature); err != nil {
		return shared.Unauthorized("invalid_signature", "signature verification failed: "+err.Error())
	}

	switch event {
	case "ping":
		return c.JSON(http.StatusOK, map[string]string{"message": "pong"})
	case "issues":
		return h.handleGitHubIssue(c, hook, payload)
	default:
		return shared.BadRequest("unsupported_event", "event type "+event+" is not handled")
	}
}

type githubIssueEvent struct {
	Action string `json:"action"`
	Issue  struct {
		ID     int64  `json:"id"`
		Number int    `json:"number"`
		Title  string `json:"title"`
		Body   string `json:"body"`
		State  string `json:"state"`
		Labels []struct {
			Name string `json:"name"`
		} `json:"labels"`
		CreatedAt time.Time  `json:"created_at"`
		UpdatedAt time.Time  `json:"updated_at"`
		ClosedAt  *time.Time `json:"closed_at"`
	} `json:"issue"`
}

func (h *Handler) handleGitHubIssue(c echo.Context, hook *RepositoryWebhook, payload []byte) error {
	var event githubIssueEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return shared.BadRequest("invalid_payload", "could not parse issue event")
	}

	ctx := c.Request().Context()
	remoteID := strconv.FormatInt(event.Issue.ID, 10)

	if event.Action == "deleted" {
		if err := h.repos.DeleteIssue(ctx, hook.RepositoryID, remoteID); err != nil {
			h.logger.Error("issue delete failed", "error", err, "repository_id", hook.RepositoryID)
			return shared.InternalError("delete_failed", "could not delete issue")
		}
		return c.NoContent(http.StatusNoContent)
	}

	labels := make(shared.StringSlice, 0, len(event.Issue.Labels))
	for _, l := range event.Issue.Labels {
		labels = append(labels, l.Name)
	}

	issue := &repo.Issue{
		RepositoryID:  hook.RepositoryID,
		RemoteID:      remoteID,
		Number:        event.Issue.Number,
		Title:         event.Issue.Title,
		Body:          event.Issue.Body,
		State:         event.Issue.State,
		Labels:        labels,
		VendorCreated: event.Issue.CreatedAt,
		VendorUpdated: event.Issue.UpdatedAt,
		ClosedAt:      event.Issue.ClosedAt,
	}
	if _, err := h.repos.UpsertIssue(ctx, issue); err != nil {
		h.logger.Error("issue upsert failed", "error", err, "repository_id", hook.RepositoryID)
		return shared.InternalError("upsert_failed", "could not store issue")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ReceiveGitLab(c echo.Context) error {
	hook, err := h.store.GetByID(c.Request().Context(), c.Param("webhook_id"))
	if err != nil {
		return shared.NotFound("webhook_not_found", "unknown webhook")
	}

	adapter, err := h.registry.Get(provider.GitLab)
	if err != nil {
		return shared.InternalError("provider_missing", "gitlab adapter not configured")
	}

	token := c.Request().Header.Get("X-Gitlab-Token")
	if token == "" {
		return shared.BadRequest("missing_token", "X-Gitlab-Token header required")
	}
	if err := adapter.VerifySignature([]byte(hook.Secret), nil, token); err != nil {
		return shared.Unauthorized("invalid_token", "token verification failed")
	}

	event := c.Request().Header.Get("X-Gitlab-Event")
	if event != "Issue Hook" {
		return shared.BadRequest("unsupported_event", "event type "+event+" is not handled")
	}

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return shared.BadRequest("unreadable_body", "could not read request body")
	}
	return h.handleGitLabIssue(c, hook, payload)
}

type gitlabIssueEvent struct {
	ObjectKind       string `json:"object_kind"`
	ObjectAttributes struct {
		ID          int64  `json:"id"`
		IID         int    `json:"iid"`
		Title       string `json:"title"`
		Description string `json:"description"`
		State       string `json:"state"`
		Action      string `json:"action"`
		CreatedAt   string `json:"created_at"`
		UpdatedAt   string `json:"updated_at"`
		URL         string `json:"url"`
	} `json:"object_attributes"`
	Labels []struct {
		Title string `json:"title"`
	} `json:"labels"`
}

func (h *Handler) handleGitLabIssue(c echo.Context, hook *RepositoryWebhook, payload []byte) error {
	var event gitlabIssueEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return shared.BadRequest("invalid_payload", "could not parse issue event")
	}
	if event.ObjectKind != "issue" {
		return shared.BadRequest("unsupported_event", "object kind "+event.ObjectKind+" is not handled")
	}

	// Hook payload datetimes use GitLab's own format, not ISO.
	created, err := provider.ParseGitLabHookTime(event.ObjectAttributes.CreatedAt)
	if err != nil {
		return shared.BadRequest("invalid_payload", "could not parse created_at")
	}
	updated, err := provider.ParseGitLabHookTime(event.ObjectAttributes.UpdatedAt)
	if err != nil {
		return shared.BadRequest("invalid_payload", "could not parse updated_at")
	}

	labels := make(shared.StringSlice, 0, len(event.Labels))
	for _, l := range event.Labels {
		labels = append(labels, l.Title)
	}

	issue := &repo.Issue{
		RepositoryID:  hook.RepositoryID,
		RemoteID:      strconv.FormatInt(event.ObjectAttributes.ID, 10),
		Number:        event.ObjectAttributes.IID,
		Title:         event.ObjectAttributes.Title,
		Body:          event.ObjectAttributes.Description,
		State:         provider.NormalizeIssueState(event.ObjectAttributes.State),
		Labels:        labels,
		VendorCreated: created,
		VendorUpdated: updated,
	}
	if _, err := h.repos.UpsertIssue(c.Request().Context(), issue); err != nil {
		h.logger.Error("issue upsert failed", "error", err, "repository_id", hook.RepositoryID)
		return shared.InternalError("upsert_failed", "could not store issue")
	}
	return c.NoContent(http.StatusNoContent)
}
