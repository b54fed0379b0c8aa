package notify

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/openhub-dev/openhub/internal/auth"
	"github.com/openhub-dev/openhub/internal/dto"
	"github.com/openhub-dev/openhub/internal/shared"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.List)
	g.POST("/notifications/:id/read", h.MarkRead)
}

func (h *Handler) List(c echo.Context) error {
	userID, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	notifications, err := h.store.ListByUser(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("failed to list notifications", "error", err, "user_id", userID)
		return shared.InternalError("list_failed", "could not load notifications")
	}

	out := make([]dto.NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, dto.NotificationResponse{
			ID:        n.ID,
			Kind:      n.Kind,
			Message:   n.Message,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) MarkRead(c echo.Context) error {
	userID, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	err = h.store.MarkRead(c.Request().Context(), userID, c.Param("id"))
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("notification_not_found", "notification not found")
	}
	if err != nil {
		return shared.InternalError("update_failed", "could not update notification")
	}
	return c.NoContent(http.StatusNoContent)
}
