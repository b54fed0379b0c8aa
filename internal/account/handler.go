package account

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/openhub-dev/openhub/internal/auth"
	"github.com/openhub-dev/openhub/internal/dto"
	"github.com/openhub-dev/openhub/internal/provider"
	"github.com/openhub-dev/openhub/internal/shared"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	registry   *provider.Registry
	reconciler *Reconciler
	store      *Store
	tokens     *auth.TokenService
	states     *StateSigner
	logger     *slog.Logger
}

func NewHandler(registry *provider.Registry, reconciler *Reconciler, store *Store, tokens *auth.TokenService, states *StateSigner, logger *slog.Logger) *Handler {
	return &Handler{
		registry:   registry,
		reconciler: reconciler,
		store:      store,
		tokens:     tokens,
		states:     states,
		logger:     logger,
	}
}

// RegisterRoutes mounts the unauthenticated OAuth flow endpoints.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/login/:provider", h.Login)
	g.GET("/complete/:provider", h.Complete)
	g.POST("/refresh", h.Refresh)
}

// RegisterProtectedRoutes mounts endpoints behind the JWT middleware.
func (h *Handler) RegisterProtectedRoutes(g *echo.Group) {
	g.GET("/me", h.Me)
}

func (h *Handler) Login(c echo.Context) error {
	name := c.Param("provider")
	adapter, err := h.registry.Get(name)
	if err != nil {
		return shared.BadRequest("unsupported_provider", err.Error())
	}

	state := h.states.Generate(name)
	return c.Redirect(http.StatusFound, adapter.AuthURL(state))
}

func (h *Handler) Complete(c echo.Context) error {
	name := c.Param("provider")
	adapter, err := h.registry.Get(name)
	if err != nil {
		return shared.BadRequest("unsupported_provider", err.Error())
	}

	if err := h.states.Verify(c.QueryParam("state"), name); err != nil {
		return shared.BadRequest("invalid_state", "oauth state rejected: "+err.Error())
	}

	code := c.QueryParam("code")
	if code == "" {
		return shared.BadRequest("missing_code", "authorization code required")
	}

	ctx := c.Request().Context()
	token, err := adapter.Exchange(ctx, code)
	if err != nil {
		h.logger.Error("token exchange failed", "provider", name, "error", err)
		return shared.BadRequest("exchange_failed", "could not exchange authorization code")
	}

	profile, err := adapter.FetchProfile(ctx, token.AccessToken)
	if err != nil {
		h.logger.Error("profile fetch failed", "provider", name, "error", err)
		return shared.BadRequest("profile_failed", "could not fetch vendor profile")
	}

	user, err := h.reconciler.Reconcile(ctx, name, profile, token, h.currentUserID(c))
	if err != nil {
		h.logger.Error("identity reconciliation failed", "provider", name, "error", err)
		return shared.InternalError("reconcile_failed", "could not reconcile identity")
	}

	pair, err := h.tokens.IssuePair(user.ID)
	if err != nil {
		return shared.InternalError("token_failed", "could not issue tokens")
	}

	return c.JSON(http.StatusOK, dto.TokenResponse{
		Access:    pair.Access,
		Refresh:   pair.Refresh,
		ExpiresAt: pair.ExpiresAt,
	})
}

// currentUserID extracts an optional bearer identity. The completion
// endpoint is reachable anonymously; an already-authenticated caller links
// the new account to themselves.
func (h *Handler) currentUserID(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	claims, err := h.tokens.Validate(strings.TrimPrefix(header, "Bearer "), auth.TokenAccess)
	if err != nil {
		return ""
	}
	return claims.UserID
}

func (h *Handler) Refresh(c echo.Context) error {
	var req dto.RefreshRequest
	if err := c.Bind(&req); err != nil || req.Refresh == "" {
		return shared.BadRequest("invalid_request", "refresh token required")
	}

	claims, err := h.tokens.Validate(req.Refresh, auth.TokenRefresh)
	if err != nil {
		return shared.Unauthorized("invalid_token", "refresh token rejected")
	}

	pair, err := h.tokens.IssuePair(claims.UserID)
	if err != nil {
		return shared.InternalError("token_failed", "could not issue tokens")
	}

	return c.JSON(http.StatusOK, dto.TokenResponse{
		Access:    pair.Access,
		Refresh:   pair.Refresh,
		ExpiresAt: pair.ExpiresAt,
	})
}

func (h *Handler) Me(c echo.Context) error {
	userID, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := h.store.GetUserByID(ctx, userID)
	if err != nil {
		return shared.NotFound("user_not_found", "user not found")
	}

	accounts, err := h.store.ListAccountsByUser(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list linked accounts", "error", err, "user_id", userID)
		return shared.InternalError("list_failed", "could not load linked accounts")
	}

	resp := dto.MeResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		AvatarURL: user.AvatarURL,
		Accounts:  make([]dto.LinkedAccountResponse, 0, len(accounts)),
	}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, dto.LinkedAccountResponse{
			Provider: a.Provider,
			Login:    a.Login,
		})
	}

	return c.JSON(http.StatusOK, resp)
}
