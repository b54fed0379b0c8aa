package bootstrap

import (
	"log/slog"
	"os"

	"github.com/openhub-dev/openhub/internal/account"
	"github.com/openhub-dev/openhub/internal/auth"
	"github.com/openhub-dev/openhub/internal/jobs"
	"github.com/openhub-dev/openhub/internal/notify"
	"github.com/openhub-dev/openhub/internal/provider"
	"github.com/openhub-dev/openhub/internal/repo"
	"github.com/openhub-dev/openhub/internal/webhook"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideTokenService(cfg *Config) *auth.TokenService {
	return auth.NewTokenService(cfg.HMACKey)
}

func ProvideAuthMiddleware(tokens *auth.TokenService) *auth.Middleware {
	return auth.NewMiddleware(tokens)
}

func ProvideStateSigner(cfg *Config) *account.StateSigner {
	return account.NewStateSigner(cfg.HMACKey)
}

func ProvideAccountEvents(queue *jobs.Queue) account.Events {
	return queue
}

func ProvideReconciler(store *account.Store, events account.Events, logger *slog.Logger) *account.Reconciler {
	return account.NewReconciler(store, events, logger.With("component", "reconciler"))
}

func ProvideAccountHandler(registry *provider.Registry, reconciler *account.Reconciler, store *account.Store, tokens *auth.TokenService, states *account.StateSigner, logger *slog.Logger) *account.Handler {
	return account.NewHandler(registry, reconciler, store, tokens, states, logger.With("handler", "account"))
}

func ProvideRepoHandler(store *repo.Store, accounts *account.Store, queue *jobs.Queue, manager *webhook.Manager, logger *slog.Logger) *repo.Handler {
	return repo.NewHandler(store, accounts, queue, manager, logger.With("handler", "repo"))
}

func ProvideWebhookHandler(registry *provider.Registry, hooks *webhook.Store, repos *repo.Store, logger *slog.Logger) *webhook.Handler {
	return webhook.NewHandler(registry, hooks, repos, logger.With("handler", "webhook"))
}

func ProvideNotifyHandler(store *notify.Store, logger *slog.Logger) *notify.Handler {
	return notify.NewHandler(store, logger.With("handler", "notify"))
}

type HandlerParams struct {
	fx.In

	AccountHandler *account.Handler
	RepoHandler    *repo.Handler
	WebhookHandler *webhook.Handler
	NotifyHandler  *notify.Handler
	AuthMiddleware *auth.Middleware
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	authGroup := e.Group("/auth")
	params.AccountHandler.RegisterRoutes(authGroup)

	meGroup := e.Group("/auth")
	meGroup.Use(params.AuthMiddleware.Authenticate)
	params.AccountHandler.RegisterProtectedRoutes(meGroup)

	userGroup := e.Group("/user")
	userGroup.Use(params.AuthMiddleware.Authenticate)
	params.RepoHandler.RegisterRoutes(userGroup)
	params.NotifyHandler.RegisterRoutes(userGroup)

	params.WebhookHandler.RegisterRoutes(e.Group("/webhooks"))
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideTokenService,
		ProvideAuthMiddleware,
		ProvideStateSigner,
		ProvideAccountEvents,
		ProvideReconciler,
		ProvideAccountHandler,
		ProvideRepoHandler,
		ProvideWebhookHandler,
		ProvideNotifyHandler,
	),
	fx.Invoke(RegisterRoutes),
)
