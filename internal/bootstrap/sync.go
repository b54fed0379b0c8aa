package bootstrap

import (
	"context"
	"log/slog"

	"github.com/openhub-dev/openhub/internal/account"
	"github.com/openhub-dev/openhub/internal/jobs"
	"github.com/openhub-dev/openhub/internal/notify"
	"github.com/openhub-dev/openhub/internal/provider"
	"github.com/openhub-dev/openhub/internal/repo"
	"github.com/openhub-dev/openhub/internal/syncer"
	"github.com/openhub-dev/openhub/internal/webhook"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// ProvideRegistry builds the adapter registry once from explicit
// configuration. Providers without credentials are left out.
func ProvideRegistry(cfg *Config) *provider.Registry {
	var adapters []provider.Adapter
	if cfg.GitHubClientID != "" {
		adapters = append(adapters, provider.NewGitHubAdapter(provider.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubRedirectURL,
			BaseURL:      cfg.GitHubAPIURL,
		}))
	}
	if cfg.GitLabClientID != "" {
		adapters = append(adapters, provider.NewGitLabAdapter(provider.Config{
			ClientID:     cfg.GitLabClientID,
			ClientSecret: cfg.GitLabClientSecret,
			RedirectURL:  cfg.GitLabRedirectURL,
			BaseURL:      cfg.GitLabAPIURL,
		}))
	}
	return provider.NewRegistry(adapters...)
}

func ProvideWebhookManager(registry *provider.Registry, hooks *webhook.Store, repos *repo.Store, accounts *account.Store, cfg *Config, logger *slog.Logger) *webhook.Manager {
	return webhook.NewManager(registry, hooks, repos, accounts, cfg.PublicBaseURL, logger.With("component", "webhook_manager"))
}

func ProvideOrchestrator(registry *provider.Registry, accounts *account.Store, repos *repo.Store, manager *webhook.Manager, notices *notify.Store, logger *slog.Logger) *syncer.Orchestrator {
	return syncer.NewOrchestrator(registry, accounts, repos, manager, notices, logger.With("component", "syncer"))
}

func ProvideQueue(redisClient *redis.Client) *jobs.Queue {
	return jobs.NewQueue(redisClient)
}

func StartWorkers(lc fx.Lifecycle, queue *jobs.Queue, orchestrator *syncer.Orchestrator, cfg *Config, logger *slog.Logger) {
	workers := make([]*jobs.Worker, cfg.WorkerCount)
	for i := range workers {
		workers[i] = jobs.NewWorker(queue, orchestrator, logger.With("component", "worker", "index", i))
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for _, w := range workers {
				w.Start()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			for _, w := range workers {
				if err := w.Stop(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})
}

var SyncModule = fx.Options(
	fx.Provide(
		ProvideRegistry,
		ProvideWebhookManager,
		ProvideOrchestrator,
		ProvideQueue,
	),
	fx.Invoke(StartWorkers),
)
