package bootstrap

import (
	"github.com/openhub-dev/openhub/internal/account"
	"github.com/openhub-dev/openhub/internal/notify"
	"github.com/openhub-dev/openhub/internal/repo"
	"github.com/openhub-dev/openhub/internal/webhook"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideAccountStore(db *gorm.DB) *account.Store {
	return account.NewStore(db)
}

func ProvideRepoStore(db *gorm.DB) *repo.Store {
	return repo.NewStore(db)
}

func ProvideWebhookStore(db *gorm.DB) *webhook.Store {
	return webhook.NewStore(db)
}

func ProvideNotifyStore(db *gorm.DB) *notify.Store {
	return notify.NewStore(db)
}

func RunMigrations(accounts *account.Store, repos *repo.Store, hooks *webhook.Store, notices *notify.Store) error {
	if err := accounts.Migrate(); err != nil {
		return err
	}
	if err := repos.Migrate(); err != nil {
		return err
	}
	if err := hooks.Migrate(); err != nil {
		return err
	}
	return notices.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideAccountStore,
		ProvideRepoStore,
		ProvideWebhookStore,
		ProvideNotifyStore,
	),
	fx.Invoke(RunMigrations),
)
