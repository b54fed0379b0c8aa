package webhook

import (
	"context"
	"errors"

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
	return s.db.AutoMigrate(&RepositoryWebhook{})
}

// Create inserts a webhook row for a repository, generating its permanent
// secret.
func (s *Store) Create(ctx context.Context, repositoryID string) (*RepositoryWebhook, error) {
	hook := &RepositoryWebhook{
		ID:            shared.NewID("hook_"),
		RepositoryID:  repositoryID,
		Secret:        shared.NewToken(20),
		Active:        false,
		IssuesEnabled: true,
	}
	if err := s.db.WithContext(ctx).Create(hook).Error; err != nil {
		return nil, err
	}
	return hook, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*RepositoryWebhook, error) {
	var hook RepositoryWebhook
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&hook).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &hook, err
}

func (s *Store) GetByRepository(ctx context.Context, repositoryID string) (*RepositoryWebhook, error) {
	var hook RepositoryWebhook
	err := s.db.WithContext(ctx).Where("repository_id = ?", repositoryID).First(&hook).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &hook, err
}

func (s *Store) Save(ctx context.Context, hook *RepositoryWebhook) error {
	return s.db.WithContext(ctx).Save(hook).Error
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&RepositoryWebhook{}).Error
}
