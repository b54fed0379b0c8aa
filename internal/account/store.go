package account

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
	return s.db.AutoMigrate(&User{}, &LinkedAccount{})
}

func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = shared.NewID("user_")
	}
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &u, err
}

func (s *Store) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

func (s *Store) CreateAccount(ctx context.Context, a *LinkedAccount) error {
	if a.ID == "" {
		a.ID = shared.NewID("acct_")
	}
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *Store) GetAccount(ctx context.Context, providerName, remoteID string) (*LinkedAccount, error) {
	var a LinkedAccount
	err := s.db.WithContext(ctx).Where("provider = ? AND remote_id = ?", providerName, remoteID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &a, err
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*LinkedAccount, error) {
	var a LinkedAccount
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &a, err
}

func (s *Store) ListAccountsByUser(ctx context.Context, userID string) ([]*LinkedAccount, error) {
	var accounts []*LinkedAccount
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("provider").Find(&accounts).Error
	return accounts, err
}

func (s *Store) SaveAccount(ctx context.Context, a *LinkedAccount) error {
	return s.db.WithContext(ctx).Save(a).Error
}
