package notify

import (
	"context"

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
	return s.db.AutoMigrate(&Notification{})
}

func (s *Store) Create(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = shared.NewID("notif_")
	}
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]*Notification, error) {
	var notifications []*Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&notifications).Error
	return notifications, err
}

func (s *Store) MarkRead(ctx context.Context, userID, id string) error {
	result := s.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
