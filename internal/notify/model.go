package notify

import "time"

const (
	KindSyncFailed = "sync_failed"
)

// Notification is an out-of-band message to a user, written when async work
// fails after its triggering request has already returned.
type Notification struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"not null;index" json:"user_id"`
	Kind      string    `gorm:"not null" json:"kind"`
	Message   string    `json:"message"`
	Read      bool      `gorm:"default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
