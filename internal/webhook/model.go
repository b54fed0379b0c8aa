package webhook

import "time"

// RepositoryWebhook is the local record of the vendor webhook for one
// repository. The secret is generated once at row creation and never
// rotated; RemoteID stays nil until the first successful remote create.
type RepositoryWebhook struct {
	ID            string     `gorm:"primaryKey" json:"id"`
	RepositoryID  string     `gorm:"not null;uniqueIndex" json:"repository_id"`
	RemoteID      *string    `json:"remote_id,omitempty"`
	Secret        string     `gorm:"not null" json:"-"`
	Active        bool       `gorm:"default:false" json:"active"`
	IssuesEnabled bool       `gorm:"default:true" json:"issues_enabled"`
	RemoteCreated *time.Time `json:"remote_created_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
