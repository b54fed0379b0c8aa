package repo

import (
	"time"

	"github.com/openhub-dev/openhub/internal/shared"
)

const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

// Repository is a vendor repository discovered through an account sync.
// Exactly one of OwnerAccountID and OrganizationID is set. All vendor-derived
// fields are overwritten wholesale on every sync pass.
type Repository struct {
	ID             string          `gorm:"primaryKey" json:"id"`
	Provider       string          `gorm:"not null;index:idx_repo_provider_remote,unique" json:"provider"`
	RemoteID       string          `gorm:"not null;index:idx_repo_provider_remote,unique" json:"remote_id"`
	OwnerAccountID *string         `gorm:"index" json:"owner_account_id,omitempty"`
	OrganizationID *string         `gorm:"index" json:"organization_id,omitempty"`
	Name           string          `json:"name"`
	FullName       string          `json:"full_name"`
	Description    string          `json:"description"`
	URL            string          `json:"url"`
	Visibility     string          `json:"visibility"`
	Stars          int             `json:"stars"`
	Forks          int             `json:"forks"`
	OpenIssues     int             `json:"open_issues"`
	Languages      shared.FloatMap `gorm:"type:text" json:"languages"`
	Added          bool            `gorm:"default:false" json:"added"`
	Removed        bool            `gorm:"default:false" json:"removed"`
	SyncStatus     string          `gorm:"default:pending" json:"sync_status"`
	SyncError      string          `json:"sync_error,omitempty"`
	VendorUpdated  time.Time       `json:"vendor_updated_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type Organization struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Provider    string    `gorm:"not null;index:idx_org_provider_remote,unique" json:"provider"`
	RemoteID    string    `gorm:"not null;index:idx_org_provider_remote,unique" json:"remote_id"`
	Login       string    `json:"login"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AvatarURL   string    `json:"avatar_url"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership records a linked account's standing in an organization.
// Absence of a row means non-member.
type Membership struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	OrganizationID string    `gorm:"not null;index:idx_member_org_account,unique" json:"organization_id"`
	AccountID      string    `gorm:"not null;index:idx_member_org_account,unique" json:"account_id"`
	Admin          bool      `gorm:"default:false" json:"admin"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Issue struct {
	ID            string             `gorm:"primaryKey" json:"id"`
	RepositoryID  string             `gorm:"not null;index:idx_issue_repo_remote,unique" json:"repository_id"`
	RemoteID      string             `gorm:"not null;index:idx_issue_repo_remote,unique" json:"remote_id"`
	Number        int                `json:"number"`
	Title         string             `json:"title"`
	Body          string             `json:"body"`
	State         string             `json:"state"`
	Labels        shared.StringSlice `gorm:"type:text" json:"labels"`
	VendorCreated time.Time          `json:"vendor_created_at"`
	VendorUpdated time.Time          `json:"vendor_updated_at"`
	ClosedAt      *time.Time         `json:"closed_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}
