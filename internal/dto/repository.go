package dto

import "time"

type RepositoryResponse struct {
	ID           string                `json:"id"`
	Provider     string                `json:"provider"`
	Name         string                `json:"name"`
	FullName     string                `json:"full_name"`
	Description  string                `json:"description,omitempty"`
	URL          string                `json:"url"`
	Visibility   string                `json:"visibility"`
	Stars        int                   `json:"stars"`
	Forks        int                   `json:"forks"`
	OpenIssues   int                   `json:"open_issues"`
	Languages    map[string]float64    `json:"languages,omitempty"`
	Added        bool                  `json:"added"`
	SyncStatus   string                `json:"sync_status"`
	Organization *OrganizationResponse `json:"organization,omitempty"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

type OrganizationResponse struct {
	ID         string `json:"id"`
	Provider   string `json:"provider"`
	Login      string `json:"login"`
	Name       string `json:"name,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	URL        string `json:"url,omitempty"`
	Membership string `json:"membership,omitempty"`
}

type NotificationResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
