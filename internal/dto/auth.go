package dto

import "time"

type TokenResponse struct {
	Access    string    `json:"access"`
	Refresh   string    `json:"refresh"`
	ExpiresAt time.Time `json:"expires_at"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

type LinkedAccountResponse struct {
	Provider string `json:"provider"`
	Login    string `json:"login"`
}

type MeResponse struct {
	ID        string                  `json:"id"`
	Username  string                  `json:"username"`
	Email     string                  `json:"email,omitempty"`
	FirstName string                  `json:"first_name,omitempty"`
	LastName  string                  `json:"last_name,omitempty"`
	AvatarURL string                  `json:"avatar_url,omitempty"`
	Accounts  []LinkedAccountResponse `json:"accounts"`
}
