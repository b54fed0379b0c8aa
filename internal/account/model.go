package account

import "time"

type User struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"not null;uniqueIndex" json:"username"`
	Email     string    `gorm:"index" json:"email,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LinkedAccount records one OAuth-authorized identity with one provider.
// (Provider, RemoteID) is the natural key and never changes after creation;
// only the owning user and the vendor login may move.
type LinkedAccount struct {
	ID           string     `gorm:"primaryKey" json:"id"`
	Provider     string     `gorm:"not null;index:idx_provider_remote,unique" json:"provider"`
	RemoteID     string     `gorm:"not null;index:idx_provider_remote,unique" json:"remote_id"`
	UserID       string     `gorm:"not null;index" json:"user_id"`
	Login        string     `json:"login"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	TokenType    string     `json:"-"`
	ExpiresAt    *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
