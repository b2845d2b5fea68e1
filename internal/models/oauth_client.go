package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// OAuthClient is a registered client of the development token issuer. The
// secret is stored bcrypt-hashed; Scopes is the space-separated scope set
// granted to tokens issued for this client (e.g. "pizza:read pizza:write").
type OAuthClient struct {
	ID         string `gorm:"primaryKey"`
	Secret     string `gorm:"not null"`
	Name       string
	Domain     string
	UserID     string // subject placed into issued tokens; may be empty for pure machine clients
	Scopes     string
	GrantTypes string // space-separated; the issuer only honours "client_credentials"
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (OAuthClient) TableName() string {
	return "oauth_clients"
}

// GetID implements oauth2.ClientInfo
func (c *OAuthClient) GetID() string { return c.ID }

// GetSecret implements oauth2.ClientInfo
func (c *OAuthClient) GetSecret() string { return c.Secret }

// GetDomain implements oauth2.ClientInfo
func (c *OAuthClient) GetDomain() string { return c.Domain }

// IsPublic implements oauth2.ClientInfo. Every registered client is
// confidential: the client_credentials grant requires a secret.
func (c *OAuthClient) IsPublic() bool { return false }

// GetUserID implements oauth2.ClientInfo
func (c *OAuthClient) GetUserID() string { return c.UserID }

// VerifyPassword implements oauth2.ClientPasswordVerifier: the stored secret
// is a bcrypt hash, so the manager must compare instead of string-matching.
func (c *OAuthClient) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(c.Secret), []byte(password)) == nil
}
