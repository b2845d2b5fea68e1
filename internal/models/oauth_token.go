package models

import (
	"time"

	"gorm.io/gorm"
)

// OAuthToken mirrors the token records the issuer persists through its gorm
// token store. Access tokens are self-contained JWTs, but keeping the record
// lets the issuer answer revocation checks and expiry sweeps.
type OAuthToken struct {
	ID               uint   `gorm:"primaryKey"`
	ClientID         string `gorm:"index;not null"`
	UserID           *string
	Scope            string
	AccessToken      string `gorm:"uniqueIndex;not null"`
	AccessExpiresAt  time.Time
	RefreshToken     *string `gorm:"index"`
	RefreshExpiresAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

func (OAuthToken) TableName() string {
	return "oauth_tokens"
}

// Expired reports whether the access token is past its lifetime at t.
func (t *OAuthToken) Expired(now time.Time) bool {
	return !t.AccessExpiresAt.IsZero() && now.After(t.AccessExpiresAt)
}
