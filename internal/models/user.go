package models

import (
	"time"
)

// User is a caller of the ordering service. The identity is caller-supplied
// (it comes from the upstream agent, not from this service), so there is no
// generated key: rows are upserted on first order and never hard-deleted.
type User struct {
	ID           string                 `gorm:"primaryKey;size:64" json:"id"`
	Name         string                 `json:"name,omitempty"`
	Email        string                 `json:"email,omitempty"`
	LocationCity string                 `json:"location_city,omitempty"`
	Preferences  map[string]interface{} `gorm:"serializer:json" json:"preferences"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

func (User) TableName() string { return "users" }
