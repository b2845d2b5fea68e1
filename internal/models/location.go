package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DiscountType enumerates the supported offer discount kinds.
type DiscountType string

const (
	DiscountPercentage   DiscountType = "percentage"
	DiscountFixed        DiscountType = "fixed"
	DiscountBuyOneGetOne DiscountType = "buy_one_get_one"
)

// Valid reports whether d is one of the supported discount types.
func (d DiscountType) Valid() bool {
	switch d {
	case DiscountPercentage, DiscountFixed, DiscountBuyOneGetOne:
		return true
	}
	return false
}

// StoreLocation represents a physical store. Identity is immutable; the
// operational fields (hours, phone, active flag) are mutable.
type StoreLocation struct {
	ID        string            `gorm:"primaryKey;size:36" json:"id"`
	Name      string            `gorm:"not null" json:"name"`
	Address   string            `gorm:"not null" json:"address"`
	City      string            `gorm:"not null;index" json:"city"`
	State     string            `json:"state"`
	ZipCode   string            `json:"zip_code"`
	Country   string            `gorm:"default:'USA'" json:"country"`
	Latitude  *float64          `json:"latitude"`
	Longitude *float64          `json:"longitude"`
	Phone     string            `json:"phone,omitempty"`
	Hours     map[string]string `gorm:"serializer:json" json:"hours"`
	IsActive  bool              `gorm:"default:true" json:"is_active"`
}

func (StoreLocation) TableName() string { return "store_locations" }

func (l *StoreLocation) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// Offer represents a promotion. The location reference is weak ownership the
// other way around: deleting a location removes its offers.
type Offer struct {
	ID             string       `gorm:"primaryKey;size:36" json:"id"`
	LocationID     *string      `gorm:"size:36;index" json:"location_id"`
	Location       *StoreLocation `gorm:"foreignKey:LocationID;constraint:OnDelete:CASCADE" json:"-"`
	Title          string       `gorm:"not null" json:"title"`
	Description    string       `json:"description"`
	DiscountType   DiscountType `gorm:"type:varchar(20);not null" json:"discount_type"`
	DiscountValue  float64      `gorm:"not null" json:"discount_value"`
	MinOrderAmount float64      `gorm:"default:0" json:"min_order_amount"`
	Code           *string      `json:"code"`
	ValidFrom      time.Time    `gorm:"not null" json:"valid_from"`
	ValidUntil     *time.Time   `json:"valid_until"`
	IsActive       bool         `gorm:"default:true" json:"is_active"`
}

func (Offer) TableName() string { return "offers" }

func (o *Offer) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

// ActiveAt reports whether the offer is live at the given instant: flagged
// active and inside its validity window.
func (o *Offer) ActiveAt(t time.Time) bool {
	if !o.IsActive {
		return false
	}
	if o.ValidFrom.After(t) {
		return false
	}
	if o.ValidUntil != nil && o.ValidUntil.Before(t) {
		return false
	}
	return true
}
