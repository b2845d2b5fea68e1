package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Standard pizza sizes. Every pizza must price at least these three;
// additional size keys (e.g. "extra-large") are permitted.
const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
)

// RequiredSizes lists the size keys every pizza must carry a price for.
var RequiredSizes = []string{SizeSmall, SizeMedium, SizeLarge}

// Pizza represents a menu pizza with per-size pricing
type Pizza struct {
	ID              string             `gorm:"primaryKey;size:36" json:"id"`
	Name            string             `gorm:"not null;index" json:"name"`
	Description     string             `json:"description"`
	Sizes           map[string]float64 `gorm:"serializer:json;not null" json:"sizes"`
	ImageURL        string             `json:"image_url,omitempty"`
	IsAvailable     bool               `gorm:"default:true" json:"is_available"`
	PopularityScore int                `gorm:"default:0" json:"popularity_score"`
}

func (Pizza) TableName() string { return "pizzas" }

func (p *Pizza) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// ToppingCategory groups toppings for menu browsing. Toppings reference a
// category but never require one.
type ToppingCategory struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description"`
}

func (ToppingCategory) TableName() string { return "topping_categories" }

func (c *ToppingCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// Topping represents an orderable extra. CategoryID is nullable: deleting a
// category nulls the reference on its toppings, it never cascades.
type Topping struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	Name        string           `gorm:"not null" json:"name"`
	CategoryID  *string          `gorm:"size:36;index" json:"category_id"`
	Category    *ToppingCategory `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"-"`
	Price       float64          `gorm:"not null" json:"price"`
	IsAvailable bool             `gorm:"default:true" json:"is_available"`

	// CategoryName is denormalized onto read payloads by the catalog layer;
	// it is never persisted.
	CategoryName string `gorm:"-" json:"category_name,omitempty"`
}

func (Topping) TableName() string { return "toppings" }

func (t *Topping) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// ToppingPopularity is the read payload for popularity rankings: a topping
// plus how many order lines included it.
type ToppingPopularity struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	CategoryName string  `json:"category_name,omitempty"`
	OrderCount   int64   `json:"order_count"`
}
