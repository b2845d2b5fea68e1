package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus is the order state machine:
//
//	pending → confirmed → preparing → ready → delivered
//	pending → cancelled
//
// pending is the sole initial state; delivered and cancelled are terminal.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusPreparing},
	OrderStatusPreparing: {OrderStatusReady},
	OrderStatusReady:     {OrderStatusDelivered},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Terminal reports whether no further transition is allowed from s.
func (s OrderStatus) Terminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether the state machine permits s → next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is the aggregate root for a placed order. TotalPrice is derived by
// the order engine, never caller-supplied.
type Order struct {
	ID         string      `gorm:"primaryKey;size:36" json:"id"`
	UserID     string      `gorm:"not null;index" json:"user_id"`
	Nickname   *string     `json:"nickname"`
	Status     OrderStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	TotalPrice float64     `gorm:"not null" json:"total_price"`
	CreatedAt  time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	return nil
}

// OrderItem is owned by exactly one Order. PizzaName is a deliberate
// denormalized copy: catalog entries may change or disappear later without
// invalidating order history.
type OrderItem struct {
	ID        string   `gorm:"primaryKey;size:36" json:"id"`
	OrderID   string   `gorm:"size:36;not null;index" json:"order_id"`
	PizzaID   string   `gorm:"size:36;not null" json:"pizza_id"`
	PizzaName string   `gorm:"not null" json:"pizza_name"`
	Size      string   `gorm:"not null" json:"size"`
	Quantity  int      `gorm:"not null" json:"quantity"`
	Toppings  []string `gorm:"serializer:json" json:"toppings"`
	ItemPrice float64  `gorm:"not null" json:"item_price"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}
