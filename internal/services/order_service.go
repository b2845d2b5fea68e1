package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/franciscosanchezn/pizza-mcp/internal/metrics"
	"github.com/franciscosanchezn/pizza-mcp/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderItemInput is one line of a submitted order. Size and quantity are
// optional on the wire: size defaults to medium, quantity to 1.
type OrderItemInput struct {
	PizzaID  string   `json:"pizza_id"`
	Size     string   `json:"size,omitempty"`
	Quantity *int     `json:"quantity,omitempty"`
	Toppings []string `json:"toppings,omitempty"`
}

// OrderFilter narrows ListOrders. Zero values mean "no filter".
type OrderFilter struct {
	UserID   string
	Statuses []string
	Since    time.Duration
}

// listOrdersLimit caps a single listing, newest first.
const listOrdersLimit = 100

// OrderService validates order submissions against the catalog, computes
// authoritative pricing, persists order aggregates transactionally and
// enforces the cancellation state rules.
type OrderService interface {
	// PlaceOrder prices the items against the current catalog snapshot and
	// persists the order with its line items as one transaction. The
	// returned order is in status pending.
	PlaceOrder(ctx context.Context, userID string, nickname *string, items []OrderItemInput) (*models.Order, error)
	// CancelOrder flips a pending order to cancelled. The acting user must
	// own the order unless admin is set.
	CancelOrder(ctx context.Context, orderID, userID string, admin bool) error
	// GetOrder returns the order with its items.
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// ListOrders returns a filtered snapshot, newest first, without items.
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)
}

// orderService is the gorm implementation of OrderService
type orderService struct {
	db           *gorm.DB
	catalog      CatalogCache
	storeTimeout time.Duration
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(db *gorm.DB, catalog CatalogCache, storeTimeout time.Duration) OrderService {
	return &orderService{db: db, catalog: catalog, storeTimeout: storeTimeout}
}

// bounded derives the per-operation storage deadline.
func (s *orderService) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func (s *orderService) PlaceOrder(ctx context.Context, userID string, nickname *string, items []OrderItemInput) (*models.Order, error) {
	if userID == "" {
		return nil, models.NewValidationError("userId is required")
	}
	if len(items) == 0 {
		return nil, models.NewValidationError("Order must contain at least one item")
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	// One view for the whole submission: every line is priced against the
	// same catalog state.
	view, err := s.catalog.View(ctx)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:   userID,
		Nickname: nickname,
		Status:   models.OrderStatusPending,
	}
	var total float64
	for i, item := range items {
		line, err := priceOrderItem(view, i, item)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, *line)
		total += line.ItemPrice
	}
	order.TotalPrice = roundToCents(total)

	if err := s.persistOrder(ctx, order); err != nil {
		return nil, err
	}

	metrics.OrdersPlaced.Inc()
	log.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"user_id":     userID,
		"items":       len(order.Items),
		"total_price": order.TotalPrice,
	}).Info("Order placed")
	return order, nil
}

// priceOrderItem resolves and prices one submitted line against the view.
// Validation failures name the offending item.
func priceOrderItem(view CatalogView, index int, item OrderItemInput) (*models.OrderItem, error) {
	pizza, ok := view.PizzaByID(item.PizzaID)
	if !ok {
		return nil, models.NewValidationError(fmt.Sprintf("Pizza not found: %s", item.PizzaID),
			map[string]interface{}{"item": index, "pizza_id": item.PizzaID})
	}

	size := item.Size
	if size == "" {
		size = models.SizeMedium
	}
	basePrice, ok := pizza.Sizes[size]
	if !ok {
		return nil, models.NewValidationError(fmt.Sprintf("Invalid size %q for pizza %s", size, pizza.Name),
			map[string]interface{}{"item": index, "size": size, "pizza_id": pizza.ID})
	}

	quantity := 1
	if item.Quantity != nil {
		quantity = *item.Quantity
	}
	if quantity < 1 {
		return nil, models.NewValidationError("Quantity must be at least 1",
			map[string]interface{}{"item": index, "quantity": quantity})
	}

	var toppingTotal float64
	for _, toppingID := range item.Toppings {
		topping, ok := view.ToppingByID(toppingID)
		if !ok {
			return nil, models.NewValidationError(fmt.Sprintf("Topping not found: %s", toppingID),
				map[string]interface{}{"item": index, "topping_id": toppingID})
		}
		toppingTotal += topping.Price
	}

	toppings := item.Toppings
	if toppings == nil {
		toppings = []string{}
	}

	return &models.OrderItem{
		PizzaID:   pizza.ID,
		PizzaName: pizza.Name,
		Size:      size,
		Quantity:  quantity,
		Toppings:  toppings,
		ItemPrice: roundToCents((basePrice + toppingTotal) * float64(quantity)),
	}, nil
}

// persistOrder writes the aggregate in one transaction: the order row, its
// items, and the user upsert keeping order history joinable. A transient
// storage failure is retried once; the rollback guarantees no partial
// write survived the first attempt.
func (s *orderService) persistOrder(ctx context.Context, order *models.Order) error {
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(order).Error; err != nil {
				return err
			}
			return tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.User{ID: order.UserID}).Error
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err.Error(),
		}).Warn("Order persistence attempt failed")
	}
	return storeError(ctx, lastErr)
}

func (s *orderService) CancelOrder(ctx context.Context, orderID, userID string, admin bool) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Order", orderID)
		}
		return storeError(ctx, err)
	}

	if !admin && order.UserID != userID {
		return models.NewAPIError(models.ErrForbidden, "User is not authorized to cancel this order",
			map[string]interface{}{"order_id": orderID})
	}
	if !order.Status.CanTransitionTo(models.OrderStatusCancelled) {
		return models.NewAPIError(models.ErrInvalidStateTransition,
			fmt.Sprintf("Order cannot be cancelled (status: %s)", order.Status),
			map[string]interface{}{"order_id": orderID, "status": string(order.Status)})
	}

	// Guarded update: a cancel racing a concurrent transition must lose,
	// never overwrite it.
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":     models.OrderStatusCancelled,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return storeError(ctx, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewAPIError(models.ErrConflict, "Order status changed concurrently, cancellation aborted",
			map[string]interface{}{"order_id": orderID})
	}

	metrics.OrdersCancelled.Inc()
	log.WithFields(logrus.Fields{"order_id": orderID, "user_id": userID}).Info("Order cancelled")
	return nil
}

func (s *orderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Order", id)
		}
		return nil, storeError(ctx, err)
	}
	return &order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	query := s.db.WithContext(ctx).Model(&models.Order{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.Since > 0 {
		query = query.Where("created_at >= ?", time.Now().Add(-filter.Since))
	}

	var orders []models.Order
	if err := query.Order("created_at DESC").Limit(listOrdersLimit).Find(&orders).Error; err != nil {
		return nil, storeError(ctx, err)
	}
	return orders, nil
}

// ParseStatusFilter splits a comma-separated status argument, lowercasing
// and trimming each value. Unknown values are kept and simply match no
// orders, mirroring a storage-side IN filter.
func ParseStatusFilter(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var sinceFilterRe = regexp.MustCompile(`^(\d+)([mhd])$`)

// ParseSinceFilter parses a relative time filter like "60m", "2h" or "1d".
// Anything unparseable yields zero, meaning no time bound.
func ParseSinceFilter(raw string) time.Duration {
	match := sinceFilterRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if match == nil {
		return 0
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	switch match[2] {
	case "m":
		return time.Duration(value) * time.Minute
	case "h":
		return time.Duration(value) * time.Hour
	case "d":
		return time.Duration(value) * 24 * time.Hour
	}
	return 0
}

// roundToCents rounds a computed price to two decimals.
func roundToCents(v float64) float64 {
	return math.Round(v*100) / 100
}
