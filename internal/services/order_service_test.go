package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/franciscosanchezn/pizza-mcp/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestOrderService(t *testing.T) (*gorm.DB, *catalogFixture, OrderService) {
	db := setupTestDB(t)
	fixture := seedCatalog(t, db)
	cache := NewCatalogCache(NewCatalogStore(db))
	svc := NewOrderService(db, cache, 5*time.Second)
	return db, fixture, svc
}

func intPtr(n int) *int { return &n }

func TestPlaceOrderPricing(t *testing.T) {
	_, f, svc := newTestOrderService(t)
	ctx := context.Background()

	// Two medium Hawaiians at 14.99 with 2.50 of toppings each:
	// (14.99 + 1.50 + 1.00) * 2 = 34.98
	order, err := svc.PlaceOrder(ctx, "U123", nil, []OrderItemInput{
		{
			PizzaID:  f.hawaiian.ID,
			Size:     "medium",
			Quantity: intPtr(2),
			Toppings: []string{f.pepperoni.ID, f.mushrooms.ID},
		},
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	assert.InDelta(t, 34.98, order.Items[0].ItemPrice, 0.001)
	assert.InDelta(t, 34.98, order.TotalPrice, 0.001)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "Hawaiian", order.Items[0].PizzaName)
	assert.NotEmpty(t, order.ID)
}

func TestPlaceOrderDefaults(t *testing.T) {
	_, f, svc := newTestOrderService(t)

	order, err := svc.PlaceOrder(context.Background(), "U123", nil, []OrderItemInput{
		{PizzaID: f.margherita.ID},
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, models.SizeMedium, item.Size, "size defaults to medium")
	assert.Equal(t, 1, item.Quantity, "quantity defaults to 1")
	assert.NotNil(t, item.Toppings, "toppings default to an empty list, not null")
	assert.Empty(t, item.Toppings)
	assert.InDelta(t, 12.99, order.TotalPrice, 0.001)
}

func TestPlaceOrderMultipleLines(t *testing.T) {
	_, f, svc := newTestOrderService(t)

	nickname := "Movie Night"
	order, err := svc.PlaceOrder(context.Background(), "U123", &nickname, []OrderItemInput{
		{PizzaID: f.margherita.ID, Size: "large"},                      // 15.99
		{PizzaID: f.hawaiian.ID, Size: "small", Quantity: intPtr(3)},   // 35.97
		{PizzaID: f.margherita.ID, Toppings: []string{f.mushrooms.ID}}, // 13.99
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 3)
	assert.InDelta(t, 65.95, order.TotalPrice, 0.001)
	require.NotNil(t, order.Nickname)
	assert.Equal(t, "Movie Night", *order.Nickname)
}

func TestPlaceOrderValidation(t *testing.T) {
	_, f, svc := newTestOrderService(t)
	ctx := context.Background()

	testCases := []struct {
		name    string
		userID  string
		items   []OrderItemInput
		message string
	}{
		{
			name:    "missing user",
			userID:  "",
			items:   []OrderItemInput{{PizzaID: f.margherita.ID}},
			message: "userId is required",
		},
		{
			name:    "empty items",
			userID:  "U123",
			items:   nil,
			message: "Order must contain at least one item",
		},
		{
			name:    "unknown pizza",
			userID:  "U123",
			items:   []OrderItemInput{{PizzaID: "ghost"}},
			message: "Pizza not found: ghost",
		},
		{
			name:    "invalid size",
			userID:  "U123",
			items:   []OrderItemInput{{PizzaID: f.margherita.ID, Size: "party"}},
			message: `Invalid size "party" for pizza Margherita`,
		},
		{
			name:    "zero quantity",
			userID:  "U123",
			items:   []OrderItemInput{{PizzaID: f.margherita.ID, Quantity: intPtr(0)}},
			message: "Quantity must be at least 1",
		},
		{
			name:    "unknown topping",
			userID:  "U123",
			items:   []OrderItemInput{{PizzaID: f.margherita.ID, Toppings: []string{"ghost"}}},
			message: "Topping not found: ghost",
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PlaceOrder(ctx, tt.userID, nil, tt.items)
			apiErr, ok := models.AsAPIError(err)
			require.True(t, ok, "expected an APIError, got %v", err)
			assert.Equal(t, models.ErrValidationFailed, apiErr.Code)
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestPlaceOrderUpsertsUser(t *testing.T) {
	db, f, svc := newTestOrderService(t)
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, "U900", nil, []OrderItemInput{{PizzaID: f.margherita.ID}})
	require.NoError(t, err)

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", "U900").Error)

	// A second order for the same user must not conflict.
	_, err = svc.PlaceOrder(ctx, "U900", nil, []OrderItemInput{{PizzaID: f.hawaiian.ID}})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", "U900").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetOrderLoadsItems(t *testing.T) {
	_, f, svc := newTestOrderService(t)
	ctx := context.Background()

	placed, err := svc.PlaceOrder(ctx, "U123", nil, []OrderItemInput{
		{PizzaID: f.hawaiian.ID, Toppings: []string{f.pepperoni.ID}},
	})
	require.NoError(t, err)

	got, err := svc.GetOrder(ctx, placed.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, []string{f.pepperoni.ID}, got.Items[0].Toppings)

	_, err = svc.GetOrder(ctx, "missing")
	apiErr, ok := models.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, models.ErrNotFound, apiErr.Code)
}

func TestCancelOrderStateRules(t *testing.T) {
	db, _, svc := newTestOrderService(t)
	ctx := context.Background()

	statuses := []struct {
		status  models.OrderStatus
		allowed bool
	}{
		{models.OrderStatusPending, true},
		{models.OrderStatusConfirmed, false},
		{models.OrderStatusPreparing, false},
		{models.OrderStatusReady, false},
		{models.OrderStatusDelivered, false},
		{models.OrderStatusCancelled, false},
	}

	for _, tt := range statuses {
		t.Run(string(tt.status), func(t *testing.T) {
			order := models.Order{UserID: "U123", Status: tt.status, TotalPrice: 12.99}
			require.NoError(t, db.Create(&order).Error)

			err := svc.CancelOrder(ctx, order.ID, "U123", false)
			if tt.allowed {
				require.NoError(t, err)
				var reloaded models.Order
				require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
				assert.Equal(t, models.OrderStatusCancelled, reloaded.Status)
				return
			}

			apiErr, ok := models.AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, models.ErrInvalidStateTransition, apiErr.Code)
			assert.Equal(t, string(tt.status), apiErr.Details["status"])
		})
	}
}

func TestCancelOrderOwnership(t *testing.T) {
	db, _, svc := newTestOrderService(t)
	ctx := context.Background()

	order := models.Order{UserID: "U123", Status: models.OrderStatusPending, TotalPrice: 12.99}
	require.NoError(t, db.Create(&order).Error)

	// A different user cannot cancel.
	err := svc.CancelOrder(ctx, order.ID, "U456", false)
	apiErr, ok := models.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, models.ErrForbidden, apiErr.Code)

	// The admin flag overrides ownership.
	require.NoError(t, svc.CancelOrder(ctx, order.ID, "U456", true))

	// Unknown orders report not found, never forbidden.
	err = svc.CancelOrder(ctx, "missing", "U123", false)
	apiErr, ok = models.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, models.ErrNotFound, apiErr.Code)
}

func TestCancelOrderConcurrencyGuard(t *testing.T) {
	db, _, svc := newTestOrderService(t)

	order := models.Order{UserID: "U123", Status: models.OrderStatusPending, TotalPrice: 12.99}
	require.NoError(t, db.Create(&order).Error)

	// Flip the row between the cancel's status read and its guarded update,
	// the way a concurrent confirm would. The flip must ride the update's own
	// connection: the pool is pinned to one conn and the update holds it.
	flipped := false
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("concurrent_transition", func(tx *gorm.DB) {
		if flipped {
			return
		}
		flipped = true
		require.NoError(t, tx.Session(&gorm.Session{NewDB: true}).Exec(
			"UPDATE orders SET status = ? WHERE id = ?",
			models.OrderStatusConfirmed, order.ID).Error)
	}))

	err := svc.CancelOrder(context.Background(), order.ID, "U123", false)
	apiErr, ok := models.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, models.ErrConflict, apiErr.Code)
	assert.Equal(t, order.ID, apiErr.Details["order_id"])

	// The concurrent transition won; the cancel wrote nothing.
	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusConfirmed, reloaded.Status)
}

func TestListOrdersFilters(t *testing.T) {
	db, _, svc := newTestOrderService(t)
	ctx := context.Background()
	now := time.Now()

	seed := []models.Order{
		{ID: "o-new", UserID: "U123", Status: models.OrderStatusPending, TotalPrice: 10, CreatedAt: now.Add(-10 * time.Minute)},
		{ID: "o-old", UserID: "U123", Status: models.OrderStatusDelivered, TotalPrice: 20, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "o-other", UserID: "U456", Status: models.OrderStatusPending, TotalPrice: 30, CreatedAt: now.Add(-30 * time.Minute)},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	t.Run("unfiltered, newest first", func(t *testing.T) {
		orders, err := svc.ListOrders(ctx, OrderFilter{})
		require.NoError(t, err)
		require.Len(t, orders, 3)
		assert.Equal(t, "o-new", orders[0].ID)
		assert.Equal(t, "o-other", orders[1].ID)
		assert.Equal(t, "o-old", orders[2].ID)
	})

	t.Run("by user", func(t *testing.T) {
		orders, err := svc.ListOrders(ctx, OrderFilter{UserID: "U123"})
		require.NoError(t, err)
		assert.Len(t, orders, 2)
	})

	t.Run("by status list", func(t *testing.T) {
		orders, err := svc.ListOrders(ctx, OrderFilter{Statuses: []string{"pending"}})
		require.NoError(t, err)
		assert.Len(t, orders, 2)

		orders, err = svc.ListOrders(ctx, OrderFilter{Statuses: []string{"pending", "delivered"}})
		require.NoError(t, err)
		assert.Len(t, orders, 3)
	})

	t.Run("by recency", func(t *testing.T) {
		orders, err := svc.ListOrders(ctx, OrderFilter{Since: time.Hour})
		require.NoError(t, err)
		assert.Len(t, orders, 2)
	})

	t.Run("combined", func(t *testing.T) {
		orders, err := svc.ListOrders(ctx, OrderFilter{UserID: "U123", Statuses: []string{"pending"}, Since: time.Hour})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "o-new", orders[0].ID)
	})

	t.Run("unknown status matches nothing", func(t *testing.T) {
		orders, err := svc.ListOrders(ctx, OrderFilter{Statuses: []string{"shipped"}})
		require.NoError(t, err)
		assert.Empty(t, orders)
	})
}

func TestParseStatusFilter(t *testing.T) {
	testCases := []struct {
		raw      string
		expected []string
	}{
		{"", nil},
		{"pending", []string{"pending"}},
		{"Pending, CONFIRMED", []string{"pending", "confirmed"}},
		{"pending,,delivered", []string{"pending", "delivered"}},
		{" , ", []string{}},
	}
	for _, tt := range testCases {
		assert.Equal(t, tt.expected, ParseStatusFilter(tt.raw), "raw=%q", tt.raw)
	}
}

func TestParseSinceFilter(t *testing.T) {
	testCases := []struct {
		raw      string
		expected time.Duration
	}{
		{"60m", time.Hour},
		{"2h", 2 * time.Hour},
		{"1d", 24 * time.Hour},
		{" 90M ", 90 * time.Minute},
		{"", 0},
		{"bogus", 0},
		{"-5m", 0},
		{"1w", 0},
		{"m", 0},
	}
	for _, tt := range testCases {
		assert.Equal(t, tt.expected, ParseSinceFilter(tt.raw), "raw=%q", tt.raw)
	}
}

func TestConcurrentOrderPlacement(t *testing.T) {
	_, f, svc := newTestOrderService(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, fmt.Sprintf("U%d", n), nil, []OrderItemInput{
				{PizzaID: f.margherita.ID, Size: "large"},
			})
			if err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent placement failed: %v", err)
	}

	orders, err := svc.ListOrders(ctx, OrderFilter{})
	require.NoError(t, err)
	require.Len(t, orders, workers)
	for _, order := range orders {
		assert.InDelta(t, 15.99, order.TotalPrice, 0.001)
	}
}
