package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/franciscosanchezn/pizza-mcp/internal/mcp"
	"github.com/franciscosanchezn/pizza-mcp/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubscriber records delivered notifications and can be told to fail
// or to block until the delivery context expires.
type fakeSubscriber struct {
	id        string
	transport string
	fail      error
	block     bool

	mu       sync.Mutex
	received []mcp.Notification
}

func (f *fakeSubscriber) ID() string        { return f.id }
func (f *fakeSubscriber) Transport() string { return f.transport }

func (f *fakeSubscriber) Send(ctx context.Context, notification mcp.Notification) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.fail != nil {
		return f.fail
	}
	f.mu.Lock()
	f.received = append(f.received, notification)
	f.mu.Unlock()
	return nil
}

func (f *fakeSubscriber) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.received))
	for _, n := range f.received {
		out = append(out, n.Method)
	}
	sort.Strings(out)
	return out
}

func newTestNotifier(t *testing.T, timeout time.Duration) Notifier {
	db := setupTestDB(t)
	seedCatalog(t, db)
	cache := NewCatalogCache(NewCatalogStore(db))
	return NewNotifier(cache, timeout)
}

func TestNotificationMethodsMapping(t *testing.T) {
	testCases := []struct {
		kind     string
		expected []string
	}{
		{"tools", []string{mcp.NotifyToolsListChanged}},
		{"resources", []string{mcp.NotifyResourcesListChanged}},
		{"prompts", []string{mcp.NotifyPromptsListChanged}},
		{"all", []string{mcp.NotifyToolsListChanged, mcp.NotifyResourcesListChanged, mcp.NotifyPromptsListChanged}},
		{"", []string{mcp.NotifyToolsListChanged, mcp.NotifyResourcesListChanged, mcp.NotifyPromptsListChanged}},
	}
	for _, tt := range testCases {
		methods, err := notificationMethods(tt.kind)
		require.NoError(t, err, "kind=%q", tt.kind)
		assert.Equal(t, tt.expected, methods, "kind=%q", tt.kind)
	}

	_, err := notificationMethods("webhooks")
	apiErr, ok := models.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, models.ErrValidationFailed, apiErr.Code)
	assert.Equal(t, "Unknown notification type: webhooks", apiErr.Message)
}

func TestNotifyCatalogChangeDelivery(t *testing.T) {
	n := newTestNotifier(t, time.Second)
	subA := &fakeSubscriber{id: "sub-a", transport: "sse"}
	subB := &fakeSubscriber{id: "sub-b", transport: "websocket"}
	n.Subscribe(subA)
	n.Subscribe(subB)

	result, err := n.NotifyCatalogChange(context.Background(), "tools")
	require.NoError(t, err)
	assert.Equal(t, "tools", result.NotificationType)
	assert.Equal(t, []string{mcp.NotifyToolsListChanged}, result.NotificationsSent)
	assert.Equal(t, 2, result.Delivery.Subscribers)
	assert.Equal(t, 2, result.Delivery.Delivered)
	assert.Zero(t, result.Delivery.Failed)

	assert.Equal(t, []string{mcp.NotifyToolsListChanged}, subA.methods())
	assert.Equal(t, []string{mcp.NotifyToolsListChanged}, subB.methods())
}

func TestNotifyCatalogChangeAllKinds(t *testing.T) {
	n := newTestNotifier(t, time.Second)
	subA := &fakeSubscriber{id: "sub-a", transport: "sse"}
	subB := &fakeSubscriber{id: "sub-b", transport: "websocket"}
	n.Subscribe(subA)
	n.Subscribe(subB)

	result, err := n.NotifyCatalogChange(context.Background(), "all")
	require.NoError(t, err)
	// Three methods to two subscribers is six deliveries.
	assert.Equal(t, 6, result.Delivery.Delivered)

	expected := []string{
		mcp.NotifyPromptsListChanged,
		mcp.NotifyResourcesListChanged,
		mcp.NotifyToolsListChanged,
	}
	assert.Equal(t, expected, subA.methods())
	assert.Equal(t, expected, subB.methods())
}

func TestNotifyCatalogChangeEmptyKindMeansAll(t *testing.T) {
	n := newTestNotifier(t, time.Second)

	result, err := n.NotifyCatalogChange(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "all", result.NotificationType)
	assert.Len(t, result.NotificationsSent, 3)
	assert.Zero(t, result.Delivery.Subscribers)
	assert.Zero(t, result.Delivery.Delivered)
}

func TestBroadcastIsolatesFailingSubscribers(t *testing.T) {
	n := newTestNotifier(t, time.Second)
	good := &fakeSubscriber{id: "good", transport: "sse"}
	bad := &fakeSubscriber{id: "bad", transport: "websocket", fail: errors.New("connection reset")}
	n.Subscribe(good)
	n.Subscribe(bad)

	result, err := n.NotifyCatalogChange(context.Background(), "resources")
	require.NoError(t, err, "a failing subscriber must not fail the broadcast")
	assert.Equal(t, 1, result.Delivery.Delivered)
	assert.Equal(t, 1, result.Delivery.Failed)
	assert.Equal(t, "connection reset", result.Delivery.Failures["bad"])

	assert.Equal(t, []string{mcp.NotifyResourcesListChanged}, good.methods())
}

func TestBroadcastTimesOutBlockedSubscribers(t *testing.T) {
	n := newTestNotifier(t, 50*time.Millisecond)
	stuck := &fakeSubscriber{id: "stuck", transport: "sse", block: true}
	n.Subscribe(stuck)

	start := time.Now()
	result, err := n.NotifyCatalogChange(context.Background(), "tools")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, result.Delivery.Failed)
	assert.Contains(t, result.Delivery.Failures["stuck"], "context deadline exceeded")
}

func TestSubscribeUnsubscribe(t *testing.T) {
	n := newTestNotifier(t, time.Second)
	assert.Zero(t, n.SubscriberCount())

	n.Subscribe(&fakeSubscriber{id: "one", transport: "sse"})
	n.Subscribe(&fakeSubscriber{id: "two", transport: "websocket"})
	assert.Equal(t, 2, n.SubscriberCount())

	// Re-subscribing the same ID replaces, never duplicates.
	n.Subscribe(&fakeSubscriber{id: "one", transport: "sse"})
	assert.Equal(t, 2, n.SubscriberCount())

	n.Unsubscribe("one")
	assert.Equal(t, 1, n.SubscriberCount())

	// Unknown IDs are a no-op.
	n.Unsubscribe("ghost")
	assert.Equal(t, 1, n.SubscriberCount())
}

func TestRefreshAndNotify(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	cache := NewCatalogCache(NewCatalogStore(db))
	n := NewNotifier(cache, time.Second)
	ctx := context.Background()

	// Populate the snapshot, then slip a pizza in behind the cache's back.
	_, err := cache.Warm(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Pizza{
		Name:        "Diavola",
		Description: "Spicy salami",
		Sizes:       map[string]float64{"small": 10.99, "medium": 13.99, "large": 16.99},
		IsAvailable: true,
	}).Error)

	pizzas, err := cache.ListPizzas(ctx)
	require.NoError(t, err)
	require.Len(t, pizzas, 2, "direct writes must stay invisible until a refresh")

	sub := &fakeSubscriber{id: "sub-1", transport: "sse"}
	n.Subscribe(sub)

	result, err := n.RefreshAndNotify(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Summary.PizzasCount)
	assert.Equal(t, mcp.NotifyResourcesListChanged, result.NotificationSent)
	assert.Equal(t, 1, result.Delivery.Delivered)
	assert.Equal(t, []string{mcp.NotifyResourcesListChanged}, sub.methods())

	pizzas, err = cache.ListPizzas(ctx)
	require.NoError(t, err)
	assert.Len(t, pizzas, 3)
}
