package services

import (
	"context"
	"sync"
	"time"

	"github.com/franciscosanchezn/pizza-mcp/internal/mcp"
	"github.com/franciscosanchezn/pizza-mcp/internal/metrics"
	"github.com/franciscosanchezn/pizza-mcp/internal/models"
	"github.com/sirupsen/logrus"
)

// Subscriber is one connected notification client: an SSE stream or a
// WebSocket connection. Send must respect the context deadline.
type Subscriber interface {
	ID() string
	Transport() string
	Send(ctx context.Context, notification mcp.Notification) error
}

// DeliveryReport aggregates per-subscriber outcomes of a broadcast. A
// failing subscriber never blocks or fails delivery to the others; its
// error lands here instead.
type DeliveryReport struct {
	Subscribers int               `json:"subscribers"`
	Delivered   int               `json:"delivered"`
	Failed      int               `json:"failed"`
	Failures    map[string]string `json:"failures,omitempty"`
}

// NotifyResult is the outcome of an explicit change notification.
type NotifyResult struct {
	NotificationsSent []string       `json:"notifications_sent"`
	NotificationType  string         `json:"notification_type"`
	Delivery          DeliveryReport `json:"delivery"`
}

// RefreshResult is the outcome of a cache refresh: the rebuilt catalog
// counts plus the broadcast report.
type RefreshResult struct {
	Summary          CatalogSummary `json:"summary"`
	NotificationSent string         `json:"notification_sent"`
	Delivery         DeliveryReport `json:"delivery"`
}

// Notifier tracks notification subscribers and broadcasts catalog-change
// events to all of them, at least once per active subscription.
type Notifier interface {
	Subscribe(sub Subscriber)
	Unsubscribe(id string)
	SubscriberCount() int

	// NotifyCatalogChange broadcasts the notification methods for the given
	// kind: "tools", "resources", "prompts" or "all".
	NotifyCatalogChange(ctx context.Context, kind string) (*NotifyResult, error)

	// RefreshAndNotify invalidates the catalog cache, rebuilds it, and
	// broadcasts a resource change to every subscriber.
	RefreshAndNotify(ctx context.Context) (*RefreshResult, error)
}

// notifier is the in-process implementation of Notifier
type notifier struct {
	catalog       CatalogCache
	notifyTimeout time.Duration

	mu          sync.RWMutex
	subscribers map[string]Subscriber
}

// NewNotifier creates a new instance of Notifier over the catalog cache
func NewNotifier(catalog CatalogCache, notifyTimeout time.Duration) Notifier {
	return &notifier{
		catalog:       catalog,
		notifyTimeout: notifyTimeout,
		subscribers:   make(map[string]Subscriber),
	}
}

func (n *notifier) Subscribe(sub Subscriber) {
	n.mu.Lock()
	n.subscribers[sub.ID()] = sub
	n.mu.Unlock()
	metrics.Subscribers.WithLabelValues(sub.Transport()).Inc()
	log.WithFields(logrus.Fields{
		"subscriber_id": sub.ID(),
		"transport":     sub.Transport(),
	}).Debug("Subscriber registered")
}

func (n *notifier) Unsubscribe(id string) {
	n.mu.Lock()
	sub, ok := n.subscribers[id]
	if ok {
		delete(n.subscribers, id)
	}
	n.mu.Unlock()
	if ok {
		metrics.Subscribers.WithLabelValues(sub.Transport()).Dec()
		log.WithField("subscriber_id", id).Debug("Subscriber removed")
	}
}

func (n *notifier) SubscriberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subscribers)
}

// notificationMethods maps a change kind to the notification methods it
// triggers.
func notificationMethods(kind string) ([]string, error) {
	switch kind {
	case "tools":
		return []string{mcp.NotifyToolsListChanged}, nil
	case "resources":
		return []string{mcp.NotifyResourcesListChanged}, nil
	case "prompts":
		return []string{mcp.NotifyPromptsListChanged}, nil
	case "all", "":
		return []string{
			mcp.NotifyToolsListChanged,
			mcp.NotifyResourcesListChanged,
			mcp.NotifyPromptsListChanged,
		}, nil
	default:
		return nil, models.NewValidationError("Unknown notification type: "+kind,
			map[string]interface{}{"allowed": []string{"tools", "resources", "prompts", "all"}})
	}
}

func (n *notifier) NotifyCatalogChange(ctx context.Context, kind string) (*NotifyResult, error) {
	methods, err := notificationMethods(kind)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		kind = "all"
	}

	report := n.broadcast(ctx, methods)
	return &NotifyResult{
		NotificationsSent: methods,
		NotificationType:  kind,
		Delivery:          report,
	}, nil
}

func (n *notifier) RefreshAndNotify(ctx context.Context) (*RefreshResult, error) {
	n.catalog.Invalidate()
	summary, err := n.catalog.Warm(ctx)
	if err != nil {
		return nil, err
	}

	report := n.broadcast(ctx, []string{mcp.NotifyResourcesListChanged})
	log.WithFields(logrus.Fields{
		"delivered": report.Delivered,
		"failed":    report.Failed,
	}).Info("Catalog cache refreshed and subscribers notified")

	return &RefreshResult{
		Summary:          *summary,
		NotificationSent: mcp.NotifyResourcesListChanged,
		Delivery:         report,
	}, nil
}

// broadcast fans the given notification methods out to every subscriber
// concurrently. Each delivery gets its own bounded deadline; failures are
// collected into the report, never propagated.
func (n *notifier) broadcast(ctx context.Context, methods []string) DeliveryReport {
	n.mu.RLock()
	subs := make([]Subscriber, 0, len(n.subscribers))
	for _, sub := range n.subscribers {
		subs = append(subs, sub)
	}
	n.mu.RUnlock()

	report := DeliveryReport{Subscribers: len(subs)}
	if len(subs) == 0 {
		return report
	}

	var wg sync.WaitGroup
	var reportMu sync.Mutex
	for _, method := range methods {
		notification := mcp.NewNotification(method)
		for _, sub := range subs {
			wg.Add(1)
			go func(sub Subscriber) {
				defer wg.Done()
				sendCtx := ctx
				cancel := context.CancelFunc(func() {})
				if n.notifyTimeout > 0 {
					sendCtx, cancel = context.WithTimeout(ctx, n.notifyTimeout)
				}
				defer cancel()

				err := sub.Send(sendCtx, notification)

				reportMu.Lock()
				defer reportMu.Unlock()
				if err != nil {
					report.Failed++
					if report.Failures == nil {
						report.Failures = make(map[string]string)
					}
					report.Failures[sub.ID()] = err.Error()
					metrics.NotificationsSent.WithLabelValues(sub.Transport(), "failed").Inc()
					log.WithFields(logrus.Fields{
						"subscriber_id": sub.ID(),
						"transport":     sub.Transport(),
						"method":        notification.Method,
						"error":         err.Error(),
					}).Warn("Notification delivery failed")
					return
				}
				report.Delivered++
				metrics.NotificationsSent.WithLabelValues(sub.Transport(), "ok").Inc()
			}(sub)
		}
	}
	wg.Wait()
	return report
}
