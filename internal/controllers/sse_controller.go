package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/franciscosanchezn/pizza-mcp/internal/mcp"
	"github.com/franciscosanchezn/pizza-mcp/internal/middleware"
	"github.com/franciscosanchezn/pizza-mcp/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// sseHeartbeatInterval is how often an idle stream emits a comment line so
// intermediaries keep the connection open.
const sseHeartbeatInterval = 30 * time.Second

// sseSubscriber bridges one SSE connection into the notifier. Send never
// blocks the broadcaster indefinitely: events queue on a buffered channel
// drained by the connection's write loop, and a queue that stays full past
// the delivery deadline fails that delivery instead of stalling it.
type sseSubscriber struct {
	id string
	ch chan mcp.Notification
}

func (s *sseSubscriber) ID() string        { return s.id }
func (s *sseSubscriber) Transport() string { return "sse" }

func (s *sseSubscriber) Send(ctx context.Context, notification mcp.Notification) error {
	select {
	case s.ch <- notification:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleSSE godoc
// @Summary Notification stream
// @Description Server-sent event stream delivering JSON-RPC notification objects as 'message' events. Comment lines are heartbeats.
// @Tags mcp
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Failure 401 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /mcp [get]
func (ctrl *mcpController) HandleSSE(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		apiErr := models.NewAPIError(models.ErrInternalServer, "Streaming not supported")
		c.JSON(apiErr.HTTPStatus(), apiErr)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	sub := &sseSubscriber{
		id: uuid.New().String(),
		ch: make(chan mcp.Notification, 16),
	}
	ctrl.notifier.Subscribe(sub)
	defer ctrl.notifier.Unsubscribe(sub.id)

	caller := middleware.GetAuthContext(c)
	log.WithFields(logrus.Fields{
		"subscriber_id": sub.id,
		"client_id":     caller.ClientID,
	}).Info("SSE stream opened")

	// Opening comment makes proxies start forwarding immediately.
	fmt.Fprintf(c.Writer, ": connected %s\n\n", sub.id)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			log.WithField("subscriber_id", sub.id).Info("SSE stream closed")
			return
		case notification := <-sub.ch:
			data, err := json.Marshal(notification)
			if err != nil {
				log.WithError(err).Error("Failed to encode notification")
				continue
			}
			fmt.Fprintf(c.Writer, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
