package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/franciscosanchezn/pizza-mcp/internal/mcp"
	"github.com/franciscosanchezn/pizza-mcp/internal/middleware"
	"github.com/franciscosanchezn/pizza-mcp/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 32 * 1024
)

// WSController upgrades notification clients to WebSocket and feeds them
// the same notification objects as the SSE stream.
type WSController interface {
	HandleWS(c *gin.Context)
}

type wsController struct {
	notifier services.Notifier
	upgrader websocket.Upgrader
}

// NewWSController creates a new instance of WSController
func NewWSController(notifier services.Notifier) *wsController {
	return &wsController{
		notifier: notifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Tool clients connect from anywhere; tighten when fronted by a
			// gateway.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// wsSubscriber is one WebSocket notification client. gorilla/websocket
// permits a single concurrent writer, so notification writes and protocol
// pings serialize on the mutex.
type wsSubscriber struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSubscriber) ID() string        { return s.id }
func (s *wsSubscriber) Transport() string { return "websocket" }

func (s *wsSubscriber) Send(ctx context.Context, notification mcp.Notification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(wsWriteWait)
	if t, ok := ctx.Deadline(); ok && t.Before(deadline) {
		deadline = t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// ping writes a protocol-level ping, reporting a dead peer.
func (s *wsSubscriber) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// HandleWS godoc
// @Summary WebSocket notification stream
// @Description Upgrades the connection to a WebSocket and pushes JSON-RPC notification objects as text frames.
// @Tags mcp
// @Success 101 {string} string "switching protocols"
// @Failure 401 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /ws [get]
func (ctrl *wsController) HandleWS(c *gin.Context) {
	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := &wsSubscriber{id: uuid.New().String(), conn: conn}
	ctrl.notifier.Subscribe(sub)
	defer ctrl.notifier.Unsubscribe(sub.id)

	caller := middleware.GetAuthContext(c)
	log.WithFields(logrus.Fields{
		"subscriber_id": sub.id,
		"client_id":     caller.ClientID,
	}).Info("WebSocket subscriber connected")

	conn.SetReadLimit(wsMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	// Ping loop keeps idle connections alive until the read loop exits.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := sub.ping(); err != nil {
					return
				}
			}
		}
	}()

	// Read loop: inbound frames carry nothing this server acts on, but
	// reading is what detects the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithFields(logrus.Fields{
					"subscriber_id": sub.id,
					"error":         err.Error(),
				}).Warn("WebSocket closed unexpectedly")
			}
			break
		}
	}
	log.WithField("subscriber_id", sub.id).Info("WebSocket subscriber disconnected")
}
