package handlers

import (
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"praxis/internal/services"
)

// EventsWebSocketHandler streams standardization notifications to clients
type EventsWebSocketHandler struct {
	connectionManager *services.ConnectionManager
}

// NewEventsWebSocketHandler creates a new events websocket handler
func NewEventsWebSocketHandler(connectionManager *services.ConnectionManager) *EventsWebSocketHandler {
	return &EventsWebSocketHandler{
		connectionManager: connectionManager,
	}
}

// Handle is the WebSocket handler for /ws/events
func (h *EventsWebSocketHandler) Handle(c *websocket.Conn) {
	connID := uuid.New().String()

	sub := &services.EventSubscriber{
		ConnID:    connID,
		Conn:      c,
		WriteChan: make(chan []byte, 64),
		StopChan:  make(chan struct{}),
	}
	h.connectionManager.Add(sub)
	defer h.connectionManager.Remove(connID)

	// Write loop, sole writer on the connection
	go func() {
		pingTicker := time.NewTicker(30 * time.Second)
		defer pingTicker.Stop()

		for {
			select {
			case payload, ok := <-sub.WriteChan:
				if !ok {
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
					log.Printf("⚠️  [EVENTS-WS] Write failed for %s: %v", connID, err)
					return
				}
			case <-pingTicker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-sub.StopChan:
				return
			}
		}
	}()

	// Read loop keeps the connection alive and detects client close.
	// The feed is one-way; inbound frames are discarded.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
