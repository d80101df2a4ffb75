package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"praxis/internal/models"
)

// EventSubscriber is one websocket client on the /ws/events feed
type EventSubscriber struct {
	ConnID    string
	Conn      *websocket.Conn
	WriteChan chan []byte
	StopChan  chan struct{}
}

// ConnectionManager manages all active websocket event subscribers
type ConnectionManager struct {
	connections map[string]*EventSubscriber
	mutex       sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*EventSubscriber),
	}
}

// Add adds a new subscriber
func (cm *ConnectionManager) Add(sub *EventSubscriber) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.connections[sub.ConnID] = sub
	log.Printf("✅ Event subscriber added: %s (Total: %d)", sub.ConnID, len(cm.connections))
}

// Remove removes a subscriber
func (cm *ConnectionManager) Remove(connID string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	if sub, exists := cm.connections[connID]; exists {
		close(sub.WriteChan)
		close(sub.StopChan)
		delete(cm.connections, connID)
		log.Printf("❌ Event subscriber removed: %s (Total: %d)", connID, len(cm.connections))
	}
}

// Count returns the number of active subscribers
func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.connections)
}

// Broadcast sends a payload to every subscriber. Slow clients are skipped
// rather than blocking the broadcast.
func (cm *ConnectionManager) Broadcast(payload []byte) {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	for _, sub := range cm.connections {
		select {
		case sub.WriteChan <- payload:
		default:
			log.Printf("⚠️  Event subscriber %s is slow, dropping message", sub.ConnID)
		}
	}
}

// Notify implements Notifier by broadcasting the notification to all
// websocket subscribers.
func (cm *ConnectionManager) Notify(ctx context.Context, n models.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		log.Printf("⚠️  Failed to marshal notification: %v", err)
		return
	}
	cm.Broadcast(data)
}
