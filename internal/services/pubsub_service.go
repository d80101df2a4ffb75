package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"praxis/internal/models"
)

// standardEventsChannel carries standardization notifications between instances
const standardEventsChannel = "praxis:standard:events"

// PubSubService relays standardization notifications across instances via
// Redis pub/sub, so websocket subscribers on any instance see every event.
type PubSubService struct {
	redis      *RedisService
	pubsub     *redis.PubSub
	handlers   []func(models.Notification)
	mu         sync.RWMutex
	instanceID string
	ctx        context.Context
	cancel     context.CancelFunc
}

// pubsubEnvelope wraps a notification with its source instance
type pubsubEnvelope struct {
	InstanceID   string              `json:"instanceId"`
	Notification models.Notification `json:"notification"`
}

// NewPubSubService creates a new pub/sub service
func NewPubSubService(redisService *RedisService, instanceID string) *PubSubService {
	ctx, cancel := context.WithCancel(context.Background())
	return &PubSubService{
		redis:      redisService,
		instanceID: instanceID,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Subscribe registers a handler for notifications arriving from other instances
func (s *PubSubService) Subscribe(handler func(models.Notification)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// Start begins listening for pub/sub messages
func (s *PubSubService) Start() error {
	s.pubsub = s.redis.Client().Subscribe(s.ctx, standardEventsChannel)

	// Wait for subscription confirmation
	if _, err := s.pubsub.Receive(s.ctx); err != nil {
		return err
	}

	go s.processMessages()

	log.Printf("✅ [PUBSUB] Listening for standard events (instance: %s)", s.instanceID)
	return nil
}

func (s *PubSubService) processMessages() {
	ch := s.pubsub.Channel()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handleMessage(msg)
		}
	}
}

func (s *PubSubService) handleMessage(msg *redis.Message) {
	var env pubsubEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		log.Printf("⚠️ [PUBSUB] Failed to unmarshal message: %v", err)
		return
	}

	// Skip messages from this instance (avoid loops)
	if env.InstanceID == s.instanceID {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, handler := range s.handlers {
		go handler(env.Notification)
	}
}

// Notify implements Notifier by publishing the notification to all instances
func (s *PubSubService) Notify(ctx context.Context, n models.Notification) {
	env := pubsubEnvelope{InstanceID: s.instanceID, Notification: n}
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("⚠️ [PUBSUB] Failed to marshal notification: %v", err)
		return
	}
	if err := s.redis.Client().Publish(ctx, standardEventsChannel, data).Err(); err != nil {
		log.Printf("⚠️ [PUBSUB] Failed to publish notification: %v", err)
	}
}

// Stop stops the pub/sub service
func (s *PubSubService) Stop() error {
	s.cancel()
	if s.pubsub != nil {
		return s.pubsub.Close()
	}
	return nil
}
