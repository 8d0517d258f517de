package services

import (
	"context"
	"encoding/json"
	"log"
)

const cacheInvalidationChannel = "answerhub:cache:invalidate"

// invalidationMessage is the payload broadcast when an instance clears
// its knowledge cache. InstanceID lets the sender skip its own echo.
type invalidationMessage struct {
	InstanceID string `json:"instanceId"`
	Reason     string `json:"reason,omitempty"`
}

// CacheInvalidator fans cache clears out across instances via Redis
// pub/sub. Each process keeps its own in-memory cache slot; a clear on
// one instance broadcasts so the others drop theirs too.
type CacheInvalidator struct {
	redis      *RedisService
	cache      *KnowledgeCache
	instanceID string
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewCacheInvalidator creates the fan-out service. It does not subscribe
// until Start is called.
func NewCacheInvalidator(redisService *RedisService, cache *KnowledgeCache, instanceID string) *CacheInvalidator {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidator{
		redis:      redisService,
		cache:      cache,
		instanceID: instanceID,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins listening for invalidation broadcasts.
func (s *CacheInvalidator) Start() error {
	pubsub := s.redis.Subscribe(s.ctx, cacheInvalidationChannel)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(s.ctx); err != nil {
		return err
	}

	go func() {
		ch := pubsub.Channel()
		defer pubsub.Close()

		for {
			select {
			case <-s.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var message invalidationMessage
				if err := json.Unmarshal([]byte(msg.Payload), &message); err != nil {
					log.Printf("⚠️ [PUBSUB] Failed to unmarshal invalidation message: %v", err)
					continue
				}
				if message.InstanceID == s.instanceID {
					continue
				}

				log.Printf("📡 [PUBSUB] Cache invalidation from instance %s", message.InstanceID)
				s.cache.Clear()
			}
		}
	}()

	log.Printf("✅ [PUBSUB] Listening for cache invalidations (instance: %s)", s.instanceID)
	return nil
}

// Broadcast tells every other instance to drop its cache slot.
func (s *CacheInvalidator) Broadcast(ctx context.Context, reason string) error {
	message := invalidationMessage{
		InstanceID: s.instanceID,
		Reason:     reason,
	}

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return s.redis.Publish(ctx, cacheInvalidationChannel, data)
}

// Stop stops the listener.
func (s *CacheInvalidator) Stop() {
	s.cancel()
}
