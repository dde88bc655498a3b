package bus

import (
	"context"
	"fmt"
	"sync"

	"chatsino/internal/common"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Redis carries channels over Redis pub/sub. The client is shared with the
// ticket cache and is not closed by the bus.
type Redis struct {
	client *redis.Client
	log    *log.Entry

	mu     sync.Mutex
	subs   map[*redisSub]struct{}
	closed bool
}

type redisSub struct {
	bus    *Redis
	pubsub *redis.PubSub
	cancel context.CancelFunc
	once   sync.Once
}

func NewRedis(client *redis.Client, logger *log.Entry) *Redis {
	return &Redis{
		client: client,
		log:    logger.WithField("bus", "redis"),
		subs:   make(map[*redisSub]struct{}),
	}
}

func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

func (r *Redis) Subscribe(channel string, handler Handler) (Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channel)
	// Wait for the subscription to be confirmed so nothing published right
	// after Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	sub := &redisSub{bus: r, pubsub: pubsub, cancel: cancel}
	r.subs[sub] = struct{}{}

	logger := r.log.WithField("channel", channel)
	go func() {
		for msg := range pubsub.Channel() {
			payload := []byte(msg.Payload)
			common.WithRecover(logger, func() { handler(ctx, payload) }, "bus handler panicked")
		}
	}()
	return sub, nil
}

func (s *redisSub) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		s.cancel()
		err = s.pubsub.Close()
	})
	return err
}

func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := make([]*redisSub, 0, len(r.subs))
	for sub := range r.subs {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	var firstErr error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
