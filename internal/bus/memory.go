package bus

import (
	"context"
	"sync"

	"chatsino/internal/common"

	log "github.com/sirupsen/logrus"
)

const memoryBuffer = 256

// Memory is the in-process driver. Each subscription gets its own buffered
// queue and goroutine, so one slow consumer never blocks another.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
	log    *log.Entry
}

type memorySub struct {
	bus     *Memory
	channel string
	queue   chan []byte
	done    chan struct{}
	once    sync.Once
}

func NewMemory(logger *log.Entry) *Memory {
	return &Memory{
		subs: make(map[string]map[*memorySub]struct{}),
		log:  logger.WithField("bus", "memory"),
	}
}

// Publish waits for room in each subscriber's queue. The lock is only held
// while copying the subscriber set, so a blocked send never holds up
// Unsubscribe.
func (m *Memory) Publish(ctx context.Context, channel string, payload []byte) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	subs := make([]*memorySub, 0, len(m.subs[channel]))
	for sub := range m.subs[channel] {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.queue <- payload:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Memory) Subscribe(channel string, handler Handler) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	sub := &memorySub{
		bus:     m,
		channel: channel,
		queue:   make(chan []byte, memoryBuffer),
		done:    make(chan struct{}),
	}
	if m.subs[channel] == nil {
		m.subs[channel] = make(map[*memorySub]struct{})
	}
	m.subs[channel][sub] = struct{}{}

	go sub.run(handler, m.log.WithField("channel", channel))
	return sub, nil
}

func (s *memorySub) run(handler Handler, logger *log.Entry) {
	ctx := context.Background()
	for {
		select {
		case payload := <-s.queue:
			common.WithRecover(logger, func() { handler(ctx, payload) }, "bus handler panicked")
		case <-s.done:
			return
		}
	}
}

func (s *memorySub) Unsubscribe() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs[s.channel], s)
		s.bus.mu.Unlock()
		close(s.done)
	})
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	var subs []*memorySub
	for _, set := range m.subs {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	m.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	return nil
}
