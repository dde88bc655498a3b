// Package bus is the only coupling between the socket gateway and the
// subcontrollers. Every driver delivers raw payloads on named channels, so
// either side can run in-process or in another process.
package bus

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("bus closed")

// Handler receives one payload. Drivers call it from their own goroutine and
// recover any panic it raises.
type Handler func(ctx context.Context, payload []byte)

type Subscription interface {
	Unsubscribe() error
}

type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(channel string, handler Handler) (Subscription, error)
	Close() error
}
