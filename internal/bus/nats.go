package bus

import (
	"context"
	"fmt"
	"time"

	"chatsino/internal/common"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// NATS carries channels as core NATS subjects. It owns its connection.
type NATS struct {
	conn *nats.Conn
	log  *log.Entry
}

func ConnectNATS(url string, logger *log.Entry) (*NATS, error) {
	logger = logger.WithField("bus", "nats")
	conn, err := nats.Connect(url,
		nats.Name("chatsino"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.WithField("subject", subject).Errorf("nats: error: %v", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Warnf("nats: reconnected to %s", c.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warnf("nats: disconnected: %v", err)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats: connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return NewNATS(conn, logger), nil
}

func NewNATS(conn *nats.Conn, logger *log.Entry) *NATS {
	return &NATS{conn: conn, log: logger}
}

func (n *NATS) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.conn.IsClosed() {
		return ErrClosed
	}
	if err := n.conn.Publish(channel, payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", channel, err)
	}
	return nil
}

func (n *NATS) Subscribe(channel string, handler Handler) (Subscription, error) {
	if n.conn.IsClosed() {
		return nil, ErrClosed
	}
	logger := n.log.WithField("channel", channel)
	sub, err := n.conn.Subscribe(channel, func(m *nats.Msg) {
		common.WithRecover(logger, func() { handler(context.Background(), m.Data) }, "bus handler panicked")
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", channel, err)
	}
	// Make sure the server knows about the subscription before returning.
	if err := n.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("nats subscribe %s: %w", channel, err)
	}
	return sub, nil
}

func (n *NATS) Close() error {
	if n.conn.IsClosed() {
		return nil
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}
