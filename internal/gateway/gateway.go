// Package gateway owns the client sockets. It authenticates the upgrade with
// a one-time ticket, forwards client frames onto the bus and writes bus
// responses back to whichever sockets belong to the addressed client.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chatsino/internal/bus"
	"chatsino/internal/common"
	"chatsino/internal/models"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultSweepInterval = 30 * time.Second
	defaultWriteWait     = 10 * time.Second
	defaultReadLimit     = 64 * 1024
)

var errMalformedFrame = errors.New("malformed frame")

// TicketValidator trades a ticket for the identity it was issued to.
type TicketValidator interface {
	ValidateTicket(ctx context.Context, ticket, remoteAddress string) (models.ClientIdentity, error)
}

type Options struct {
	SweepInterval time.Duration
	WriteWait     time.Duration
	ReadLimit     int64
	// OnDisconnect runs once a client's last socket is gone.
	OnDisconnect func(client models.ClientIdentity)
}

type Gateway struct {
	tickets  TicketValidator
	bus      bus.Bus
	registry *Registry
	upgrader websocket.Upgrader
	opts     Options
	log      *log.Entry

	subs         []bus.Subscription
	readers      sync.WaitGroup
	done         chan struct{}
	closed       atomic.Bool
	shutdownOnce sync.Once
}

func New(tickets TicketValidator, b bus.Bus, opts Options, logger *log.Entry) *Gateway {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaultWriteWait
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	return &Gateway{
		tickets:  tickets,
		bus:      b,
		registry: NewRegistry(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		opts: opts,
		log:  logger.WithField("component", "gateway"),
		done: make(chan struct{}),
	}
}

func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Start subscribes to the response channels.
func (g *Gateway) Start() error {
	for _, channel := range []string{models.ChannelSuccessResponse, models.ChannelErrorResponse} {
		sub, err := g.bus.Subscribe(channel, g.onResponse)
		if err != nil {
			g.unsubscribe()
			return fmt.Errorf("gateway subscribe %s: %w", channel, err)
		}
		g.subs = append(g.subs, sub)
	}
	return nil
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.Upgrade(w, r, r.RemoteAddr)
}

// Upgrade authenticates the request and, on success, serves the socket until
// it closes. remoteAddress is what the ticket must have been issued to.
func (g *Gateway) Upgrade(w http.ResponseWriter, r *http.Request, remoteAddress string) {
	if g.closed.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		g.log.Debug("upgrade rejected: no ticket")
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	if strings.TrimSpace(remoteAddress) == "" {
		g.log.Debug("upgrade rejected: no remote address")
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	client, err := g.tickets.ValidateTicket(r.Context(), ticket, remoteAddress)
	if err != nil {
		g.log.WithError(err).WithField("remote", remoteAddress).Info("upgrade rejected")
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.WithError(err).Warn("failed to upgrade to websocket")
		return
	}

	c := newConnection(models.GenerateConnectionID(), client, conn)
	g.readers.Add(1)
	defer g.readers.Done()

	conn.SetReadLimit(g.opts.ReadLimit)
	conn.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})
	// Registered before the closed check so Shutdown either sees this
	// connection or we see Shutdown.
	g.registry.Add(c)
	if g.closed.Load() {
		c.closeWithReason(websocket.CloseGoingAway, "server shutting down", g.opts.WriteWait)
		g.registry.Remove(c.ID)
		return
	}
	g.log.WithFields(log.Fields{
		"connection_id": c.ID,
		"client_id":     client.ID,
		"username":      client.Username,
	}).Info("connection")

	g.readLoop(c)
}

func (g *Gateway) readLoop(c *Connection) {
	defer g.disconnect(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.WithError(err).WithField("connection_id", c.ID).Debug("read failed")
			}
			return
		}
		g.handleFrame(c.ID, data)
	}
}

func (g *Gateway) handleFrame(connectionID string, data []byte) {
	c, ok := g.registry.Get(connectionID)
	if !ok {
		g.log.WithField("connection_id", connectionID).Debug("dropping frame from unregistered connection")
		return
	}
	logger := g.log.WithFields(log.Fields{"connection_id": c.ID, "client_id": c.Client.ID})

	env, err := decodeFrame(data)
	if err != nil {
		logger.WithError(err).Warn("dropping frame")
		return
	}
	from := c.Client
	env.From = &from

	payload, err := json.Marshal(env)
	if err != nil {
		logger.WithError(err).Error("failed to encode envelope")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), g.opts.WriteWait)
	defer cancel()
	if err := g.bus.Publish(ctx, models.ChannelClientMessage, payload); err != nil {
		logger.WithError(err).WithField("kind", env.Kind).Error("failed to publish client message")
	}
}

// decodeFrame accepts {"kind": string, "args"?: object}. Anything a client
// puts in "from" is discarded.
func decodeFrame(data []byte) (models.Envelope, error) {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return models.Envelope{}, fmt.Errorf("%w: %v", errMalformedFrame, err)
	}
	if strings.TrimSpace(env.Kind) == "" {
		return models.Envelope{}, fmt.Errorf("%w: missing kind", errMalformedFrame)
	}
	args := bytes.TrimSpace(env.Args)
	switch {
	case len(args) == 0, bytes.Equal(args, []byte("null")):
		env.Args = nil
	case args[0] != '{':
		return models.Envelope{}, fmt.Errorf("%w: args must be an object", errMalformedFrame)
	}
	env.From = nil
	return env, nil
}

func (g *Gateway) onResponse(_ context.Context, payload []byte) {
	var resp models.Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		g.log.WithError(err).Warn("dropping undecodable response")
		return
	}
	g.SendMessageTo(resp.To, resp.Outbound())
}

// SendMessageTo writes msg to every socket bound to clientID. A client with
// no sockets is not an error.
func (g *Gateway) SendMessageTo(clientID int64, msg models.Outbound) {
	conns := g.registry.ForClient(clientID)
	if len(conns) == 0 {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		g.log.WithError(err).WithField("kind", msg.Kind).Error("failed to encode outbound message")
		return
	}
	for _, c := range conns {
		if err := c.write(payload, g.opts.WriteWait); err != nil {
			g.log.WithError(err).WithField("connection_id", c.ID).Warn("write failed, dropping connection")
			g.disconnect(c)
		}
	}
}

// Run sweeps for dead sockets until ctx is cancelled or the gateway shuts
// down.
func (g *Gateway) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-g.done:
			return nil
		case <-ticker.C:
			common.WithRecover(g.log, g.Sweep, "liveness sweep panicked")
		}
	}
}

// Sweep pings every socket that answered since the last sweep and drops the
// ones that did not.
func (g *Gateway) Sweep() {
	for _, c := range g.registry.All() {
		if !c.alive.CompareAndSwap(true, false) {
			g.log.WithFields(log.Fields{"connection_id": c.ID, "client_id": c.Client.ID}).Info("terminating unresponsive connection")
			g.disconnect(c)
			continue
		}
		if err := c.ping(g.opts.WriteWait); err != nil {
			g.log.WithError(err).WithField("connection_id", c.ID).Debug("ping failed")
		}
	}
}

func (g *Gateway) disconnect(c *Connection) {
	c.terminate()
	if !g.registry.Remove(c.ID) {
		return
	}
	g.log.WithFields(log.Fields{"connection_id": c.ID, "client_id": c.Client.ID}).Info("disconnection")
	if g.opts.OnDisconnect != nil && !g.registry.Connected(c.Client.ID) {
		common.WithRecover(g.log, func() { g.opts.OnDisconnect(c.Client) }, "disconnect hook panicked")
	}
}

func (g *Gateway) unsubscribe() {
	for _, sub := range g.subs {
		if err := sub.Unsubscribe(); err != nil {
			g.log.WithError(err).Debug("unsubscribe failed")
		}
	}
	g.subs = nil
}

// Shutdown stops the sweep, closes every socket and waits for their read
// loops. Safe to call more than once.
func (g *Gateway) Shutdown() {
	g.shutdownOnce.Do(func() {
		g.closed.Store(true)
		close(g.done)
		g.unsubscribe()
		for _, c := range g.registry.All() {
			c.closeWithReason(websocket.CloseGoingAway, "server shutting down", g.opts.WriteWait)
		}
		g.readers.Wait()
		g.log.Info("gateway stopped")
	})
}
