package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"chatsino/internal/models"

	"github.com/gorilla/websocket"
)

// Connection is one authenticated socket. Writes are serialised by writeMu;
// gorilla allows a single concurrent writer.
type Connection struct {
	ID     string
	Client models.ClientIdentity

	conn      *websocket.Conn
	alive     atomic.Bool
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newConnection(id string, client models.ClientIdentity, conn *websocket.Conn) *Connection {
	c := &Connection{ID: id, Client: client, conn: conn}
	c.alive.Store(true)
	return c
}

func (c *Connection) write(payload []byte, wait time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Connection) ping(wait time.Duration) error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wait))
}

// terminate drops the socket without a close handshake.
func (c *Connection) terminate() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// closeWithReason sends a close frame first, then drops the socket.
func (c *Connection) closeWithReason(code int, reason string, wait time.Duration) {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wait))
		_ = c.conn.Close()
	})
}

// Registry indexes live connections by id and by client.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*Connection
	byClient map[int64]map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[string]*Connection),
		byClient: make(map[int64]map[string]*Connection),
	}
}

func (r *Registry) Add(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = c
	conns, ok := r.byClient[c.Client.ID]
	if !ok {
		conns = make(map[string]*Connection)
		r.byClient[c.Client.ID] = conns
	}
	conns[c.ID] = c
}

// Remove reports whether the connection was still registered.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	if conns := r.byClient[c.Client.ID]; conns != nil {
		delete(conns, id)
		if len(conns) == 0 {
			delete(r.byClient, c.Client.ID)
		}
	}
	return true
}

func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

func (r *Registry) ForClient(clientID int64) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.byClient[clientID]
	out := make([]*Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Connected reports whether the client has at least one open socket.
func (r *Registry) Connected(clientID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byClient[clientID]) > 0
}
