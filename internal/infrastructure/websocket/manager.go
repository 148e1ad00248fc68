package websocket

import (
	"context"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"shopchat/internal/domain/entity"
)

// Client represents one authenticated WebSocket connection for a
// role-qualified identity.
type Client struct {
	Role string // entity.RoleCustomer or entity.RoleAgent
	ID   string
	Shop string // merchant shop this identity belongs to
	Conn *websocket.Conn
	Send chan []byte
}

// Key returns the registry key for this client's identity.
func (c *Client) Key() string {
	return entity.IdentityKey(c.Role, c.ID)
}

// Manager is the connection registry: it maps identities to live connection
// handles, in two independent namespaces (customer, agent). Nothing here is
// persisted; a restart starts from empty registries and recovers outstanding
// work from the offline backlog.
type Manager struct {
	clients    map[string]map[string]*Client // role -> id -> client
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
	handler    EventHandler
}

func NewManager() *Manager {
	return &Manager{
		clients: map[string]map[string]*Client{
			entity.RoleCustomer: make(map[string]*Client),
			entity.RoleAgent:    make(map[string]*Client),
		},
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// SetHandler wires the inbound event handler. Must be called before Start.
func (m *Manager) SetHandler(h EventHandler) {
	m.handler = h
}

// Start runs the manager's main loop in a goroutine until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.setOnline(client)
				log.Printf("Client registered: %s", client.Key())
				if m.handler != nil {
					// One-shot check for pending offline work for this identity
					m.handler.HandleOnline(ctx, client)
				}

			case client := <-m.Unregister:
				m.remove(client)
				log.Printf("Client unregistered: %s", client.Key())
				if m.handler != nil {
					m.handler.HandleOffline(ctx, client)
				}

			case <-ctx.Done():
				m.shutdown()
				return
			}
		}
	}()
}

func (m *Manager) setOnline(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// A reconnect replaces the previous handle for the same identity.
	if old, ok := m.clients[client.Role][client.ID]; ok && old != client {
		close(old.Send)
	}
	m.clients[client.Role][client.ID] = client
}

func (m *Manager) remove(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if current, ok := m.clients[client.Role][client.ID]; ok && current == client {
		delete(m.clients[client.Role], client.ID)
		close(client.Send)
	}
}

func (m *Manager) shutdown() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for role := range m.clients {
		for id, client := range m.clients[role] {
			close(client.Send)
			delete(m.clients[role], id)
		}
	}
}

// IsOnline reports whether the identity has a live connection. Absence is a
// normal result; callers fall back to the offline path.
func (m *Manager) IsOnline(role, id string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	_, ok := m.clients[role][id]
	return ok
}

// SendToIdentity forwards payload to the identity's live connection. Returns
// false when the identity is not connected or its send buffer is full; the
// caller treats both as "not resolved".
func (m *Manager) SendToIdentity(role, id string, payload []byte) bool {
	m.mutex.RLock()
	client, ok := m.clients[role][id]
	if !ok {
		m.mutex.RUnlock()
		return false
	}

	// The send itself stays under the read lock: Send is only ever closed
	// under the write lock, so the channel cannot close mid-send here.
	select {
	case client.Send <- payload:
		m.mutex.RUnlock()
		return true
	default:
		m.mutex.RUnlock()
		log.Printf("Client %s send channel full, dropping connection", client.Key())
		m.remove(client)
		return false
	}
}

// ReadPump reads inbound frames and dispatches them until the connection
// drops.
func (c *Client) ReadPump(ctx context.Context, m *Manager) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, payload, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("read error from %s: %v", c.Key(), err)
			}
			break
		}

		m.HandleClientMessage(ctx, c, payload)
	}
}

// WritePump drains the client's send channel onto the connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		payload, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("write error to %s: %v", c.Key(), err)
			return
		}
	}
}
