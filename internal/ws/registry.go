package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"mingle-chat/internal/models"
)

var (
	ErrDuplicateConn = errors.New("connection already registered")
	ErrConnNotFound  = errors.New("connection not registered")
)

type regEntry struct {
	identity models.Identity
	roomKey  string
	info     ConnInfo
}

// Registry tracks live connections and maps each to its authenticated
// identity and joined room. Connections are owned by the registry for their
// lifetime.
type Registry struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]regEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[*websocket.Conn]regEntry)}
}

// Register records the connection. Registering the same handle twice fails
// with ErrDuplicateConn; the same identity may hold several connections, each
// tracked independently.
func (r *Registry) Register(conn *websocket.Conn, identity models.Identity, roomKey string, info ConnInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[conn]; ok {
		return ErrDuplicateConn
	}
	r.conns[conn] = regEntry{identity: identity, roomKey: roomKey, info: info}
	return nil
}

// Unregister removes the connection. Removing an absent connection is a
// no-op: disconnect may run more than once.
func (r *Registry) Unregister(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, conn)
}

// Lookup returns the identity and room key for a connection.
func (r *Registry) Lookup(conn *websocket.Conn) (models.Identity, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.conns[conn]
	if !ok {
		return models.Identity{}, "", ErrConnNotFound
	}
	return entry.identity, entry.roomKey, nil
}

func (r *Registry) connInfo(conn *websocket.Conn) (ConnInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.conns[conn]
	return entry.info, ok
}
