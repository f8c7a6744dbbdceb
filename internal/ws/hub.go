package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"mingle-chat/internal/observability"
)

// Hub maintains the member set of every active room. Rooms are created
// lazily on first join and pruned once empty. Each member carries its own
// write lock: the websocket library allows a single concurrent writer per
// connection, and broadcasts run from every sender's read loop.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*websocket.Conn]*sync.Mutex
	registry *Registry
}

// NewHub creates an empty hub backed by the given registry.
func NewHub(registry *Registry) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*websocket.Conn]*sync.Mutex),
		registry: registry,
	}
}

// Join adds the connection to the room, creating the room entry if absent.
// Joining twice is a no-op and keeps the existing write lock.
func (h *Hub) Join(roomKey string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomKey]; !ok {
		h.rooms[roomKey] = make(map[*websocket.Conn]*sync.Mutex)
	}
	if _, ok := h.rooms[roomKey][conn]; !ok {
		h.rooms[roomKey][conn] = &sync.Mutex{}
	}
}

// Leave removes the connection; the room entry is pruned once its member set
// is empty.
func (h *Hub) Leave(roomKey string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[roomKey]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, roomKey)
		}
	}
}

// Snapshot returns the size of every active room, for debug introspection.
func (h *Hub) Snapshot() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sizes := make(map[string]int, len(h.rooms))
	for roomKey, conns := range h.rooms {
		sizes[roomKey] = len(conns)
	}
	return sizes
}

// Members returns the current size of a room's member set.
func (h *Hub) Members(roomKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey])
}

type roomMember struct {
	conn    *websocket.Conn
	writeMu *sync.Mutex
}

// Broadcast delivers the event to every connection in the room. The member
// set is snapshotted first and writes happen outside the room lock, so a
// slow or failed send cannot stall joins or other members' delivery. Writes
// to one connection are serialized through its member lock, which also keeps
// delivery to a recipient in submit order when senders race. A failed write
// is isolated: the dead connection is closed and evicted, the rest still
// receive the event.
func (h *Hub) Broadcast(roomKey string, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("room", roomKey).Msg("broadcast marshal failed")
		return
	}

	h.mu.RLock()
	members := make([]roomMember, 0, len(h.rooms[roomKey]))
	for conn, writeMu := range h.rooms[roomKey] {
		members = append(members, roomMember{conn: conn, writeMu: writeMu})
	}
	h.mu.RUnlock()

	kind := kindOf(roomKey)
	for _, member := range members {
		member.writeMu.Lock()
		err := member.conn.WriteMessage(websocket.TextMessage, payload)
		member.writeMu.Unlock()
		if err != nil {
			log.Warn().Err(err).Str("room", roomKey).Msg("websocket write failed, evicting connection")
			observability.IncDeliveryError(kind)
			member.conn.Close()
			h.Leave(roomKey, member.conn)
			h.publishDeliveryError(kind, roomKey, member.conn, err)
			h.registry.Unregister(member.conn)
		}
	}
}

func (h *Hub) publishDeliveryError(kind, roomKey string, conn *websocket.Conn, err error) {
	info, ok := h.registry.connInfo(conn)
	if !ok {
		return
	}

	observability.IncWSEvent(kind, "ws_error")
	_ = observability.PublishEvent(context.Background(), observability.WSRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload: observability.WSEventPayload{
			Kind:       kind,
			RoomKey:    roomKey,
			Event:      "ws_error",
			ConnID:     info.ConnID,
			UserID:     info.UserID,
			IP:         info.IP,
			DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
			Reason:     err.Error(),
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
