package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"mingle-chat/internal/models"
	"mingle-chat/internal/observability"
	"mingle-chat/internal/presence"
)

// Application-level close codes, sent as websocket close frames.
const (
	CloseGenericError    = 4000
	CloseUnauthenticated = 4001
	CloseForbidden       = 4003
	CloseTargetNotFound  = 4004
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}

// session is the per-connection state machine shared by the direct and group
// variants. The variant supplies the frame handler.
type session struct {
	conn     *websocket.Conn
	kind     string
	roomKey  string
	identity models.Identity
	info     ConnInfo

	hub      *Hub
	registry *Registry
	presence *presence.Tracker
	handle   func(ctx context.Context, frame models.Frame)
}

// open registers the connection, joins the room and marks the user online as
// a unit: if a later step fails, the completed ones are rolled back so no
// partially-registered connection survives.
func (s *session) open(ctx context.Context) error {
	if err := s.registry.Register(s.conn, s.identity, s.roomKey, s.info); err != nil {
		return err
	}
	s.hub.Join(s.roomKey, s.conn)
	if err := s.presence.SetOnline(ctx, s.identity.ID); err != nil {
		s.hub.Leave(s.roomKey, s.conn)
		s.registry.Unregister(s.conn)
		return err
	}

	observability.IncWSActive(s.kind)
	observability.IncWSEvent(s.kind, "ws_connect")
	s.publish(ctx, "ws_connect", "")
	return nil
}

// loop reads frames until the connection dies. Cleanup runs on every exit
// path, not only the happy one.
func (s *session) loop() {
	var closeReason string
	defer func() {
		ctx := context.Background()
		s.registry.Unregister(s.conn)
		s.hub.Leave(s.roomKey, s.conn)
		if err := s.presence.SetOffline(ctx, s.identity.ID); err != nil {
			log.Error().Err(err).Int("user_id", s.identity.ID).Msg("presence offline update failed")
		}
		observability.DecWSActive(s.kind)
		observability.IncWSEvent(s.kind, "ws_disconnect")
		s.publish(ctx, "ws_disconnect", closeReason)
		s.conn.Close()
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent(s.kind, "ws_error")
			}
			return
		}

		var frame models.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			// malformed frames are dropped, the connection stays open
			log.Debug().Str("room", s.roomKey).Msg("malformed frame dropped")
			continue
		}
		s.handle(context.Background(), frame)
	}
}

func (s *session) publish(ctx context.Context, event, reason string) {
	_ = observability.PublishEvent(ctx, observability.WSRoutingKey(s.kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: observability.WSEventPayload{
			Kind:       s.kind,
			RoomKey:    s.roomKey,
			Event:      event,
			ConnID:     s.info.ConnID,
			UserID:     s.info.UserID,
			IP:         s.info.IP,
			DurationMS: time.Since(s.info.ConnectedAt).Milliseconds(),
			Reason:     reason,
		},
	}, observability.BuildHeaders(s.info.RequestID, s.info.TraceID))
}
