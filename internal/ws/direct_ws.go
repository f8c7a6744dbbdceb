package ws

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"mingle-chat/internal/auth"
	"mingle-chat/internal/models"
	"mingle-chat/internal/observability"
	"mingle-chat/internal/pipeline"
	"mingle-chat/internal/presence"
	"mingle-chat/internal/repositories"
)

// DirectWSHandler handles 1:1 chat websocket connections.
type DirectWSHandler struct {
	hub           *Hub
	registry      *Registry
	users         repositories.UserRepository
	pipe          *pipeline.Pipeline
	presence      *presence.Tracker
	authenticator auth.Authenticator
}

// NewDirectWSHandler constructs a DirectWSHandler.
func NewDirectWSHandler(hub *Hub, registry *Registry, users repositories.UserRepository, pipe *pipeline.Pipeline, tracker *presence.Tracker, authenticator auth.Authenticator) *DirectWSHandler {
	return &DirectWSHandler{
		hub:           hub,
		registry:      registry,
		users:         users,
		pipe:          pipe,
		presence:      tracker,
		authenticator: authenticator,
	}
}

// Handle upgrades the connection and runs the direct-chat session. Close
// codes are application-level, so the upgrade happens before any check and
// failures are reported as close frames.
func (h *DirectWSHandler) Handle(c *gin.Context) {
	peerID, peerIDErr := strconv.Atoi(c.Param("user_id"))
	token := auth.TokenFromRequest(c)

	ctx, span := otel.Tracer("mingle-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	userID, err := h.authenticator.ValidateToken(ctx, token)
	if err != nil {
		closeWith(conn, CloseUnauthenticated, "unauthenticated")
		return
	}
	self, err := h.users.Resolve(ctx, userID)
	if err != nil {
		closeWith(conn, CloseUnauthenticated, "unauthenticated")
		return
	}

	if peerIDErr != nil {
		closeWith(conn, CloseTargetNotFound, "unknown user")
		return
	}
	peer, err := h.users.Resolve(ctx, peerID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		closeWith(conn, CloseTargetNotFound, "unknown user")
		return
	}
	if err != nil {
		closeWith(conn, CloseGenericError, "internal error")
		return
	}

	sess := &session{
		conn:     conn,
		kind:     "chat",
		roomKey:  DirectRoomKey(self.ID, peer.ID),
		identity: self,
		info: ConnInfo{
			ConnID:      newConnID(),
			UserID:      self.ID,
			Username:    self.Username,
			IP:          observability.ClientIP(c.Request),
			RequestID:   observability.RequestID(c.Request),
			TraceID:     span.SpanContext().TraceID().String(),
			ConnectedAt: time.Now(),
		},
		hub:      h.hub,
		registry: h.registry,
		presence: h.presence,
	}
	sess.handle = func(ctx context.Context, frame models.Frame) {
		h.handleFrame(ctx, sess, self, peer, frame)
	}

	if err := sess.open(ctx); err != nil {
		log.Error().Err(err).Int("user_id", self.ID).Msg("direct session open failed")
		closeWith(conn, CloseGenericError, "internal error")
		return
	}

	go sess.loop()
}

func (h *DirectWSHandler) handleFrame(ctx context.Context, sess *session, self, peer models.Identity, frame models.Frame) {
	switch frame.Type {
	case models.FrameTypeReadReceipt:
		// mark everything the peer sent to this user as read; nothing is
		// broadcast back
		count, err := h.pipe.MarkRead(ctx, peer.ID, self.ID)
		if err != nil {
			log.Error().Err(err).Str("room", sess.roomKey).Msg("mark read failed")
			return
		}
		log.Debug().Int64("count", count).Str("room", sess.roomKey).Msg("messages marked read")

	case models.FrameTypeMessage:
		msg, err := h.pipe.SubmitDirect(ctx, self.ID, peer.ID, frame.Content)
		if errors.Is(err, pipeline.ErrContentInvalid) {
			return
		}
		if err != nil {
			// not broadcast; the connection stays open and may retry
			log.Error().Err(err).Str("room", sess.roomKey).Msg("message persist failed")
			sess.publish(ctx, "persist_error", err.Error())
			return
		}
		observability.IncMessagePersisted("chat")
		h.hub.Broadcast(sess.roomKey, models.DirectEvent{
			Message:    msg.Content,
			Sender:     self.Username,
			SenderID:   self.ID,
			ReceiverID: peer.ID,
			Timestamp:  msg.CreatedAt,
		})

	default:
		log.Warn().Str("type", frame.Type).Str("room", sess.roomKey).Msg("unhandled frame type")
	}
}
