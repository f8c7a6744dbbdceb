package ws

import (
	"context"
	"errors"
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

// GroupWSHandler handles group chat websocket connections.
type GroupWSHandler struct {
	hub           *Hub
	registry      *Registry
	users         repositories.UserRepository
	groups        repositories.GroupRepository
	pipe          *pipeline.Pipeline
	presence      *presence.Tracker
	authenticator auth.Authenticator
}

// NewGroupWSHandler constructs a GroupWSHandler.
func NewGroupWSHandler(hub *Hub, registry *Registry, users repositories.UserRepository, groups repositories.GroupRepository, pipe *pipeline.Pipeline, tracker *presence.Tracker, authenticator auth.Authenticator) *GroupWSHandler {
	return &GroupWSHandler{
		hub:           hub,
		registry:      registry,
		users:         users,
		groups:        groups,
		pipe:          pipe,
		presence:      tracker,
		authenticator: authenticator,
	}
}

// Handle upgrades the connection and runs the group-chat session. A
// non-member is closed with 4003 before any registry or room entry exists.
func (h *GroupWSHandler) Handle(c *gin.Context) {
	slug := c.Param("slug")
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

	group, err := h.groups.GetBySlug(ctx, slug)
	if errors.Is(err, repositories.ErrGroupNotFound) {
		closeWith(conn, CloseTargetNotFound, "unknown group")
		return
	}
	if err != nil {
		closeWith(conn, CloseGenericError, "internal error")
		return
	}

	member, err := h.groups.IsMember(ctx, group.ID, self.ID)
	if err != nil {
		closeWith(conn, CloseGenericError, "internal error")
		return
	}
	if !member {
		closeWith(conn, CloseForbidden, "not a group member")
		return
	}

	sess := &session{
		conn:     conn,
		kind:     "group",
		roomKey:  GroupRoomKey(group.Slug),
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
		h.handleFrame(ctx, sess, self, group, frame)
	}

	if err := sess.open(ctx); err != nil {
		log.Error().Err(err).Int("user_id", self.ID).Msg("group session open failed")
		closeWith(conn, CloseGenericError, "internal error")
		return
	}

	go sess.loop()
}

func (h *GroupWSHandler) handleFrame(ctx context.Context, sess *session, self models.Identity, group models.Group, frame models.Frame) {
	switch frame.Type {
	case models.FrameTypeMessage:
		msg, err := h.pipe.SubmitGroup(ctx, group.ID, self.ID, frame.Content)
		if errors.Is(err, pipeline.ErrContentInvalid) {
			return
		}
		if err != nil {
			log.Error().Err(err).Str("room", sess.roomKey).Msg("group message persist failed")
			sess.publish(ctx, "persist_error", err.Error())
			return
		}
		observability.IncMessagePersisted("group")
		h.hub.Broadcast(sess.roomKey, models.GroupEvent{
			Message:   msg.Content,
			Content:   msg.Content,
			Sender:    self.Username,
			SenderID:  self.ID,
			GroupSlug: group.Slug,
			Timestamp: msg.CreatedAt,
		})

	default:
		// groups carry no read state, so read receipts land here too
		log.Warn().Str("type", frame.Type).Str("room", sess.roomKey).Msg("unhandled frame type")
	}
}
