package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mingle-chat/internal/models"
	"mingle-chat/internal/pipeline"
	"mingle-chat/internal/repositories"
)

// ChatHandler exposes direct-chat history and read-state operations to the
// HTTP layer, independent of an open websocket connection.
type ChatHandler struct {
	users repositories.UserRepository
	pipe  *pipeline.Pipeline
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(users repositories.UserRepository, pipe *pipeline.Pipeline) *ChatHandler {
	return &ChatHandler{users: users, pipe: pipe}
}

// GetConversation returns the messages between the caller and a peer, oldest
// first.
func (h *ChatHandler) GetConversation(c *gin.Context) {
	peer, ok := h.resolvePeer(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	msgs, err := h.pipe.History(c.Request.Context(), userID, peer.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GetUnreadCount returns how many messages from the peer the caller has not
// read yet.
func (h *ChatHandler) GetUnreadCount(c *gin.Context) {
	peer, ok := h.resolvePeer(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	count, err := h.pipe.Unread(c.Request.Context(), userID, peer.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count unread"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// MarkConversationRead flips all unread messages from the peer to read. The
// returned count is diagnostic; repeating the call yields zero.
func (h *ChatHandler) MarkConversationRead(c *gin.Context) {
	peer, ok := h.resolvePeer(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	count, err := h.pipe.MarkRead(c.Request.Context(), peer.ID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count})
}

func (h *ChatHandler) resolvePeer(c *gin.Context) (models.Identity, bool) {
	peerID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return models.Identity{}, false
	}

	identity, err := h.users.Resolve(c.Request.Context(), peerID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return models.Identity{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return models.Identity{}, false
	}
	return identity, true
}
