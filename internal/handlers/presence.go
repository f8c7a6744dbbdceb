package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mingle-chat/internal/presence"
	"mingle-chat/internal/repositories"
)

// PresenceHandler exposes online/last-seen state.
type PresenceHandler struct {
	users   repositories.UserRepository
	tracker *presence.Tracker
}

// NewPresenceHandler constructs a PresenceHandler.
func NewPresenceHandler(users repositories.UserRepository, tracker *presence.Tracker) *PresenceHandler {
	return &PresenceHandler{users: users, tracker: tracker}
}

// GetPresence reports whether a user is online and when they were last seen.
func (h *PresenceHandler) GetPresence(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if _, err := h.users.Resolve(c.Request.Context(), userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}

	online, err := h.tracker.IsOnline(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load presence"})
		return
	}
	rec, err := h.tracker.Record(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load presence"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":   userID,
		"online":    online,
		"last_seen": rec.LastSeen,
	})
}
