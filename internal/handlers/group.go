package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mingle-chat/internal/pipeline"
	"mingle-chat/internal/repositories"
)

// GroupHandler exposes group listing and history to the HTTP layer. Group
// administration itself lives in a separate service.
type GroupHandler struct {
	groups repositories.GroupRepository
	pipe   *pipeline.Pipeline
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groups repositories.GroupRepository, pipe *pipeline.Pipeline) *GroupHandler {
	return &GroupHandler{groups: groups, pipe: pipe}
}

// ListGroups returns groups the caller belongs to.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID := c.GetInt("userID")
	groups, err := h.groups.ListGroupsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetGroupMessages returns a group's messages, oldest first. Members only.
func (h *GroupHandler) GetGroupMessages(c *gin.Context) {
	slug := c.Param("slug")

	group, err := h.groups.GetBySlug(c.Request.Context(), slug)
	if errors.Is(err, repositories.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve group"})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.groups.IsMember(c.Request.Context(), group.ID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	msgs, err := h.pipe.GroupHistory(c.Request.Context(), group.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
