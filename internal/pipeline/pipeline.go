package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"mingle-chat/internal/models"
	"mingle-chat/internal/repositories"
)

// MaxContentLength caps message content, counted in runes.
const MaxContentLength = 1000

// ErrContentInvalid marks content that is empty after trimming or oversized.
// The session handler drops such frames without closing the connection.
var ErrContentInvalid = errors.New("content invalid")

// Pipeline validates, stamps and persists chat events. Broadcast only ever
// follows a successful persist.
type Pipeline struct {
	messages      repositories.MessageRepository
	groupMessages repositories.GroupMessageRepository
	now           func() time.Time
}

// New constructs a Pipeline.
func New(messages repositories.MessageRepository, groupMessages repositories.GroupMessageRepository) *Pipeline {
	return &Pipeline{messages: messages, groupMessages: groupMessages, now: time.Now}
}

// SubmitDirect validates and persists a direct message with a server-assigned
// UTC timestamp and read=false, returning the persisted record.
func (p *Pipeline) SubmitDirect(ctx context.Context, senderID int, receiverID int, content string) (models.Message, error) {
	trimmed, err := validate(content)
	if err != nil {
		return models.Message{}, err
	}
	return p.messages.CreateDirectMessage(ctx, senderID, receiverID, trimmed, p.now().UTC())
}

// SubmitGroup validates and persists a group message. No read tracking.
func (p *Pipeline) SubmitGroup(ctx context.Context, groupID int, senderID int, content string) (models.GroupMessage, error) {
	trimmed, err := validate(content)
	if err != nil {
		return models.GroupMessage{}, err
	}
	return p.groupMessages.CreateGroupMessage(ctx, groupID, senderID, trimmed, p.now().UTC())
}

// MarkRead bulk-flips all unread sender->receiver messages to read. The count
// is diagnostic; a repeat call returns zero without error.
func (p *Pipeline) MarkRead(ctx context.Context, senderID int, receiverID int) (int64, error) {
	return p.messages.MarkConversationRead(ctx, senderID, receiverID, p.now().UTC())
}

// Unread counts unread messages from sender to receiver.
func (p *Pipeline) Unread(ctx context.Context, receiverID int, senderID int) (int, error) {
	return p.messages.CountUnread(ctx, receiverID, senderID)
}

// History returns the full conversation between two users, oldest first.
func (p *Pipeline) History(ctx context.Context, userID int, peerID int) ([]models.Message, error) {
	return p.messages.ListConversation(ctx, userID, peerID)
}

// GroupHistory returns a group's messages, oldest first.
func (p *Pipeline) GroupHistory(ctx context.Context, groupID int) ([]models.GroupMessage, error) {
	return p.groupMessages.ListGroupMessages(ctx, groupID)
}

func validate(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrContentInvalid
	}
	if utf8.RuneCountInString(trimmed) > MaxContentLength {
		return "", ErrContentInvalid
	}
	return trimmed, nil
}
