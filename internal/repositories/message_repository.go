package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"mingle-chat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for direct messages.
type MessageRepository interface {
	CreateDirectMessage(ctx context.Context, senderID int, receiverID int, content string, at time.Time) (models.Message, error)
	ListConversation(ctx context.Context, userID int, peerID int) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, senderID int, receiverID int, at time.Time) (int64, error)
	CountUnread(ctx context.Context, receiverID int, senderID int) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateDirectMessage stores a direct message inside its own transaction and
// returns the persisted row.
func (r *MessageRepo) CreateDirectMessage(ctx context.Context, senderID int, receiverID int, content string, at time.Time) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (sender_id, receiver_id, content, created_at) VALUES ($1, $2, $3, $4)
         RETURNING id, sender_id, receiver_id, content, read, read_at, created_at`,
		senderID, receiverID, content, at).
		Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.Read, &msg.ReadAt, &msg.CreatedAt); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListConversation returns all messages between two users ordered by creation.
func (r *MessageRepo) ListConversation(ctx context.Context, userID int, peerID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT id, sender_id, receiver_id, content, read, read_at, created_at FROM messages
         WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
         ORDER BY created_at ASC`, userID, peerID)
	return msgs, err
}

// MarkConversationRead bulk-flips unread messages in the sender->receiver
// direction. Read flips once; read_at is set on the first transition only.
// Returns the number of rows updated, so a second call yields zero.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, senderID int, receiverID int, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET read = TRUE, read_at = $3
         WHERE sender_id=$1 AND receiver_id=$2 AND read = FALSE`,
		senderID, receiverID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountUnread counts unread messages from sender to receiver.
func (r *MessageRepo) CountUnread(ctx context.Context, receiverID int, senderID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages WHERE receiver_id=$1 AND sender_id=$2 AND read = FALSE`,
		receiverID, senderID)
	return count, err
}
