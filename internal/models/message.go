package models

import "time"

// Message represents a direct (1:1) chat message.
type Message struct {
	ID         int        `db:"id" json:"id"`
	SenderID   int        `db:"sender_id" json:"sender_id"`
	ReceiverID int        `db:"receiver_id" json:"receiver_id"`
	Content    string     `db:"content" json:"content"`
	Read       bool       `db:"read" json:"read"`
	ReadAt     *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// DirectEvent is the frame broadcast to a direct room after a message is
// persisted.
type DirectEvent struct {
	Message    string    `json:"message"`
	Sender     string    `json:"sender"`
	SenderID   int       `json:"sender_id"`
	ReceiverID int       `json:"receiver_id"`
	Timestamp  time.Time `json:"timestamp"`
}
