package models

import "time"

// Group represents a chat group. The slug is assigned once and never mutated:
// live connections key their room on it.
type Group struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedBy   int       `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// GroupMembership links a user to a group, unique per (group, user).
type GroupMembership struct {
	GroupID  int       `db:"group_id" json:"group_id"`
	UserID   int       `db:"user_id" json:"user_id"`
	IsAdmin  bool      `db:"is_admin" json:"is_admin"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// GroupMessage represents a message sent in a group. Group messages carry no
// per-member read state.
type GroupMessage struct {
	ID        int       `db:"id" json:"id"`
	GroupID   int       `db:"group_id" json:"group_id"`
	SenderID  int       `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// GroupEvent is the frame broadcast to a group room. Content duplicates
// Message for client compatibility.
type GroupEvent struct {
	Message   string    `json:"message"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	SenderID  int       `json:"sender_id"`
	GroupSlug string    `json:"group_slug"`
	Timestamp time.Time `json:"timestamp"`
}
