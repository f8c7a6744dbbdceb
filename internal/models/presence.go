package models

import "time"

// PresenceRecord tracks online/last-seen state per user. A nil LastSeen means
// the user is currently connected.
type PresenceRecord struct {
	UserID   int        `db:"user_id" json:"user_id"`
	LastSeen *time.Time `db:"last_seen" json:"last_seen,omitempty"`
}
