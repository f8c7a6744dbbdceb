package models

// Identity is the authenticated user as seen by the chat core. The record is
// owned by the auth service; this service only reads it.
type Identity struct {
	ID       int    `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
}
