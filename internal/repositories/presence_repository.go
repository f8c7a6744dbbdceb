package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"mingle-chat/internal/models"
)

// PresenceRepository stores per-user last-seen state. A NULL last_seen means
// the user is currently connected.
type PresenceRepository interface {
	SetLastSeen(ctx context.Context, userID int, lastSeen *time.Time) error
	Get(ctx context.Context, userID int) (models.PresenceRecord, error)
}

// PresenceRepo is a sqlx implementation of PresenceRepository.
type PresenceRepo struct {
	db *sqlx.DB
}

// NewPresenceRepo constructs a PresenceRepo.
func NewPresenceRepo(db *sqlx.DB) *PresenceRepo {
	return &PresenceRepo{db: db}
}

// SetLastSeen upserts the presence record. Concurrent writers are resolved
// last-write-wins by the store.
func (r *PresenceRepo) SetLastSeen(ctx context.Context, userID int, lastSeen *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO presence (user_id, last_seen) VALUES ($1, $2)
         ON CONFLICT (user_id) DO UPDATE SET last_seen = EXCLUDED.last_seen`,
		userID, lastSeen)
	return err
}

// Get fetches the presence record. A user without a record has never
// connected and is reported with a zero-time last seen.
func (r *PresenceRepo) Get(ctx context.Context, userID int) (models.PresenceRecord, error) {
	var rec models.PresenceRecord
	err := r.db.GetContext(ctx, &rec, `SELECT user_id, last_seen FROM presence WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		epoch := time.Time{}
		return models.PresenceRecord{UserID: userID, LastSeen: &epoch}, nil
	}
	return rec, err
}
