package presence

import (
	"context"
	"time"

	"mingle-chat/internal/models"
	"mingle-chat/internal/repositories"
)

// A user still counts as online for this long after disconnecting.
const onlineWindow = 5 * time.Minute

// Tracker maintains online/last-seen state per user. No locking beyond the
// store's own atomicity: presence is a liveness hint and concurrent
// connect/disconnect races resolve last-write-wins.
type Tracker struct {
	repo repositories.PresenceRepository
	now  func() time.Time
}

// NewTracker constructs a Tracker.
func NewTracker(repo repositories.PresenceRepository) *Tracker {
	return &Tracker{repo: repo, now: time.Now}
}

// SetOnline clears last-seen, marking the user actively connected.
func (t *Tracker) SetOnline(ctx context.Context, userID int) error {
	return t.repo.SetLastSeen(ctx, userID, nil)
}

// SetOffline records the disconnect time in UTC.
func (t *Tracker) SetOffline(ctx context.Context, userID int) error {
	now := t.now().UTC()
	return t.repo.SetLastSeen(ctx, userID, &now)
}

// IsOnline reports whether the user is connected or was seen within the
// freshness window.
func (t *Tracker) IsOnline(ctx context.Context, userID int) (bool, error) {
	rec, err := t.repo.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if rec.LastSeen == nil {
		return true, nil
	}
	return t.now().UTC().Sub(*rec.LastSeen) < onlineWindow, nil
}

// Record returns the raw presence record for the HTTP surface.
func (t *Tracker) Record(ctx context.Context, userID int) (models.PresenceRecord, error) {
	return t.repo.Get(ctx, userID)
}
