package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mingle-chat/internal/mocks"
	"mingle-chat/internal/models"
)

func TestSetOnlineClearsLastSeen(t *testing.T) {
	repo := new(mocks.PresenceRepositoryMock)
	tracker := NewTracker(repo)

	repo.On("SetLastSeen", mock.Anything, 1, (*time.Time)(nil)).Return(nil).Once()
	require.NoError(t, tracker.SetOnline(context.Background(), 1))
	repo.AssertExpectations(t)
}

func TestSetOfflineStampsNowUTC(t *testing.T) {
	repo := new(mocks.PresenceRepositoryMock)
	tracker := NewTracker(repo)
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }

	repo.On("SetLastSeen", mock.Anything, 1, &now).Return(nil).Once()
	require.NoError(t, tracker.SetOffline(context.Background(), 1))
	repo.AssertExpectations(t)
}

func TestIsOnline(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		lastSeen *time.Time
		online   bool
	}{
		{"connected", nil, true},
		{"seen four minutes ago", ptr(now.Add(-4 * time.Minute)), true},
		{"seen six minutes ago", ptr(now.Add(-6 * time.Minute)), false},
		{"never connected", ptr(time.Time{}), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(mocks.PresenceRepositoryMock)
			tracker := NewTracker(repo)
			tracker.now = func() time.Time { return now }

			repo.On("Get", mock.Anything, 1).Return(models.PresenceRecord{UserID: 1, LastSeen: tc.lastSeen}, nil).Once()

			online, err := tracker.IsOnline(context.Background(), 1)
			require.NoError(t, err)
			require.Equal(t, tc.online, online)
		})
	}
}

func ptr(t time.Time) *time.Time { return &t }
