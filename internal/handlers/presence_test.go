package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mingle-chat/internal/mocks"
	"mingle-chat/internal/models"
	"mingle-chat/internal/presence"
	"mingle-chat/internal/repositories"
)

func presenceRouter(users *mocks.UserRepositoryMock, presenceRepo *mocks.PresenceRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewPresenceHandler(users, presence.NewTracker(presenceRepo))

	router := gin.New()
	router.GET("/users/:user_id/presence", handler.GetPresence)
	return router
}

func TestGetPresenceOnline(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	presenceRepo := new(mocks.PresenceRepositoryMock)
	router := presenceRouter(users, presenceRepo)

	users.On("Resolve", mock.Anything, 2).Return(models.Identity{ID: 2, Username: "bob"}, nil).Once()
	presenceRepo.On("Get", mock.Anything, 2).Return(models.PresenceRecord{UserID: 2, LastSeen: nil}, nil).Twice()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/2/presence", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"user_id": 2, "online": true, "last_seen": null}`, rec.Body.String())
	presenceRepo.AssertExpectations(t)
}

func TestGetPresenceOffline(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	presenceRepo := new(mocks.PresenceRepositoryMock)
	router := presenceRouter(users, presenceRepo)

	lastSeen := time.Now().UTC().Add(-30 * time.Minute).Truncate(time.Second)
	users.On("Resolve", mock.Anything, 2).Return(models.Identity{ID: 2, Username: "bob"}, nil).Once()
	presenceRepo.On("Get", mock.Anything, 2).Return(models.PresenceRecord{UserID: 2, LastSeen: &lastSeen}, nil).Twice()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/2/presence", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"online":false`)
	require.Contains(t, rec.Body.String(), lastSeen.Format("2006-01-02T15:04:05"))
}

func TestGetPresenceUnknownUser(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	presenceRepo := new(mocks.PresenceRepositoryMock)
	router := presenceRouter(users, presenceRepo)

	users.On("Resolve", mock.Anything, 99).Return(models.Identity{}, repositories.ErrUserNotFound).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/99/presence", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	presenceRepo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestGetPresenceBadUserID(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := presenceRouter(users, new(mocks.PresenceRepositoryMock))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/abc/presence", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	users.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}
