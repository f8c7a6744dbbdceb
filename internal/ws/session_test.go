package ws

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mingle-chat/internal/auth"
	"mingle-chat/internal/mocks"
	"mingle-chat/internal/models"
	"mingle-chat/internal/pipeline"
	"mingle-chat/internal/presence"
	"mingle-chat/internal/repositories"
)

type wsFixture struct {
	authenticator *mocks.AuthenticatorMock
	users         *mocks.UserRepositoryMock
	groups        *mocks.GroupRepositoryMock
	messages      *mocks.MessageRepositoryMock
	groupMessages *mocks.GroupMessageRepositoryMock
	presence      *mocks.PresenceRepositoryMock
	registry      *Registry
	hub           *Hub
	srv           *httptest.Server
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	f := newWSFixtureBare(t)
	// presence updates are incidental to most session tests
	f.presence.On("SetLastSeen", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return f
}

// newWSFixtureBare leaves the presence mock unstubbed for tests that assert
// on presence behavior.
func newWSFixtureBare(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &wsFixture{
		authenticator: new(mocks.AuthenticatorMock),
		users:         new(mocks.UserRepositoryMock),
		groups:        new(mocks.GroupRepositoryMock),
		messages:      new(mocks.MessageRepositoryMock),
		groupMessages: new(mocks.GroupMessageRepositoryMock),
		presence:      new(mocks.PresenceRepositoryMock),
	}
	f.registry = NewRegistry()
	f.hub = NewHub(f.registry)

	pipe := pipeline.New(f.messages, f.groupMessages)
	tracker := presence.NewTracker(f.presence)

	direct := NewDirectWSHandler(f.hub, f.registry, f.users, pipe, tracker, f.authenticator)
	group := NewGroupWSHandler(f.hub, f.registry, f.users, f.groups, pipe, tracker, f.authenticator)

	router := gin.New()
	router.GET("/ws/chats/:user_id", direct.Handle)
	router.GET("/ws/groups/:slug", group.Handle)

	f.srv = httptest.NewServer(router)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *wsFixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected close error, got %v", err)
	require.Equal(t, code, closeErr.Code)
}

func TestDirectSessionRejectsBadToken(t *testing.T) {
	f := newWSFixture(t)
	f.authenticator.On("ValidateToken", mock.Anything, "bad").Return(0, auth.ErrInvalidToken).Once()

	conn := f.dial(t, "/ws/chats/2?token=bad")
	expectClose(t, conn, CloseUnauthenticated)
}

func TestDirectSessionRejectsUnknownPeer(t *testing.T) {
	f := newWSFixture(t)
	f.authenticator.On("ValidateToken", mock.Anything, "alice").Return(1, nil).Once()
	f.users.On("Resolve", mock.Anything, 1).Return(models.Identity{ID: 1, Username: "alice"}, nil).Once()
	f.users.On("Resolve", mock.Anything, 99).Return(models.Identity{}, repositories.ErrUserNotFound).Once()

	conn := f.dial(t, "/ws/chats/99?token=alice")
	expectClose(t, conn, CloseTargetNotFound)
}

func TestGroupSessionRejectsNonMember(t *testing.T) {
	f := newWSFixture(t)
	f.authenticator.On("ValidateToken", mock.Anything, "mallory").Return(3, nil).Once()
	f.users.On("Resolve", mock.Anything, 3).Return(models.Identity{ID: 3, Username: "mallory"}, nil).Once()
	f.groups.On("GetBySlug", mock.Anything, "team-x").Return(models.Group{ID: 9, Slug: "team-x"}, nil).Once()
	f.groups.On("IsMember", mock.Anything, 9, 3).Return(false, nil).Once()

	conn := f.dial(t, "/ws/groups/team-x?token=mallory")
	expectClose(t, conn, CloseForbidden)

	// no room or registry entries were created
	require.Equal(t, 0, f.hub.Members("group_team-x"))
	f.registry.mu.RLock()
	defer f.registry.mu.RUnlock()
	require.Empty(t, f.registry.conns)
}

func TestGroupSessionRejectsUnknownSlug(t *testing.T) {
	f := newWSFixture(t)
	f.authenticator.On("ValidateToken", mock.Anything, "alice").Return(1, nil).Once()
	f.users.On("Resolve", mock.Anything, 1).Return(models.Identity{ID: 1, Username: "alice"}, nil).Once()
	f.groups.On("GetBySlug", mock.Anything, "ghost").Return(models.Group{}, repositories.ErrGroupNotFound).Once()

	conn := f.dial(t, "/ws/groups/ghost?token=alice")
	expectClose(t, conn, CloseTargetNotFound)
}

func TestDirectSessionRollsBackPartialOpen(t *testing.T) {
	f := newWSFixtureBare(t)
	f.authenticator.On("ValidateToken", mock.Anything, "alice").Return(1, nil)
	f.users.On("Resolve", mock.Anything, 1).Return(models.Identity{ID: 1, Username: "alice"}, nil)
	f.users.On("Resolve", mock.Anything, 2).Return(models.Identity{ID: 2, Username: "bob"}, nil)

	// a presence store failure after register+join must undo both steps
	f.presence.On("SetLastSeen", mock.Anything, 1, (*time.Time)(nil)).
		Return(errors.New("presence store down")).Once()

	conn := f.dial(t, "/ws/chats/2?token=alice")
	expectClose(t, conn, CloseGenericError)

	require.Equal(t, 0, f.hub.Members("chat_1_2"))
	f.registry.mu.RLock()
	defer f.registry.mu.RUnlock()
	require.Empty(t, f.registry.conns)
	f.presence.AssertExpectations(t)
}

func TestDirectSessionMessageFlow(t *testing.T) {
	f := newWSFixture(t)
	f.authenticator.On("ValidateToken", mock.Anything, "alice").Return(1, nil)
	f.authenticator.On("ValidateToken", mock.Anything, "bob").Return(2, nil)
	f.users.On("Resolve", mock.Anything, 1).Return(models.Identity{ID: 1, Username: "alice"}, nil)
	f.users.On("Resolve", mock.Anything, 2).Return(models.Identity{ID: 2, Username: "bob"}, nil)

	stamp := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	f.messages.On("CreateDirectMessage", mock.Anything, 1, 2, "hello", mock.Anything).
		Return(models.Message{ID: 7, SenderID: 1, ReceiverID: 2, Content: "hello", CreatedAt: stamp}, nil).Once()

	alice := f.dial(t, "/ws/chats/2?token=alice")
	bob := f.dial(t, "/ws/chats/1?token=bob")

	// both connections land in the same room regardless of connect order
	require.Eventually(t, func() bool { return f.hub.Members("chat_1_2") == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteJSON(models.Frame{Content: "hello"}))

	for _, conn := range []*websocket.Conn{alice, bob} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var event models.DirectEvent
		require.NoError(t, conn.ReadJSON(&event))
		require.Equal(t, "hello", event.Message)
		require.Equal(t, "alice", event.Sender)
		require.Equal(t, 1, event.SenderID)
		require.Equal(t, 2, event.ReceiverID)
		require.True(t, stamp.Equal(event.Timestamp))
	}
	f.messages.AssertExpectations(t)
}

func TestDirectSessionReadReceipt(t *testing.T) {
	f := newWSFixture(t)
	f.authenticator.On("ValidateToken", mock.Anything, "bob").Return(2, nil)
	f.users.On("Resolve", mock.Anything, 1).Return(models.Identity{ID: 1, Username: "alice"}, nil)
	f.users.On("Resolve", mock.Anything, 2).Return(models.Identity{ID: 2, Username: "bob"}, nil)

	marked := make(chan struct{})
	// bob marks everything alice sent him as read
	f.messages.On("MarkConversationRead", mock.Anything, 1, 2, mock.Anything).
		Return(int64(3), nil).
		Run(func(mock.Arguments) { close(marked) }).Once()

	bob := f.dial(t, "/ws/chats/1?token=bob")
	require.NoError(t, bob.WriteJSON(models.Frame{Type: models.FrameTypeReadReceipt}))

	select {
	case <-marked:
	case <-time.After(2 * time.Second):
		t.Fatal("read receipt was not processed")
	}

	// no frame is broadcast back for a read receipt
	bob.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := bob.ReadMessage()
	require.Error(t, err)
	f.messages.AssertExpectations(t)
}

func TestDirectSessionDropsInvalidContent(t *testing.T) {
	f := newWSFixture(t)
	f.authenticator.On("ValidateToken", mock.Anything, "alice").Return(1, nil)
	f.users.On("Resolve", mock.Anything, 1).Return(models.Identity{ID: 1, Username: "alice"}, nil)
	f.users.On("Resolve", mock.Anything, 2).Return(models.Identity{ID: 2, Username: "bob"}, nil)

	stamp := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	f.messages.On("CreateDirectMessage", mock.Anything, 1, 2, "still alive", mock.Anything).
		Return(models.Message{ID: 8, SenderID: 1, ReceiverID: 2, Content: "still alive", CreatedAt: stamp}, nil).Once()

	alice := f.dial(t, "/ws/chats/2?token=alice")

	// malformed JSON, blank and oversized content are all dropped without
	// closing the connection
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, alice.WriteJSON(models.Frame{Content: "   "}))
	require.NoError(t, alice.WriteJSON(models.Frame{Content: strings.Repeat("a", 1001)}))
	require.NoError(t, alice.WriteJSON(models.Frame{Content: "still alive"}))

	alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event models.DirectEvent
	require.NoError(t, alice.ReadJSON(&event))
	require.Equal(t, "still alive", event.Message)

	// only the valid message was persisted
	f.messages.AssertNumberOfCalls(t, "CreateDirectMessage", 1)
}

func TestGroupSessionMessageFlow(t *testing.T) {
	f := newWSFixture(t)
	f.authenticator.On("ValidateToken", mock.Anything, "alice").Return(1, nil)
	f.authenticator.On("ValidateToken", mock.Anything, "bob").Return(2, nil)
	f.users.On("Resolve", mock.Anything, 1).Return(models.Identity{ID: 1, Username: "alice"}, nil)
	f.users.On("Resolve", mock.Anything, 2).Return(models.Identity{ID: 2, Username: "bob"}, nil)
	f.groups.On("GetBySlug", mock.Anything, "team-x").Return(models.Group{ID: 9, Slug: "team-x"}, nil)
	f.groups.On("IsMember", mock.Anything, 9, 1).Return(true, nil)
	f.groups.On("IsMember", mock.Anything, 9, 2).Return(true, nil)

	stamp := time.Date(2026, 8, 28, 11, 0, 0, 0, time.UTC)
	f.groupMessages.On("CreateGroupMessage", mock.Anything, 9, 1, "hey team", mock.Anything).
		Return(models.GroupMessage{ID: 4, GroupID: 9, SenderID: 1, Content: "hey team", CreatedAt: stamp}, nil).Once()

	alice := f.dial(t, "/ws/groups/team-x?token=alice")
	bob := f.dial(t, "/ws/groups/team-x?token=bob")
	require.Eventually(t, func() bool { return f.hub.Members("group_team-x") == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteJSON(models.Frame{Content: "hey team"}))

	for _, conn := range []*websocket.Conn{alice, bob} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var event models.GroupEvent
		require.NoError(t, conn.ReadJSON(&event))
		require.Equal(t, "hey team", event.Message)
		require.Equal(t, event.Message, event.Content)
		require.Equal(t, "alice", event.Sender)
		require.Equal(t, "team-x", event.GroupSlug)
	}
	f.groupMessages.AssertExpectations(t)
}

func TestDirectSessionCleansUpOnDisconnect(t *testing.T) {
	f := newWSFixture(t)
	f.authenticator.On("ValidateToken", mock.Anything, "alice").Return(1, nil)
	f.users.On("Resolve", mock.Anything, 1).Return(models.Identity{ID: 1, Username: "alice"}, nil)
	f.users.On("Resolve", mock.Anything, 2).Return(models.Identity{ID: 2, Username: "bob"}, nil)

	alice := f.dial(t, "/ws/chats/2?token=alice")
	require.Eventually(t, func() bool { return f.hub.Members("chat_1_2") == 1 }, 2*time.Second, 10*time.Millisecond)

	alice.Close()

	require.Eventually(t, func() bool {
		f.registry.mu.RLock()
		defer f.registry.mu.RUnlock()
		return f.hub.Members("chat_1_2") == 0 && len(f.registry.conns) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
