package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readers maps a project id to the users allowed to see it.
type readers map[string][]string

func (r readers) check(_ context.Context, userID, projectID string) bool {
	for _, u := range r[projectID] {
		if u == userID {
			return true
		}
	}
	return false
}

func newTestServer(t *testing.T, access readers) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil)
	hub.SetAccess(access.check)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, hub *Hub, base, user string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(base+"?user="+user, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.Connected(user) }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func joined(hub *Hub, user, room string) bool {
	hub.mu.Lock()
	c := hub.clients[user]
	hub.mu.Unlock()
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[room]
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev domain.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func readReply(t *testing.T, conn *websocket.Conn) roomReply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg roomReply
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// silent asserts nothing arrives on conn shortly after the hub was told
// to deliver.
func silent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, raw, err := conn.ReadMessage()
	assert.Error(t, err, "unexpected message %s", raw)
}

func TestRoomFiltering(t *testing.T) {
	hub, base := newTestServer(t, readers{"a": {"u1", "u2"}, "b": {"u1"}, "z": {"u2"}})
	everything := dial(t, hub, base, "u1")
	scoped := dial(t, hub, base, "u2")

	require.NoError(t, scoped.WriteJSON(clientMessage{Type: "join_room", RoomID: "project:a"}))
	assert.Equal(t, roomReply{Type: "room_joined", RoomID: "project:a"}, readReply(t, scoped))
	assert.True(t, joined(hub, "u2", "project:a"))

	ctx := context.Background()
	hub.Notify(ctx, domain.Event{Channel: domain.ChannelTestCase, Type: "test_case_created", Room: "project:b", Payload: json.RawMessage(`{"id":"1"}`)})
	hub.Notify(ctx, domain.Event{Channel: domain.ChannelComment, Type: "comment_created", Room: "project:a", Payload: json.RawMessage(`{"id":"2"}`)})

	first := readEvent(t, everything)
	assert.Equal(t, domain.ChannelTestCase, first.Channel)
	second := readEvent(t, everything)
	assert.Equal(t, domain.ChannelComment, second.Channel)

	got := readEvent(t, scoped)
	assert.Equal(t, "project:a", got.Room)
	assert.JSONEq(t, `{"id":"2"}`, string(got.Payload))

	require.NoError(t, scoped.WriteJSON(clientMessage{Type: "leave_room", RoomID: "project:a"}))
	require.Eventually(t, func() bool { return !joined(hub, "u2", "project:a") }, 2*time.Second, 10*time.Millisecond)
	hub.Notify(ctx, domain.Event{Channel: domain.ChannelDashboard, Type: "activity", Room: "project:z"})
	assert.Equal(t, domain.ChannelDashboard, readEvent(t, scoped).Channel, "no rooms means every readable project")
}

func TestProjectEventsRespectAccess(t *testing.T) {
	hub, base := newTestServer(t, readers{"private": {"owner"}})
	owner := dial(t, hub, base, "owner")
	outsider := dial(t, hub, base, "outsider")
	spy := dial(t, hub, base, "spy")

	require.NoError(t, spy.WriteJSON(clientMessage{Type: "join_room", RoomID: "project:private"}))
	assert.Equal(t, roomReply{Type: "room_denied", RoomID: "project:private"}, readReply(t, spy))
	assert.False(t, joined(hub, "spy", "project:private"))

	require.NoError(t, spy.WriteJSON(clientMessage{Type: "join_room", RoomID: "lobby"}))
	assert.Equal(t, "room_denied", readReply(t, spy).Type)

	hub.Notify(context.Background(), domain.Event{
		Channel: domain.ChannelTestCase, Type: "test_case_created",
		Room: "project:private", Payload: json.RawMessage(`{"title":"secret test"}`),
	})
	got := readEvent(t, owner)
	assert.JSONEq(t, `{"title":"secret test"}`, string(got.Payload))
	silent(t, outsider)
	silent(t, spy)
}

func TestEventsWithoutProjectGoToTheirUser(t *testing.T) {
	hub, base := newTestServer(t, readers{})
	alice := dial(t, hub, base, "alice")
	bob := dial(t, hub, base, "bob")

	hub.Notify(context.Background(), domain.Event{Channel: domain.ChannelDashboard, Type: "activity", UserID: "alice"})
	assert.Equal(t, "alice", readEvent(t, alice).UserID)
	silent(t, bob)

	hub.Notify(context.Background(), domain.Event{Channel: domain.ChannelDashboard, Type: "activity"})
	silent(t, alice)
}

func TestNoAccessCheckAdmitsNobody(t *testing.T) {
	hub := NewHub(nil)
	assert.False(t, hub.canSee(context.Background(), "u1", "p1"))
}

func TestNewerConnectionReplacesOlder(t *testing.T) {
	hub, base := newTestServer(t, readers{})
	old := dial(t, hub, base, "u1")
	fresh := dial(t, hub, base, "u1")

	require.NoError(t, old.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := old.ReadMessage()
	assert.Error(t, err, "the replaced connection is closed")

	hub.Notify(context.Background(), domain.Event{Channel: domain.ChannelExecution, Type: "test_execution_updated", UserID: "u1"})
	assert.Equal(t, domain.ChannelExecution, readEvent(t, fresh).Channel)
	assert.True(t, hub.Connected("u1"))
}
