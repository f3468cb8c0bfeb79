package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func drainFrame(t *testing.T, c *Connection) Frame {
	t.Helper()
	select {
	case payload := <-c.send:
		var f Frame
		assert.NoError(t, json.Unmarshal(payload, &f))
		return f
	default:
		t.Fatal("expected a queued frame, got none")
		return Frame{}
	}
}

func assertNoFrame(t *testing.T, c *Connection) {
	t.Helper()
	select {
	case payload := <-c.send:
		t.Fatalf("expected no frame, got %s", payload)
	default:
	}
}

func TestRegisterMakesUserOnline(t *testing.T) {
	h := NewHub()
	conn := NewConnection("user1", "doctor", "Dr Smith", nil)

	assert.False(t, h.IsOnline("user1"))
	h.Register(conn)
	assert.True(t, h.IsOnline("user1"))

	connID, ok := h.ConnectionOf("user1")
	assert.True(t, ok)
	assert.Equal(t, conn.ID, connID)
}

func TestRegisterSecondConnectionWins(t *testing.T) {
	h := NewHub()
	first := NewConnection("user1", "doctor", "Dr Smith", nil)
	second := NewConnection("user1", "doctor", "Dr Smith", nil)

	h.Register(first)
	h.Register(second)

	connID, ok := h.ConnectionOf("user1")
	assert.True(t, ok)
	assert.Equal(t, second.ID, connID)

	// the replaced connection is closed and no longer addressable
	assert.Error(t, h.Unicast(first.ID, EventChatError, nil))
}

func TestUnregisterStaleConnectionKeepsNewOne(t *testing.T) {
	h := NewHub()
	first := NewConnection("user1", "patient", "", nil)
	second := NewConnection("user1", "patient", "", nil)

	h.Register(first)
	h.Register(second)

	// the old socket's read loop dies after the reconnect already registered
	h.Unregister(first)

	assert.True(t, h.IsOnline("user1"))
	connID, _ := h.ConnectionOf("user1")
	assert.Equal(t, second.ID, connID)
}

func TestUnregisterReturnsRoomsLeft(t *testing.T) {
	h := NewHub()
	conn := NewConnection("user1", "doctor", "", nil)
	h.Register(conn)
	h.Join(ChatRoomKey("room1"), conn)
	h.Join(CallRoomKey("call1"), conn)

	rooms := h.Unregister(conn)
	assert.ElementsMatch(t, []string{ChatRoomKey("room1"), CallRoomKey("call1")}, rooms)
	assert.False(t, h.IsOnline("user1"))
	assert.Empty(t, h.MembersOf(ChatRoomKey("room1")))
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := NewHub()
	doctor := NewConnection("doc1", "doctor", "", nil)
	patient := NewConnection("pat1", "patient", "", nil)
	h.Register(doctor)
	h.Register(patient)
	h.Join(ChatRoomKey("room1"), doctor)
	h.Join(ChatRoomKey("room1"), patient)

	h.Broadcast(ChatRoomKey("room1"), EventChatNewMessage, map[string]string{"text": "hi"}, doctor.ID)

	f := drainFrame(t, patient)
	assert.Equal(t, EventChatNewMessage, f.Event)
	assertNoFrame(t, doctor)
}

func TestBroadcastSkipsNonMembers(t *testing.T) {
	h := NewHub()
	member := NewConnection("doc1", "doctor", "", nil)
	outsider := NewConnection("pat1", "patient", "", nil)
	h.Register(member)
	h.Register(outsider)
	h.Join(ChatRoomKey("room1"), member)

	h.Broadcast(ChatRoomKey("room1"), EventChatNewMessage, nil, "")

	drainFrame(t, member)
	assertNoFrame(t, outsider)
}

func TestLeaveRemovesEmptyRoom(t *testing.T) {
	h := NewHub()
	conn := NewConnection("user1", "doctor", "", nil)
	h.Register(conn)
	h.Join(ChatRoomKey("room1"), conn)
	assert.Len(t, h.MembersOf(ChatRoomKey("room1")), 1)

	h.Leave(ChatRoomKey("room1"), conn)
	assert.Empty(t, h.MembersOf(ChatRoomKey("room1")))

	// broadcasting into the gone room is a no-op
	h.Broadcast(ChatRoomKey("room1"), EventChatNewMessage, nil, "")
	assertNoFrame(t, conn)
}

func TestSendToUser(t *testing.T) {
	h := NewHub()
	conn := NewConnection("user1", "patient", "", nil)
	h.Register(conn)

	assert.True(t, h.SendToUser("user1", EventNewNotification, map[string]string{"title": "hello"}))
	f := drainFrame(t, conn)
	assert.Equal(t, EventNewNotification, f.Event)

	assert.False(t, h.SendToUser("nobody", EventNewNotification, nil))
}

func TestUnicastUnknownConnection(t *testing.T) {
	h := NewHub()
	err := h.Unicast("does-not-exist", EventChatError, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestMembersOfReportsIdentity(t *testing.T) {
	h := NewHub()
	conn := NewConnection("doc1", "doctor", "Dr Smith", nil)
	h.Register(conn)
	h.Join(CallRoomKey("call1"), conn)

	members := h.MembersOf(CallRoomKey("call1"))
	assert.Len(t, members, 1)
	assert.Equal(t, "doc1", members[0].UserID)
	assert.Equal(t, "doctor", members[0].Role)
	assert.Equal(t, conn.ID, members[0].ConnectionID)
}

func TestBroadcastAllReachesEveryConnection(t *testing.T) {
	h := NewHub()
	one := NewConnection("user1", "doctor", "", nil)
	two := NewConnection("user2", "patient", "", nil)
	h.Register(one)
	h.Register(two)

	h.BroadcastAll(EventChatUserOnline, map[string]string{"userId": "user3"}, "")

	drainFrame(t, one)
	drainFrame(t, two)
}
