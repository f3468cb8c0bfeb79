package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordedBroadcast struct {
	roomKey string
	event   string
	exclude string
}

// recordingBroadcaster captures Broadcast calls for assertions.
type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []recordedBroadcast
}

func (r *recordingBroadcaster) Broadcast(roomKey, event string, data interface{}, excludeConnID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedBroadcast{roomKey: roomKey, event: event, exclude: excludeConnID})
}

func (r *recordingBroadcaster) Unicast(connID, event string, data interface{}) error { return nil }

func (r *recordingBroadcaster) SendToUser(userID, event string, data interface{}) bool { return false }

func (r *recordingBroadcaster) snapshot() []recordedBroadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedBroadcast, len(r.calls))
	copy(out, r.calls)
	return out
}

func TestTypingStartBroadcastsOnce(t *testing.T) {
	b := &recordingBroadcaster{}
	reg := NewTypingRegistry(b, time.Minute)

	reg.Start("room1", "user1", "conn1")
	reg.Start("room1", "user1", "conn1") // refresh, already announced

	calls := b.snapshot()
	assert.Len(t, calls, 1)
	assert.Equal(t, ChatRoomKey("room1"), calls[0].roomKey)
	assert.Equal(t, EventChatUserTyping, calls[0].event)
	assert.Equal(t, "conn1", calls[0].exclude)
}

func TestTypingStopAnnouncesAndIsIdempotent(t *testing.T) {
	b := &recordingBroadcaster{}
	reg := NewTypingRegistry(b, time.Minute)

	reg.Start("room1", "user1", "conn1")
	reg.Stop("room1", "user1", "conn1")
	reg.Stop("room1", "user1", "conn1") // no flag left, no second announcement

	calls := b.snapshot()
	assert.Len(t, calls, 2)
	assert.Equal(t, EventChatStoppedTyping, calls[1].event)
}

func TestTypingExpiresAfterTTL(t *testing.T) {
	b := &recordingBroadcaster{}
	reg := NewTypingRegistry(b, 20*time.Millisecond)

	reg.Start("room1", "user1", "conn1")

	assert.Eventually(t, func() bool {
		for _, c := range b.snapshot() {
			if c.event == EventChatStoppedTyping {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestTypingClearUserStopsAllRooms(t *testing.T) {
	b := &recordingBroadcaster{}
	reg := NewTypingRegistry(b, time.Minute)

	reg.Start("room1", "user1", "conn1")
	reg.Start("room2", "user1", "conn1")
	reg.Start("room1", "user2", "conn2")

	reg.ClearUser("user1")

	var stopped []string
	for _, c := range b.snapshot() {
		if c.event == EventChatStoppedTyping {
			stopped = append(stopped, c.roomKey)
		}
	}
	assert.ElementsMatch(t, []string{ChatRoomKey("room1"), ChatRoomKey("room2")}, stopped)

	// user2's flag is untouched; stopping it still announces
	reg.Stop("room1", "user2", "conn2")
	calls := b.snapshot()
	assert.Equal(t, EventChatStoppedTyping, calls[len(calls)-1].event)
}
