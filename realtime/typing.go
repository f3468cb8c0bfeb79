package realtime

import (
	"sync"
	"time"
)

// DefaultTypingTTL is how long a typing flag survives without a refresh.
const DefaultTypingTTL = 4 * time.Second

// TypingRegistry is a single scheduled-expiry mechanism for typing
// indicators, keyed by (room, user). A flag set by a peer clears itself
// after the TTL unless refreshed or explicitly stopped, so timers never
// leak under high message volume.
type TypingRegistry struct {
	b   Broadcaster
	ttl time.Duration

	mu     sync.Mutex
	timers map[typingKey]*time.Timer
}

type typingKey struct {
	roomID string
	userID string
}

// NewTypingRegistry constructs a registry broadcasting through b. A ttl
// of zero falls back to DefaultTypingTTL.
func NewTypingRegistry(b Broadcaster, ttl time.Duration) *TypingRegistry {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingRegistry{
		b:      b,
		ttl:    ttl,
		timers: make(map[typingKey]*time.Timer),
	}
}

// Start marks the user as typing in the chat room, broadcasting to the
// other members and scheduling (or resetting) the expiry.
func (t *TypingRegistry) Start(roomID, userID, excludeConnID string) {
	key := typingKey{roomID: roomID, userID: userID}

	t.mu.Lock()
	if timer, ok := t.timers[key]; ok {
		// Refresh; the flag is already announced.
		timer.Reset(t.ttl)
		t.mu.Unlock()
		return
	}
	t.timers[key] = time.AfterFunc(t.ttl, func() {
		t.expire(key)
	})
	t.mu.Unlock()

	t.b.Broadcast(ChatRoomKey(roomID), EventChatUserTyping, typingEvent{RoomID: roomID, UserID: userID}, excludeConnID)
}

// Stop clears the flag immediately and announces it.
func (t *TypingRegistry) Stop(roomID, userID, excludeConnID string) {
	key := typingKey{roomID: roomID, userID: userID}

	t.mu.Lock()
	timer, ok := t.timers[key]
	if ok {
		timer.Stop()
		delete(t.timers, key)
	}
	t.mu.Unlock()

	if ok {
		t.b.Broadcast(ChatRoomKey(roomID), EventChatStoppedTyping, typingEvent{RoomID: roomID, UserID: userID}, excludeConnID)
	}
}

// ClearUser cancels every pending flag for the user, announcing each.
// Called on disconnect.
func (t *TypingRegistry) ClearUser(userID string) {
	t.mu.Lock()
	var cleared []typingKey
	for key, timer := range t.timers {
		if key.userID == userID {
			timer.Stop()
			delete(t.timers, key)
			cleared = append(cleared, key)
		}
	}
	t.mu.Unlock()

	for _, key := range cleared {
		t.b.Broadcast(ChatRoomKey(key.roomID), EventChatStoppedTyping, typingEvent{RoomID: key.roomID, UserID: key.userID}, "")
	}
}

func (t *TypingRegistry) expire(key typingKey) {
	t.mu.Lock()
	_, ok := t.timers[key]
	if ok {
		delete(t.timers, key)
	}
	t.mu.Unlock()

	if ok {
		t.b.Broadcast(ChatRoomKey(key.roomID), EventChatStoppedTyping, typingEvent{RoomID: key.roomID, UserID: key.userID}, "")
	}
}

type typingEvent struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}
