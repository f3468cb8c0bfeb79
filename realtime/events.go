package realtime

import "strings"

// Client -> server events.
const (
	EventChatJoinRoom       = "chat:join-room"
	EventChatLeaveRoom      = "chat:leave-room"
	EventChatSendMessage    = "chat:send-message"
	EventChatTypingStart    = "chat:typing-start"
	EventChatTypingStop     = "chat:typing-stop"
	EventChatMarkRead       = "chat:mark-message-read"
	EventChatUploadProgress = "chat:file-upload-progress"

	EventVideoJoinRoom         = "video:join-room"
	EventVideoLeaveRoom        = "video:leave-room"
	EventVideoOffer            = "video:offer"
	EventVideoAnswer           = "video:answer"
	EventVideoICECandidate     = "video:ice-candidate"
	EventVideoToggleAudio      = "video:toggle-audio"
	EventVideoToggleVideo      = "video:toggle-video"
	EventVideoStartScreenShare = "video:start-screen-share"
	EventVideoStopScreenShare  = "video:stop-screen-share"
	EventVideoQuality          = "video:connection-quality"
)

// Server -> client events.
const (
	EventChatNewMessage    = "chat:new-message"
	EventChatUserOnline    = "chat:user-online"
	EventChatUserOffline   = "chat:user-offline"
	EventChatUserTyping    = "chat:user-typing"
	EventChatStoppedTyping = "chat:stopped-typing"
	EventChatMessagesRead  = "chat:messages-read"
	EventChatRoomJoined    = "chat:room-joined"
	EventChatError         = "chat:error"

	EventVideoParticipantJoined = "video:participant-joined"
	EventVideoParticipantLeft   = "video:participant-left"
	EventVideoRoomParticipants  = "video:room-participants"

	EventNewNotification      = "new_notification"
	EventNotificationRead     = "notification_read_update"
	EventAllNotificationsRead = "all_notifications_read_update"
	EventIncomingVideoCall    = "incoming_video_call"
	EventVideoCallInitiated   = "video_call_initiated"
	EventVideoCallEnded       = "video_call_ended"
)

// Frame is the wire envelope for every websocket event in either direction.
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Room key construction. Chat room keys derive from the room document id,
// which is unique per (doctor, patient) pair, so both participants always
// resolve to the same key without a discovery round-trip. Call room keys
// derive from the per-attempt uuid.
const (
	chatRoomPrefix = "chat:"
	callRoomPrefix = "call:"
	userPrefix     = "user:"
	rolePrefix     = "role:"
)

// CallRoomID extracts the call room id from a multiplexer key.
func CallRoomID(key string) (string, bool) {
	return strings.CutPrefix(key, callRoomPrefix)
}

// ChatRoomKey returns the multiplexer key for a chat room id.
func ChatRoomKey(roomID string) string { return chatRoomPrefix + roomID }

// CallRoomKey returns the multiplexer key for a call room id.
func CallRoomKey(roomID string) string { return callRoomPrefix + roomID }

// UserChannel returns the personal channel key for direct pushes.
func UserChannel(userID string) string { return userPrefix + userID }

// RoleChannel returns the role-wide broadcast channel key.
func RoleChannel(role string) string { return rolePrefix + role }
