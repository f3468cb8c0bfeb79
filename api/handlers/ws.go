package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Rohith-Das/Med360-sub001/api"
	"github.com/Rohith-Das/Med360-sub001/chat"
	"github.com/Rohith-Das/Med360-sub001/models"
	"github.com/Rohith-Das/Med360-sub001/realtime"
	"github.com/Rohith-Das/Med360-sub001/video"
)

const pongWait = 60 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // collaborator frontends run on their own origins
	},
}

// Gateway owns the websocket endpoint: it authenticates the handshake,
// registers the connection with the hub and pumps inbound frames into
// the chat and video services.
type Gateway struct {
	Auth   api.Auth
	Hub    *realtime.Hub
	Chat   *chat.Service
	Video  *video.Service
	Typing *realtime.TypingRegistry
}

// inboundFrame defers data decoding until the event is known
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServeWS upgrades the connection after verifying the bearer token.
// Auth happens before the upgrade so an invalid token costs a plain 401,
// not a socket.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	claims, err := g.Auth.Authenticate(r.URL.Query().Get("token"))
	if err != nil {
		zap.S().Warnw("websocket handshake rejected", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "unauthorized"}`))
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade failed", "error", err)
		return
	}

	conn := realtime.NewConnection(claims.UserID, claims.Role, claims.Name, ws)
	g.Hub.Register(conn)
	g.Hub.Join(realtime.UserChannel(claims.UserID), conn)
	g.Hub.Join(realtime.RoleChannel(claims.Role), conn)
	conn.Start()

	g.Hub.BroadcastAll(realtime.EventChatUserOnline, map[string]interface{}{
		"userId": claims.UserID,
		"role":   claims.Role,
	}, conn.ID)

	zap.S().Infow("websocket connected", "userId", claims.UserID, "role", claims.Role, "connId", conn.ID)

	go g.readLoop(conn, ws)
}

func (g *Gateway) readLoop(conn *realtime.Connection, ws *websocket.Conn) {
	defer g.disconnect(conn)

	ws.SetReadLimit(64 << 10)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.S().Debugw("websocket read error", "userId", conn.UserID, "error", err)
			}
			return
		}
		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			g.sendError(conn, "malformed frame")
			continue
		}
		g.dispatch(conn, frame)
	}
}

// dispatch routes one inbound frame. Handler failures answer the sender
// on chat:error and never tear down the connection.
func (g *Gateway) dispatch(conn *realtime.Connection, frame inboundFrame) {
	ctx, cancel := api.WithQueryTimeout(context.Background())
	defer cancel()

	switch frame.Event {
	case realtime.EventChatJoinRoom:
		g.chatJoin(ctx, conn, frame.Data)
	case realtime.EventChatLeaveRoom:
		var data struct {
			RoomID string `json:"roomId"`
		}
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			g.sendError(conn, "malformed frame")
			return
		}
		g.Hub.Leave(realtime.ChatRoomKey(data.RoomID), conn)
		g.Typing.Stop(data.RoomID, conn.UserID, conn.ID)
	case realtime.EventChatSendMessage:
		g.chatSend(ctx, conn, frame.Data)
	case realtime.EventChatTypingStart:
		var data struct {
			RoomID string `json:"roomId"`
		}
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			g.sendError(conn, "malformed frame")
			return
		}
		g.Typing.Start(data.RoomID, conn.UserID, conn.ID)
	case realtime.EventChatTypingStop:
		var data struct {
			RoomID string `json:"roomId"`
		}
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			g.sendError(conn, "malformed frame")
			return
		}
		g.Typing.Stop(data.RoomID, conn.UserID, conn.ID)
	case realtime.EventChatMarkRead:
		g.chatMarkRead(ctx, conn, frame.Data)
	case realtime.EventChatUploadProgress:
		var data struct {
			RoomID string `json:"roomId"`
		}
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			g.sendError(conn, "malformed frame")
			return
		}
		g.Hub.Broadcast(realtime.ChatRoomKey(data.RoomID), realtime.EventChatUploadProgress, json.RawMessage(frame.Data), conn.ID)
	case realtime.EventVideoJoinRoom:
		g.videoJoin(ctx, conn, frame.Data)
	case realtime.EventVideoLeaveRoom:
		var data struct {
			RoomID string `json:"roomId"`
		}
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			g.sendError(conn, "malformed frame")
			return
		}
		g.leaveCallRoom(conn, data.RoomID)
	case realtime.EventVideoOffer, realtime.EventVideoAnswer, realtime.EventVideoICECandidate,
		realtime.EventVideoToggleAudio, realtime.EventVideoToggleVideo,
		realtime.EventVideoStartScreenShare, realtime.EventVideoStopScreenShare:
		g.videoRelay(ctx, conn, frame.Event, frame.Data)
	case realtime.EventVideoQuality:
		// diagnostic only, never relayed
		zap.S().Infow("connection quality report", "userId", conn.UserID, "report", string(frame.Data))
	default:
		g.sendError(conn, "unknown event: "+frame.Event)
	}
}

func (g *Gateway) chatJoin(ctx context.Context, conn *realtime.Connection, raw json.RawMessage) {
	var data struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		g.sendError(conn, "malformed frame")
		return
	}
	if _, err := g.Chat.Room(ctx, data.RoomID, conn.UserID); err != nil {
		g.sendError(conn, "cannot join room: "+err.Error())
		return
	}
	g.Hub.Join(realtime.ChatRoomKey(data.RoomID), conn)
	_ = g.Hub.Unicast(conn.ID, realtime.EventChatRoomJoined, map[string]interface{}{
		"roomId": data.RoomID,
	})
}

func (g *Gateway) chatSend(ctx context.Context, conn *realtime.Connection, raw json.RawMessage) {
	var data struct {
		RoomID      string           `json:"roomId"`
		Message     string           `json:"message"`
		MessageType string           `json:"messageType"`
		File        *models.FileMeta `json:"file,omitempty"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		g.sendError(conn, "malformed frame")
		return
	}
	msg, err := g.Chat.SendMessage(ctx, chat.SendMessageInput{
		RoomID:      data.RoomID,
		SenderID:    conn.UserID,
		SenderRole:  conn.Role,
		Body:        data.Message,
		MessageType: data.MessageType,
		File:        data.File,
	})
	if err != nil {
		g.sendError(conn, "failed to send message: "+err.Error())
		return
	}
	// echo the stored message so the sender learns its id and status.
	// The recipient's copy is pushed on their personal channel by the
	// service; broadcasting here as well would deliver it twice.
	_ = g.Hub.Unicast(conn.ID, realtime.EventChatNewMessage, msg)
}

func (g *Gateway) chatMarkRead(ctx context.Context, conn *realtime.Connection, raw json.RawMessage) {
	var data struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		g.sendError(conn, "malformed frame")
		return
	}
	if _, err := g.Chat.MarkRead(ctx, data.RoomID, conn.UserID, conn.Role); err != nil {
		g.sendError(conn, "failed to mark messages read: "+err.Error())
	}
}

func (g *Gateway) videoJoin(ctx context.Context, conn *realtime.Connection, raw json.RawMessage) {
	var data struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		g.sendError(conn, "malformed frame")
		return
	}
	ok, err := g.Video.Participant(ctx, data.RoomID, conn.UserID)
	if err != nil || !ok {
		g.sendError(conn, "cannot join call room")
		return
	}
	live, err := g.Video.Live(ctx, data.RoomID)
	if err != nil || !live {
		g.sendError(conn, "call has ended")
		return
	}

	roomKey := realtime.CallRoomKey(data.RoomID)
	g.Hub.Join(roomKey, conn)
	g.Hub.Broadcast(roomKey, realtime.EventVideoParticipantJoined, map[string]interface{}{
		"roomId": data.RoomID,
		"userId": conn.UserID,
		"role":   conn.Role,
		"name":   conn.Name,
	}, conn.ID)
	_ = g.Hub.Unicast(conn.ID, realtime.EventVideoRoomParticipants, map[string]interface{}{
		"roomId":       data.RoomID,
		"participants": g.Hub.MembersOf(roomKey),
	})
}

// videoRelay forwards a signaling frame untouched, after confirming the
// session is still live. A frame naming a targetConnectionId goes to
// that connection alone; the room broadcast is the fallback for the
// first offer, sent before the peers have exchanged connection ids.
func (g *Gateway) videoRelay(ctx context.Context, conn *realtime.Connection, event string, raw json.RawMessage) {
	var data struct {
		RoomID             string `json:"roomId"`
		TargetConnectionID string `json:"targetConnectionId"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		g.sendError(conn, "malformed frame")
		return
	}
	live, err := g.Video.Live(ctx, data.RoomID)
	if err != nil {
		// liveness unknown, relay anyway rather than stall the call
		zap.S().Warnw("liveness check failed, relaying", "roomId", data.RoomID, "error", err)
	} else if !live {
		g.sendError(conn, "call has ended")
		return
	}
	if data.TargetConnectionID != "" {
		if err := g.Hub.Unicast(data.TargetConnectionID, event, json.RawMessage(raw)); err != nil {
			g.sendError(conn, "signaling peer is gone")
		}
		return
	}
	g.Hub.Broadcast(realtime.CallRoomKey(data.RoomID), event, json.RawMessage(raw), conn.ID)
}

func (g *Gateway) leaveCallRoom(conn *realtime.Connection, roomID string) {
	roomKey := realtime.CallRoomKey(roomID)
	g.Hub.Leave(roomKey, conn)
	g.Hub.Broadcast(roomKey, realtime.EventVideoParticipantLeft, map[string]interface{}{
		"roomId": roomID,
		"userId": conn.UserID,
	}, conn.ID)
}

// disconnect tears the connection down and tells every room it was in.
func (g *Gateway) disconnect(conn *realtime.Connection) {
	conn.Close(websocket.CloseNormalClosure, "")
	rooms := g.Hub.Unregister(conn)
	g.Typing.ClearUser(conn.UserID)

	for _, roomKey := range rooms {
		if roomID, ok := realtime.CallRoomID(roomKey); ok {
			g.Hub.Broadcast(roomKey, realtime.EventVideoParticipantLeft, map[string]interface{}{
				"roomId": roomID,
				"userId": conn.UserID,
			}, conn.ID)
		}
	}

	if !g.Hub.IsOnline(conn.UserID) {
		g.Hub.BroadcastAll(realtime.EventChatUserOffline, map[string]interface{}{
			"userId": conn.UserID,
			"role":   conn.Role,
		}, conn.ID)
	}
	zap.S().Infow("websocket disconnected", "userId", conn.UserID, "connId", conn.ID)
}

func (g *Gateway) sendError(conn *realtime.Connection, message string) {
	_ = g.Hub.Unicast(conn.ID, realtime.EventChatError, map[string]interface{}{
		"message": message,
	})
}
