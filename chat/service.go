// Package chat implements the messaging pipeline: room eligibility,
// message persistence, read state and unread counts. Live delivery is
// best-effort through the injected Broadcaster; the durable write always
// wins.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Rohith-Das/Med360-sub001/cache"
	"github.com/Rohith-Das/Med360-sub001/databases"
	"github.com/Rohith-Das/Med360-sub001/models"
	"github.com/Rohith-Das/Med360-sub001/realtime"
)

// Pipeline failure modes surfaced to callers.
var (
	ErrRoomNotFound = errors.New("chat: room not found")
	ErrChatExpired  = errors.New("chat: room is no longer active")
	ErrUnauthorized = errors.New("chat: user is not a participant of this room")
	ErrNotEligible  = errors.New("chat: no qualifying appointment between these users")
)

const roomListCacheTTL = 30 * time.Second

// roomListKey is the cache key for a user's first page of rooms. One key
// per (user, role) so writes can invalidate it without knowing the
// caller's page size.
func roomListKey(userID, role string) string {
	return fmt.Sprintf("chat:rooms:%s:%s", userID, role)
}

// Service owns the messaging pipeline. All storage access goes through
// the injected database interfaces; live delivery through Broadcast and
// Presence so the service stays testable without a transport.
type Service struct {
	Rooms        databases.ChatRoomDatabase
	Messages     databases.ChatMessageDatabase
	Appointments databases.AppointmentDatabase
	Broadcast    realtime.Broadcaster
	Presence     realtime.Presence
	Cache        *cache.BestEffort
}

// SendMessageInput carries one message through the pipeline.
type SendMessageInput struct {
	RoomID      string
	SenderID    string
	SenderRole  string
	Body        string
	MessageType string
	File        *models.FileMeta
}

// FindOrCreateRoom resolves the unique room for a (doctor, patient) pair,
// creating it on first contact. Creation is gated on a qualifying
// appointment; this core must not be able to fabricate a conversation
// between unrelated parties.
func (s *Service) FindOrCreateRoom(ctx context.Context, doctorID, patientID string) (*models.ChatRoom, bool, error) {
	filter := bson.M{"doctorId": doctorID, "patientId": patientID}
	room, err := s.Rooms.FindOne(ctx, filter)
	if err == nil {
		return room, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	eligible, err := s.Appointments.CountDocuments(ctx, bson.M{
		"doctorId":  doctorID,
		"patientId": patientID,
		"status":    bson.M{"$in": []string{models.AppointmentStatusConfirmed, models.AppointmentStatusCompleted}},
	})
	if err != nil {
		return nil, false, err
	}
	if eligible == 0 {
		return nil, false, ErrNotEligible
	}

	now := time.Now().UTC()
	newRoom := models.ChatRoom{
		DoctorID:  doctorID,
		PatientID: patientID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	res, err := s.Rooms.InsertOne(ctx, newRoom)
	if err != nil {
		// A concurrent first-contact attempt may have won the unique
		// index race; the pair lookup is the source of truth either way.
		if room, findErr := s.Rooms.FindOne(ctx, filter); findErr == nil {
			return room, false, nil
		}
		return nil, false, err
	}
	if id, ok := res.Decode().(primitive.ObjectID); ok {
		newRoom.ID = id
	}
	return &newRoom, true, nil
}

// Room fetches a room by id, enforcing that userID is a participant.
func (s *Service) Room(ctx context.Context, roomID, userID string) (*models.ChatRoom, error) {
	room, err := s.roomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(userID) {
		return nil, ErrUnauthorized
	}
	return room, nil
}

// SendMessage validates room access, persists the message, updates the
// room summary and relays to the other participant when they are online.
// The returned message carries the server-assigned id and timestamp the
// client reconciles its optimistic copy against.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*models.ChatMessage, error) {
	room, err := s.roomByID(ctx, in.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, ErrChatExpired
	}
	if room.ParticipantID(in.SenderRole) != in.SenderID {
		return nil, ErrUnauthorized
	}

	msgType := in.MessageType
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	now := time.Now().UTC()
	msg := models.ChatMessage{
		ChatRoomID:  room.ID,
		SenderID:    in.SenderID,
		SenderType:  in.SenderRole,
		Message:     in.Body,
		MessageType: msgType,
		Status:      models.MessageStatusSent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.File != nil {
		msg.FileURL = in.File.URL
		msg.FileName = in.File.Name
		msg.FileSize = in.File.Size
	}

	res, err := s.Messages.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}
	if id, ok := res.Decode().(primitive.ObjectID); ok {
		msg.ID = id
	}

	_, err = s.Rooms.UpdateOne(ctx, bson.M{"_id": room.ID}, bson.M{"$set": bson.M{
		"lastMessage": models.LastMessage{Text: in.Body, Timestamp: now, SenderRole: in.SenderRole},
		"updatedAt":   now,
	}})
	if err != nil {
		zap.S().Errorw("failed to update room summary", "roomId", in.RoomID, "error", err)
	}
	s.invalidateRoomLists(ctx, room)

	recipient := room.ParticipantID(models.OtherRole(in.SenderRole))
	if s.Presence.IsOnline(recipient) {
		if s.Broadcast.SendToUser(recipient, realtime.EventChatNewMessage, msg) {
			msg.Status = models.MessageStatusDelivered
			if _, err := s.Messages.UpdateOne(ctx, bson.M{"_id": msg.ID}, bson.M{"$set": bson.M{"status": models.MessageStatusDelivered}}); err != nil {
				zap.S().Warnw("failed to persist delivered status", "messageId", msg.ID.Hex(), "error", err)
			}
		}
	}

	return &msg, nil
}

// MarkRead flips unread messages authored by the other role to seen and
// returns how many changed. Idempotent: a second call with no new
// messages returns 0.
func (s *Service) MarkRead(ctx context.Context, roomID, readerID, readerRole string) (int64, error) {
	room, err := s.roomByID(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if room.ParticipantID(readerRole) != readerID {
		return 0, ErrUnauthorized
	}

	now := time.Now().UTC()
	changed, err := s.Messages.UpdateMany(ctx,
		bson.M{
			"chatRoomId": room.ID,
			"senderType": models.OtherRole(readerRole),
			"isRead":     false,
		},
		bson.M{"$set": bson.M{
			"isRead":             true,
			"status":             models.MessageStatusSeen,
			"readBy." + readerRole: now,
			"updatedAt":          now,
		}},
	)
	if err != nil {
		return 0, err
	}

	if changed > 0 {
		s.invalidateRoomLists(ctx, room)
		other := room.ParticipantID(models.OtherRole(readerRole))
		if s.Presence.IsOnline(other) {
			s.Broadcast.SendToUser(other, realtime.EventChatMessagesRead, map[string]interface{}{
				"roomId":   roomID,
				"readerId": readerID,
				"count":    changed,
			})
		}
	}
	return changed, nil
}

// ListRooms returns the user's rooms ordered by most recent activity,
// each with its unread count computed at read time so the badge never
// drifts from missed decrement events.
func (s *Service) ListRooms(ctx context.Context, userID, role string, limit, page int) ([]models.ChatRoomSummary, error) {
	// Only the first page is cached; deeper pages are rare and cheap to
	// recompute. Writes through SendMessage and MarkRead drop the key, the
	// TTL only bounds staleness from writes this process never saw.
	cacheKey := roomListKey(userID, role)
	if page == 0 {
		if raw, ok := s.Cache.Get(ctx, cacheKey); ok {
			var cached []models.ChatRoomSummary
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	field := "patientId"
	if role == models.RoleDoctor {
		field = "doctorId"
	}
	limit64 := int64(limit)
	skip64 := int64(page * limit)
	sort := bson.D{{Key: "updatedAt", Value: -1}}
	rooms, err := s.Rooms.Find(ctx, bson.M{field: userID}, &options.FindOptions{Limit: &limit64, Skip: &skip64, Sort: sort})
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ChatRoomSummary, 0, len(rooms))
	for _, room := range rooms {
		unread, err := s.Messages.CountDocuments(ctx, bson.M{
			"chatRoomId": room.ID,
			"senderType": models.OtherRole(role),
			"isRead":     false,
		})
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, models.ChatRoomSummary{ChatRoom: room, UnreadCount: unread})
	}

	if page == 0 {
		if raw, err := json.Marshal(summaries); err == nil {
			s.Cache.Set(ctx, cacheKey, string(raw), roomListCacheTTL)
		}
	}
	return summaries, nil
}

// History returns a page of messages in chronological order. Storage is
// queried newest-first so pagination anchors on the most recent N, then
// the page is reversed for the caller.
func (s *Service) History(ctx context.Context, roomID string, limit, page int) ([]models.ChatMessage, error) {
	room, err := s.roomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	limit64 := int64(limit)
	skip64 := int64(page * limit)
	sort := bson.D{{Key: "createdAt", Value: -1}}
	msgs, err := s.Messages.Find(ctx, bson.M{"chatRoomId": room.ID}, &options.FindOptions{Limit: &limit64, Skip: &skip64, Sort: sort})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// invalidateRoomLists drops both participants' cached room lists after a
// write that changes last-message text or unread counts, so the next list
// load reflects it without waiting out the TTL.
func (s *Service) invalidateRoomLists(ctx context.Context, room *models.ChatRoom) {
	s.Cache.Del(ctx,
		roomListKey(room.DoctorID, models.RoleDoctor),
		roomListKey(room.PatientID, models.RolePatient),
	)
}

func (s *Service) roomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	id, err := primitive.ObjectIDFromHex(roomID)
	if err != nil {
		return nil, ErrRoomNotFound
	}
	room, err := s.Rooms.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}
