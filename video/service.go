// Package video owns the call-session state machine and mirrors live
// sessions into the ephemeral cache so per-frame liveness checks never
// touch the durable store on the happy path.
package video

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Rohith-Das/Med360-sub001/cache"
	"github.com/Rohith-Das/Med360-sub001/databases"
	"github.com/Rohith-Das/Med360-sub001/models"
	"github.com/Rohith-Das/Med360-sub001/realtime"
)

// Lifecycle failure modes surfaced to callers.
var (
	ErrSessionNotFound         = errors.New("video: session not found")
	ErrUnauthorized            = errors.New("video: user is not a participant of this session")
	ErrInvalidAppointmentState = errors.New("video: appointment is not in a confirmed state")
	ErrInvalidTransition       = errors.New("video: session has already ended")
)

// DefaultMirrorTTL bounds how long an orphaned cache mirror can outlive a
// lost end event.
const DefaultMirrorTTL = 2 * time.Hour

// Notifier is the slice of the notification dispatcher the lifecycle
// needs; injected so the service tests without a real dispatcher.
type Notifier interface {
	Dispatch(ctx context.Context, n models.Notification) (bool, error)
}

// Service drives VideoCallSession through waiting -> active -> ended.
type Service struct {
	Sessions     databases.VideoSessionDatabase
	Appointments databases.AppointmentDatabase
	Cache        *cache.BestEffort
	Broadcast    realtime.Broadcaster
	Presence     realtime.Presence
	Notifier     Notifier
	MirrorTTL    time.Duration
}

// Initiate creates a waiting session for a confirmed appointment, with a
// fresh room id per attempt, and rings the other participant.
func (s *Service) Initiate(ctx context.Context, appointmentID, initiatorID, initiatorRole string) (*models.VideoCallSession, error) {
	apptID, err := primitive.ObjectIDFromHex(appointmentID)
	if err != nil {
		return nil, ErrInvalidAppointmentState
	}
	appt, err := s.Appointments.FindOne(ctx, bson.M{"_id": apptID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidAppointmentState
		}
		return nil, err
	}
	if appt.Status != models.AppointmentStatusConfirmed {
		return nil, ErrInvalidAppointmentState
	}
	if initiatorID != appt.DoctorID && initiatorID != appt.PatientID {
		return nil, ErrUnauthorized
	}

	now := time.Now().UTC()
	session := models.VideoCallSession{
		RoomID:        uuid.NewString(),
		AppointmentID: appointmentID,
		DoctorID:      appt.DoctorID,
		PatientID:     appt.PatientID,
		Status:        models.SessionStatusWaiting,
		InitiatedBy:   initiatorRole,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	res, err := s.Sessions.InsertOne(ctx, session)
	if err != nil {
		return nil, err
	}
	if id, ok := res.Decode().(primitive.ObjectID); ok {
		session.ID = id
	}
	s.mirror(ctx, &session)

	callee := session.OtherParticipant(initiatorID)
	calleeRole := models.OtherRole(initiatorRole)
	ringing := map[string]interface{}{
		"roomId":        session.RoomID,
		"appointmentId": appointmentID,
		"initiatorId":   initiatorID,
		"initiatorRole": initiatorRole,
	}
	s.Broadcast.SendToUser(callee, realtime.EventIncomingVideoCall, ringing)
	s.Broadcast.SendToUser(initiatorID, realtime.EventVideoCallInitiated, ringing)

	if s.Notifier != nil {
		_, err := s.Notifier.Dispatch(ctx, models.Notification{
			RecipientID:   callee,
			RecipientType: calleeRole,
			SenderID:      initiatorID,
			SenderType:    initiatorRole,
			Type:          models.NotificationTypeVideoCallInitiated,
			Title:         "Incoming video call",
			Message:       "You have an incoming video consultation",
			Data:          ringing,
			Priority:      models.PriorityHigh,
		})
		if err != nil {
			zap.S().Warnw("failed to dispatch call notification", "roomId", session.RoomID, "error", err)
		}
	}
	return &session, nil
}

// Join validates the participant and moves a waiting session to active.
// Joining an ended session is rejected; both peers joining concurrently
// is fine because only the first transition stamps startedAt.
func (s *Service) Join(ctx context.Context, roomID, userID string) (*models.VideoCallSession, error) {
	session, err := s.byRoomID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !session.HasParticipant(userID) {
		return nil, ErrUnauthorized
	}
	if session.Status == models.SessionStatusEnded {
		return nil, ErrInvalidTransition
	}

	if session.Status == models.SessionStatusWaiting {
		now := time.Now().UTC()
		_, err := s.Sessions.UpdateOne(ctx,
			bson.M{"roomId": roomID, "status": models.SessionStatusWaiting},
			bson.M{"$set": bson.M{"status": models.SessionStatusActive, "startedAt": now, "updatedAt": now}},
		)
		if err != nil {
			return nil, err
		}
		// Re-read rather than patch locally: a racing join may have won.
		session, err = s.byRoomID(ctx, roomID)
		if err != nil {
			return nil, err
		}
	}
	s.mirror(ctx, session)
	return session, nil
}

// End moves the session to its terminal state, computes the duration and
// tells everyone. Racing end calls are tolerated: ending an already-ended
// session is a no-op success returning the stored terminal state.
func (s *Service) End(ctx context.Context, roomID, enderID string) (*models.VideoCallSession, error) {
	session, err := s.byRoomID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !session.HasParticipant(enderID) {
		return nil, ErrUnauthorized
	}
	if session.Status == models.SessionStatusEnded {
		return session, nil
	}

	now := time.Now().UTC()
	var duration int64
	if session.StartedAt != nil {
		duration = int64(now.Sub(*session.StartedAt).Seconds())
	}
	_, err = s.Sessions.UpdateOne(ctx,
		bson.M{"roomId": roomID, "status": bson.M{"$ne": models.SessionStatusEnded}},
		bson.M{"$set": bson.M{
			"status":          models.SessionStatusEnded,
			"endedAt":         now,
			"durationSeconds": duration,
			"updatedAt":       now,
		}},
	)
	if err != nil {
		return nil, err
	}
	session.Status = models.SessionStatusEnded
	session.EndedAt = &now
	session.DurationSeconds = duration
	session.UpdatedAt = now

	s.Cache.Del(ctx, mirrorKey(roomID))
	ended := map[string]interface{}{"roomId": roomID, "durationSeconds": duration, "endedBy": enderID}
	s.Broadcast.Broadcast(realtime.CallRoomKey(roomID), realtime.EventVideoCallEnded, ended, "")

	other := session.OtherParticipant(enderID)
	s.Broadcast.SendToUser(other, realtime.EventVideoCallEnded, ended)
	if s.Notifier != nil {
		_, err := s.Notifier.Dispatch(ctx, models.Notification{
			RecipientID:   other,
			RecipientType: roleOf(session, other),
			SenderID:      enderID,
			SenderType:    roleOf(session, enderID),
			Type:          models.NotificationTypeVideoCallEnded,
			Title:         "Video call ended",
			Message:       "Your video consultation has ended",
			Data:          ended,
			Priority:      models.PriorityLow,
		})
		if err != nil {
			zap.S().Warnw("failed to dispatch call-ended notification", "roomId", roomID, "error", err)
		}
	}
	return session, nil
}

// Get returns the session for a room id.
func (s *Service) Get(ctx context.Context, roomID string) (*models.VideoCallSession, error) {
	return s.byRoomID(ctx, roomID)
}

// Live reports whether the session is still accepting signaling. The
// cache answers on the happy path; a miss falls back to the store. A
// store failure degrades to "unknown" and the error lets the caller
// decide whether to relay anyway.
func (s *Service) Live(ctx context.Context, roomID string) (bool, error) {
	if raw, ok := s.Cache.Get(ctx, mirrorKey(roomID)); ok {
		var mirrored models.VideoCallSession
		if err := json.Unmarshal([]byte(raw), &mirrored); err == nil {
			return mirrored.Status != models.SessionStatusEnded, nil
		}
	}
	session, err := s.byRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	s.mirror(ctx, session)
	return session.Status != models.SessionStatusEnded, nil
}

// Participant reports whether userID belongs to the session, used by the
// gateway before letting a connection into a call room.
func (s *Service) Participant(ctx context.Context, roomID, userID string) (bool, error) {
	session, err := s.byRoomID(ctx, roomID)
	if err != nil {
		return false, err
	}
	return session.HasParticipant(userID), nil
}

func (s *Service) byRoomID(ctx context.Context, roomID string) (*models.VideoCallSession, error) {
	session, err := s.Sessions.FindOne(ctx, bson.M{"roomId": roomID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *Service) mirror(ctx context.Context, session *models.VideoCallSession) {
	raw, err := json.Marshal(session)
	if err != nil {
		return
	}
	ttl := s.MirrorTTL
	if ttl <= 0 {
		ttl = DefaultMirrorTTL
	}
	s.Cache.Set(ctx, mirrorKey(session.RoomID), string(raw), ttl)
}

func roleOf(session *models.VideoCallSession, userID string) string {
	if userID == session.DoctorID {
		return models.RoleDoctor
	}
	return models.RolePatient
}

func mirrorKey(roomID string) string {
	return "video:session:" + roomID
}
