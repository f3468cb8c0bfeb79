package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Participant roles. Every authenticated identity in the realtime core
// carries exactly one of these.
const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
	RoleAdmin   = "admin"
)

// OtherRole returns the opposite side of a doctor/patient conversation.
func OtherRole(role string) string {
	if role == RoleDoctor {
		return RolePatient
	}
	return RoleDoctor
}

// ChatRoom holds the structure for the chatrooms collection in mongo.
// A room is unique per (doctorID, patientID) pair and is created lazily
// on first contact, never duplicated and never hard-deleted.
type ChatRoom struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	DoctorID    string             `json:"doctorId" bson:"doctorId"`
	PatientID   string             `json:"patientId" bson:"patientId"`
	LastMessage *LastMessage       `json:"lastMessage,omitempty" bson:"lastMessage,omitempty"`
	IsActive    bool               `json:"isActive" bson:"isActive"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// LastMessage is the denormalized summary of the most recent message,
// kept on the room so list views never need a second query.
type LastMessage struct {
	Text       string    `json:"text" bson:"text"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	SenderRole string    `json:"senderRole" bson:"senderRole"`
}

// ParticipantID returns the user id for the given role in this room.
func (c ChatRoom) ParticipantID(role string) string {
	if role == RoleDoctor {
		return c.DoctorID
	}
	return c.PatientID
}

// HasParticipant reports whether userID is one of the two room members.
func (c ChatRoom) HasParticipant(userID string) bool {
	return userID == c.DoctorID || userID == c.PatientID
}

// ChatRoomSummary is a room plus its unread count, computed at read time.
type ChatRoomSummary struct {
	ChatRoom    `bson:",inline"`
	UnreadCount int64 `json:"unreadCount" bson:"unreadCount"`
}
