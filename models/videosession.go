package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Video call session states. Transitions are monotonic:
// waiting -> active -> ended, or waiting -> ended when the caller
// cancels before anyone joins. There is no way out of ended.
const (
	SessionStatusWaiting = "waiting"
	SessionStatusActive  = "active"
	SessionStatusEnded   = "ended"
)

// VideoCallSession holds the structure for the videocallsessions
// collection in mongo. RoomID is a fresh uuid per call attempt so a
// retry never receives stale signaling from a failed attempt.
type VideoCallSession struct {
	ID              primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	RoomID          string             `json:"roomId" bson:"roomId"`
	AppointmentID   string             `json:"appointmentId" bson:"appointmentId"`
	DoctorID        string             `json:"doctorId" bson:"doctorId"`
	PatientID       string             `json:"patientId" bson:"patientId"`
	Status          string             `json:"status" bson:"status"`
	InitiatedBy     string             `json:"initiatedBy" bson:"initiatedBy"`
	StartedAt       *time.Time         `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	EndedAt         *time.Time         `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
	DurationSeconds int64              `json:"durationSeconds" bson:"durationSeconds"`
	CreatedAt       time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// HasParticipant reports whether userID is one of the two call parties.
func (s VideoCallSession) HasParticipant(userID string) bool {
	return userID == s.DoctorID || userID == s.PatientID
}

// OtherParticipant returns the user id of the peer of userID.
func (s VideoCallSession) OtherParticipant(userID string) string {
	if userID == s.DoctorID {
		return s.PatientID
	}
	return s.DoctorID
}
