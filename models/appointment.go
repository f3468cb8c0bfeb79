package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Appointment statuses as written by the scheduling collaborator.
const (
	AppointmentStatusPending   = "pending"
	AppointmentStatusConfirmed = "confirmed"
	AppointmentStatusCompleted = "completed"
	AppointmentStatusCancelled = "cancelled"
)

// Appointment is a read model over the appointments collection.
// The scheduling collaborator owns this document; the realtime core
// only consults it for eligibility checks (may these two users chat,
// may this call be initiated).
type Appointment struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	DoctorID  string             `json:"doctorId" bson:"doctorId"`
	PatientID string             `json:"patientId" bson:"patientId"`
	Status    string             `json:"status" bson:"status"`
	StartTime time.Time          `json:"startTime" bson:"startTime"`
	EndTime   time.Time          `json:"endTime" bson:"endTime"`
}
