package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification priorities. High priority notifications fall back to
// email when the recipient is offline.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Domain event types carried by notifications.
const (
	NotificationTypeNewMessage         = "new_message"
	NotificationTypeAppointmentBooked  = "appointment_booked"
	NotificationTypeVideoCallInitiated = "video_call_initiated"
	NotificationTypeVideoCallEnded     = "video_call_ended"
	NotificationTypeVideoCallMissed    = "video_call_missed"
)

// Notification holds the structure for the notifications collection in
// mongo. Mutated only to flip isRead; eligible for cleanup after ExpiresAt.
type Notification struct {
	ID            primitive.ObjectID     `json:"_id" bson:"_id,omitempty"`
	RecipientID   string                 `json:"recipientId" bson:"recipientId"`
	RecipientType string                 `json:"recipientType" bson:"recipientType"`
	SenderID      string                 `json:"senderId,omitempty" bson:"senderId,omitempty"`
	SenderType    string                 `json:"senderType,omitempty" bson:"senderType,omitempty"`
	Type          string                 `json:"type" bson:"type"`
	Title         string                 `json:"title" bson:"title"`
	Message       string                 `json:"message" bson:"message"`
	Data          map[string]interface{} `json:"data,omitempty" bson:"data,omitempty"`
	IsRead        bool                   `json:"isRead" bson:"isRead"`
	Priority      string                 `json:"priority" bson:"priority"`
	ExpiresAt     time.Time              `json:"expiresAt" bson:"expiresAt"`
	CreatedAt     time.Time              `json:"createdAt" bson:"createdAt"`
}
