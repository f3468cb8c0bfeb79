package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message content types.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// Delivery status progression for a chat message.
const (
	MessageStatusSending   = "sending"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusSeen      = "seen"
	MessageStatusFailed    = "failed"
)

// ChatMessage holds the structure for the chatmessages collection in mongo.
// Immutable once persisted except for read-state and status transitions.
type ChatMessage struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	ChatRoomID  primitive.ObjectID `json:"chatRoomId" bson:"chatRoomId"`
	SenderID    string             `json:"senderId" bson:"senderId"`
	SenderType  string             `json:"senderType" bson:"senderType"`
	Message     string             `json:"message" bson:"message"`
	MessageType string             `json:"messageType" bson:"messageType"`
	FileURL     string             `json:"fileUrl,omitempty" bson:"fileUrl,omitempty"`
	FileName    string             `json:"fileName,omitempty" bson:"fileName,omitempty"`
	FileSize    int64              `json:"fileSize,omitempty" bson:"fileSize,omitempty"`
	IsRead      bool               `json:"isRead" bson:"isRead"`
	ReadBy      ReadBy             `json:"readBy" bson:"readBy"`
	Status      string             `json:"status" bson:"status"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// ReadBy stamps when each side of the conversation read the message.
type ReadBy struct {
	Doctor  *time.Time `json:"doctor,omitempty" bson:"doctor,omitempty"`
	Patient *time.Time `json:"patient,omitempty" bson:"patient,omitempty"`
}

// FileMeta is the optional attachment metadata supplied on send.
type FileMeta struct {
	URL  string `json:"fileUrl"`
	Name string `json:"fileName"`
	Size int64  `json:"fileSize"`
}
