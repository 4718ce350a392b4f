package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message status lifecycle. The only transition the read path produces is
// sent -> seen on direct chats; delivered is declared for wire compatibility
// but no code path currently sets it.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusSeen      = "seen"
)

const (
	AttachmentKindImage = "image"
	AttachmentKindFile  = "file"
	AttachmentKindLink  = "link"
)

// Message is a chat message document (MongoDB). Attachments are embedded and
// appended as their uploads finish, so a freshly sent message may be visible
// before its attachment list is complete.
type Message struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ChatID      uint               `json:"chat_id" bson:"chat_id"`
	SenderID    uint               `json:"sender_id" bson:"sender_id"`
	Content     string             `json:"content,omitempty" bson:"content,omitempty"`
	Status      string             `json:"status" bson:"status"`
	Attachments []Attachment       `json:"attachments" bson:"attachments"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	DeletedAt   *time.Time         `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
}

// Attachment is owned by exactly one message and immutable once appended.
type Attachment struct {
	ID       string `json:"id" bson:"id"`
	Kind     string `json:"kind" bson:"kind"`
	Name     string `json:"name" bson:"name"`
	URL      string `json:"url" bson:"url"`
	Size     int64  `json:"size,omitempty" bson:"size,omitempty"`
	MimeType string `json:"mime_type,omitempty" bson:"mime_type,omitempty"`
}

// MessageView is a message annotated with a sender projection for listings.
type MessageView struct {
	Message
	Sender UserSummary `json:"sender"`
}
