package realtime

import (
	"fmt"

	"github.com/studylink/backend/internal/models"
)

// Event types fanned out over the hub. Delivery is at-most-once and
// fire-and-forget: an unreachable room is a no-op, never an error.
const (
	EventFriendRequestCreated  = "friend_request_created"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventMessageReceived       = "message_received"
	EventChatRead              = "chat_read"
	EventTyping                = "typing"
	EventStopTyping            = "stop_typing"
)

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Emitter is the fan-out surface handed to the repositories and handlers. The
// Hub implements it; tests substitute a recording fake.
type Emitter interface {
	ToUser(userID uint, event Event)
	ToChat(chatID uint, event Event)
	ToChatExcept(chatID, exceptUserID uint, event Event)
}

type FriendRequestPayload struct {
	RequestID  uint `json:"request_id"`
	SenderID   uint `json:"sender_id"`
	ReceiverID uint `json:"receiver_id"`
}

type ChatReadPayload struct {
	ChatID   uint `json:"chat_id"`
	ReaderID uint `json:"reader_id"`
}

type TypingPayload struct {
	ChatID uint `json:"chat_id"`
	UserID uint `json:"user_id"`
}

// MessagePayload carries the materialized message; the sender projection is
// filled by the message handler before emission.
type MessagePayload struct {
	ChatID  uint               `json:"chat_id"`
	Message models.MessageView `json:"message"`
}

func userRoom(id uint) string { return fmt.Sprintf("user:%d", id) }
func chatRoom(id uint) string { return fmt.Sprintf("chat:%d", id) }
