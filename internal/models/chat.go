package models

import "gorm.io/gorm"

const (
	ChatKindDirect = "direct"
	ChatKindGroup  = "group"
)

// Chat is a conversation row. Direct chats canonicalize their participant pair
// exactly like Relationship rows so get-or-create collapses to a unique index;
// group chats bind 1:1 to a Group. The unused columns of the other kind stay
// NULL, which keeps both partial unique indexes from colliding.
type Chat struct {
	gorm.Model
	Kind     string `json:"kind" gorm:"type:varchar(10);index"`
	UserLow  *uint  `json:"user_low,omitempty" gorm:"uniqueIndex:idx_direct_pair"`
	UserHigh *uint  `json:"user_high,omitempty" gorm:"uniqueIndex:idx_direct_pair"`
	GroupID  *uint  `json:"group_id,omitempty" gorm:"uniqueIndex:idx_chat_group"`
}

// IsParticipant reports whether userID is one of the two direct participants.
// Always false for group chats; membership is checked against GroupMember rows.
func (c *Chat) IsParticipant(userID uint) bool {
	if c.Kind != ChatKindDirect || c.UserLow == nil || c.UserHigh == nil {
		return false
	}
	return *c.UserLow == userID || *c.UserHigh == userID
}

// OtherParticipant returns the direct-chat counterpart of userID, or 0 when
// userID is not a participant or the chat is a group chat.
func (c *Chat) OtherParticipant(userID uint) uint {
	if c.Kind != ChatKindDirect || c.UserLow == nil || c.UserHigh == nil {
		return 0
	}
	switch userID {
	case *c.UserLow:
		return *c.UserHigh
	case *c.UserHigh:
		return *c.UserLow
	}
	return 0
}

// Group is the external study-group entity chats can bind to. Group management
// itself lives outside the messaging core; only the rows consulted by the
// access checks are modeled here.
type Group struct {
	gorm.Model
	Name    string `json:"name"`
	OwnerID uint   `json:"owner_id" gorm:"index"`
}

const (
	GroupRoleOwner  = "owner"
	GroupRoleAdmin  = "admin"
	GroupRoleMember = "member"
)

// IsActive carries no column default on purpose: a default would make GORM
// omit the zero value false from inserts and persist the row as active.
// Creation sites set the flag explicitly.
type GroupMember struct {
	gorm.Model
	GroupID  uint   `json:"group_id" gorm:"uniqueIndex:idx_group_member"`
	UserID   uint   `json:"user_id" gorm:"uniqueIndex:idx_group_member"`
	Role     string `json:"role" gorm:"type:varchar(10);default:'member'"`
	IsActive bool   `json:"is_active"`
}

// CreateDirectChatPayload defines the request body for opening a direct chat
type CreateDirectChatPayload struct {
	UserID uint `json:"user_id" validate:"required"`
}

// CreateGroupChatPayload defines the request body for opening a group chat
type CreateGroupChatPayload struct {
	GroupID uint `json:"group_id" validate:"required"`
}

// DirectChatSummary annotates a direct chat for the chat list: counterpart
// profile, last message, unread count and the relationship status between the
// two participants (which may be "none" when no relationship row exists).
type DirectChatSummary struct {
	Chat               Chat        `json:"chat"`
	OtherUser          UserSummary `json:"other_user"`
	LastMessage        *Message    `json:"last_message,omitempty"`
	UnreadCount        int64       `json:"unread_count"`
	RelationshipStatus string      `json:"relationship_status"`
}
