package models

import "gorm.io/gorm"

// Relationship status values as seen from a given user's side.
const (
	RelationSelf            = "self"
	RelationNone            = "none"
	RelationPendingSent     = "pending_sent"
	RelationPendingReceived = "pending_received"
	RelationAccepted        = "accepted"
	RelationBlocked         = "blocked"
)

// Persisted Relationship.Status values.
const (
	RelationshipAccepted = "accepted"
	RelationshipBlocked  = "blocked"
)

// CanonicalPair maps an unordered user pair onto a deterministic (low, high)
// order. Every persistence path for pair-keyed rows must go through this so a
// unique index over (low, high) yields at most one row per pair.
func CanonicalPair(a, b uint) (low, high uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// FriendRequest represents a pending, directional friend proposal. PairLow and
// PairHigh duplicate the canonicalized pair so the unique index holds for both
// directions; the row is deleted on accept, reject or cancel.
type FriendRequest struct {
	gorm.Model
	SenderID   uint `json:"sender_id" gorm:"index"`
	ReceiverID uint `json:"receiver_id" gorm:"index"`
	PairLow    uint `json:"-" gorm:"uniqueIndex:idx_request_pair"`
	PairHigh   uint `json:"-" gorm:"uniqueIndex:idx_request_pair"`
}

// Relationship is the single row per unordered user pair, either an accepted
// friendship or a block. ActingUserID records who last changed the status; for
// blocked rows that is the blocker and only they may lift the block.
type Relationship struct {
	gorm.Model
	UserLow      uint   `json:"user_low" gorm:"uniqueIndex:idx_relationship_pair"`
	UserHigh     uint   `json:"user_high" gorm:"uniqueIndex:idx_relationship_pair"`
	Status       string `json:"status" gorm:"type:varchar(20);index"`
	ActingUserID uint   `json:"acting_user_id"`
}

// OtherUser returns the counterpart of userID in the pair.
func (r *Relationship) OtherUser(userID uint) uint {
	if r.UserLow == userID {
		return r.UserHigh
	}
	return r.UserLow
}

// CreateFriendRequestPayload defines the request body for sending a friend request
type CreateFriendRequestPayload struct {
	ReceiverID uint `json:"receiver_id" validate:"required"`
}

// FriendRequestView is a pending request annotated with the counterpart's profile.
type FriendRequestView struct {
	FriendRequest
	Sender   UserSummary `json:"sender"`
	Receiver UserSummary `json:"receiver"`
}

// FriendView is an accepted relationship annotated with the friend's profile.
type FriendView struct {
	Friend  UserSummary `json:"friend"`
	SinceAt int64       `json:"since_at"`
}
