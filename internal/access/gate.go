// Package access holds the pure read/write predicates for chats. The gate
// owns no state; it combines the chat row with group membership and answers
// with a typed Forbidden instead of silently filtering, so callers can tell
// "doesn't exist" from "exists but denied".
package access

import (
	"github.com/studylink/backend/internal/models"
	"github.com/studylink/backend/pkg/apperrors"
)

// MembershipChecker is the group-membership collaborator the gate consults.
type MembershipChecker interface {
	IsActiveMember(groupID, userID uint) (bool, error)
}

type Gate struct {
	members MembershipChecker
}

func NewGate(members MembershipChecker) *Gate {
	return &Gate{members: members}
}

// CanRead requires direct-chat participancy or active group membership.
func (g *Gate) CanRead(userID uint, chat *models.Chat) error {
	switch chat.Kind {
	case models.ChatKindDirect:
		if !chat.IsParticipant(userID) {
			return apperrors.ErrNotParticipant
		}
		return nil
	case models.ChatKindGroup:
		return g.requireMembership(userID, chat)
	}
	return apperrors.ErrChatNotFound
}

// CanWrite mirrors CanRead for group chats. For direct chats it deliberately
// does not consult the relationship status: blocked or unfriended pairs can
// still write, and list views surface the status instead.
func (g *Gate) CanWrite(userID uint, chat *models.Chat) error {
	switch chat.Kind {
	case models.ChatKindDirect:
		if !chat.IsParticipant(userID) {
			return apperrors.ErrNotParticipant
		}
		return nil
	case models.ChatKindGroup:
		return g.requireMembership(userID, chat)
	}
	return apperrors.ErrChatNotFound
}

func (g *Gate) requireMembership(userID uint, chat *models.Chat) error {
	if chat.GroupID == nil {
		return apperrors.ErrChatNotFound
	}
	active, err := g.members.IsActiveMember(*chat.GroupID, userID)
	if err != nil {
		return err
	}
	if !active {
		return apperrors.ErrNotGroupMember
	}
	return nil
}
