package apperrors

var (
	// Relationship errors
	ErrSelfReference    = InvalidArg("cannot target yourself")
	ErrUserNotFound     = NotFound("user not found")
	ErrBlocked          = Forbidden("a block exists between these users")
	ErrAlreadyFriends   = AlreadyExists("users are already friends")
	ErrDuplicateRequest = AlreadyExists("a pending friend request already exists between these users")
	ErrRequestNotFound  = NotFound("friend request not found")
	ErrNotRecipient     = Forbidden("only the recipient may act on this friend request")
	ErrNotSender        = Forbidden("only the sender may cancel this friend request")
	ErrNoBlock          = NotFound("no block exists between these users")
	ErrNotBlocker       = Forbidden("only the user who placed the block may lift it")

	// Chat and message errors
	ErrChatNotFound    = NotFound("chat not found")
	ErrNotParticipant  = Forbidden("user is not a participant of this chat")
	ErrNotGroupMember  = Forbidden("user is not an active member of this group")
	ErrEmptyMessage    = InvalidArg("message needs content or at least one attachment")
	ErrMessageNotFound = NotFound("message not found")
)

func StorageFailed(cause error) error {
	return Wrap(CodeStorageFailure, "failed to store attachment", cause)
}
