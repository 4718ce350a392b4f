package repositories

import (
	"errors"

	"github.com/studylink/backend/internal/models"
	"github.com/studylink/backend/internal/realtime"
	"github.com/studylink/backend/pkg/apperrors"
	"gorm.io/gorm"
)

// RelationshipRepository owns the friend-request / friendship / block state
// machine. All pair-keyed rows are canonicalized through models.CanonicalPair,
// so unique indexes (not application locks) guarantee at most one request and
// one relationship per unordered pair. Multi-row transitions (accept, block)
// run in a single transaction.
type RelationshipRepository interface {
	SendRequest(senderID, receiverID uint) (*models.FriendRequest, error)
	AcceptRequest(userID, requestID uint) (*models.Relationship, error)
	RejectRequest(userID, requestID uint) error
	CancelRequest(userID, requestID uint) error
	Block(userID, targetID uint) (*models.Relationship, error)
	Unblock(userID, targetID uint) error
	Status(userID, otherID uint) (string, error)
	ListIncoming(userID uint) ([]models.FriendRequest, error)
	ListOutgoing(userID uint) ([]models.FriendRequest, error)
	ListFriends(userID uint) ([]models.Relationship, error)
}

// PostgresRelationshipRepository implements RelationshipRepository for
// PostgreSQL. Realtime events are emitted only after the rows are committed,
// so a client never sees an event for state it cannot query yet.
type PostgresRelationshipRepository struct {
	db      *gorm.DB
	emitter realtime.Emitter
}

// NewPostgresRelationshipRepository creates a new PostgresRelationshipRepository
func NewPostgresRelationshipRepository(db *gorm.DB, emitter realtime.Emitter) *PostgresRelationshipRepository {
	return &PostgresRelationshipRepository{db: db, emitter: emitter}
}

func (r *PostgresRelationshipRepository) pairRelationship(tx *gorm.DB, a, b uint) (*models.Relationship, error) {
	low, high := models.CanonicalPair(a, b)
	var rel models.Relationship
	err := tx.Where("user_low = ? AND user_high = ?", low, high).First(&rel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rel, nil
}

func (r *PostgresRelationshipRepository) pairRequest(tx *gorm.DB, a, b uint) (*models.FriendRequest, error) {
	low, high := models.CanonicalPair(a, b)
	var req models.FriendRequest
	err := tx.Where("pair_low = ? AND pair_high = ?", low, high).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// SendRequest creates a pending friend request and notifies the receiver.
func (r *PostgresRelationshipRepository) SendRequest(senderID, receiverID uint) (*models.FriendRequest, error) {
	if senderID == receiverID {
		return nil, apperrors.ErrSelfReference
	}

	rel, err := r.pairRelationship(r.db, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if rel != nil {
		switch rel.Status {
		case models.RelationshipBlocked:
			return nil, apperrors.ErrBlocked
		case models.RelationshipAccepted:
			return nil, apperrors.ErrAlreadyFriends
		}
	}

	existing, err := r.pairRequest(r.db, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.ErrDuplicateRequest
	}

	low, high := models.CanonicalPair(senderID, receiverID)
	req := &models.FriendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		PairLow:    low,
		PairHigh:   high,
	}
	if err := r.db.Create(req).Error; err != nil {
		// Two concurrent sends for the same pair race into the unique index;
		// the loser reports a duplicate, same as the sequential case.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrDuplicateRequest
		}
		return nil, err
	}

	r.emitter.ToUser(receiverID, realtime.Event{
		Type: realtime.EventFriendRequestCreated,
		Payload: realtime.FriendRequestPayload{
			RequestID:  req.ID,
			SenderID:   senderID,
			ReceiverID: receiverID,
		},
	})
	return req, nil
}

// AcceptRequest turns a pending request into an accepted relationship. The
// relationship insert and the request deletion commit together or not at all.
func (r *PostgresRelationshipRepository) AcceptRequest(userID, requestID uint) (*models.Relationship, error) {
	var req models.FriendRequest
	if err := r.db.First(&req, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRequestNotFound
		}
		return nil, err
	}
	if req.ReceiverID != userID {
		return nil, apperrors.ErrNotRecipient
	}

	low, high := models.CanonicalPair(req.SenderID, req.ReceiverID)
	rel := &models.Relationship{
		UserLow:      low,
		UserHigh:     high,
		Status:       models.RelationshipAccepted,
		ActingUserID: userID,
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rel).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.FriendRequest{}, req.ID).Error
	})
	if err != nil {
		return nil, err
	}

	r.emitter.ToUser(req.SenderID, realtime.Event{
		Type: realtime.EventFriendRequestAccepted,
		Payload: realtime.FriendRequestPayload{
			RequestID:  req.ID,
			SenderID:   req.SenderID,
			ReceiverID: req.ReceiverID,
		},
	})
	return rel, nil
}

// RejectRequest deletes a pending request; only the receiver may reject.
func (r *PostgresRelationshipRepository) RejectRequest(userID, requestID uint) error {
	return r.deleteRequest(userID, requestID, false)
}

// CancelRequest deletes a pending request; only the sender may cancel.
func (r *PostgresRelationshipRepository) CancelRequest(userID, requestID uint) error {
	return r.deleteRequest(userID, requestID, true)
}

func (r *PostgresRelationshipRepository) deleteRequest(userID, requestID uint, bySender bool) error {
	var req models.FriendRequest
	if err := r.db.First(&req, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrRequestNotFound
		}
		return err
	}
	if bySender && req.SenderID != userID {
		return apperrors.ErrNotSender
	}
	if !bySender && req.ReceiverID != userID {
		return apperrors.ErrNotRecipient
	}
	return r.db.Unscoped().Delete(&models.FriendRequest{}, req.ID).Error
}

// Block removes any pending request between the pair and upserts the
// relationship row to blocked, recording userID as the blocker. Blocking a
// pair already blocked by the same user is a no-op.
func (r *PostgresRelationshipRepository) Block(userID, targetID uint) (*models.Relationship, error) {
	if userID == targetID {
		return nil, apperrors.ErrSelfReference
	}

	low, high := models.CanonicalPair(userID, targetID)
	var rel *models.Relationship
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().
			Where("pair_low = ? AND pair_high = ?", low, high).
			Delete(&models.FriendRequest{}).Error; err != nil {
			return err
		}

		existing, err := r.pairRelationship(tx, userID, targetID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Status == models.RelationshipBlocked && existing.ActingUserID == userID {
				rel = existing
				return nil
			}
			existing.Status = models.RelationshipBlocked
			existing.ActingUserID = userID
			rel = existing
			return tx.Save(existing).Error
		}

		rel = &models.Relationship{
			UserLow:      low,
			UserHigh:     high,
			Status:       models.RelationshipBlocked,
			ActingUserID: userID,
		}
		if err := tx.Create(rel).Error; err != nil {
			// Two concurrent first-time blocks race into the unique pair
			// index; the loser re-reads the winner's row and takes it over.
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return err
			}
			existing, err := r.pairRelationship(tx, userID, targetID)
			if err != nil {
				return err
			}
			if existing == nil {
				return gorm.ErrDuplicatedKey
			}
			existing.Status = models.RelationshipBlocked
			existing.ActingUserID = userID
			rel = existing
			return tx.Save(existing).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// Unblock deletes the blocked relationship row. Only the blocker may lift the
// block; afterwards no relationship exists between the pair.
func (r *PostgresRelationshipRepository) Unblock(userID, targetID uint) error {
	rel, err := r.pairRelationship(r.db, userID, targetID)
	if err != nil {
		return err
	}
	if rel == nil || rel.Status != models.RelationshipBlocked {
		return apperrors.ErrNoBlock
	}
	if rel.ActingUserID != userID {
		return apperrors.ErrNotBlocker
	}
	return r.db.Unscoped().Delete(&models.Relationship{}, rel.ID).Error
}

// Status resolves the relationship state as seen from userID: a pending
// request wins over no relationship, the relationship row wins over both.
func (r *PostgresRelationshipRepository) Status(userID, otherID uint) (string, error) {
	if userID == otherID {
		return models.RelationSelf, nil
	}

	req, err := r.pairRequest(r.db, userID, otherID)
	if err != nil {
		return "", err
	}
	if req != nil {
		if req.SenderID == userID {
			return models.RelationPendingSent, nil
		}
		return models.RelationPendingReceived, nil
	}

	rel, err := r.pairRelationship(r.db, userID, otherID)
	if err != nil {
		return "", err
	}
	if rel == nil {
		return models.RelationNone, nil
	}
	switch rel.Status {
	case models.RelationshipAccepted:
		return models.RelationAccepted, nil
	case models.RelationshipBlocked:
		return models.RelationBlocked, nil
	}
	return models.RelationNone, nil
}

// ListIncoming retrieves pending requests addressed to the user.
func (r *PostgresRelationshipRepository) ListIncoming(userID uint) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	if err := r.db.Where("receiver_id = ?", userID).Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// ListOutgoing retrieves pending requests the user has sent.
func (r *PostgresRelationshipRepository) ListOutgoing(userID uint) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	if err := r.db.Where("sender_id = ?", userID).Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// ListFriends retrieves the accepted relationships the user is part of.
func (r *PostgresRelationshipRepository) ListFriends(userID uint) ([]models.Relationship, error) {
	var rels []models.Relationship
	if err := r.db.
		Where("status = ? AND (user_low = ? OR user_high = ?)", models.RelationshipAccepted, userID, userID).
		Order("created_at DESC").
		Find(&rels).Error; err != nil {
		return nil, err
	}
	return rels, nil
}
