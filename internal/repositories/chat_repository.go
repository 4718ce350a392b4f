package repositories

import (
	"errors"
	"time"

	"github.com/studylink/backend/internal/models"
	"github.com/studylink/backend/pkg/apperrors"
	"gorm.io/gorm"
)

// ChatRepository resolves and creates conversations. Both get-or-create paths
// are idempotent and race-safe: creation rides on a unique index and treats a
// duplicate-key failure as "already exists, re-read".
type ChatRepository interface {
	GetOrCreateDirect(a, b uint) (*models.Chat, error)
	GetOrCreateGroup(groupID uint) (*models.Chat, error)
	GetChatByID(id uint) (*models.Chat, error)
	ListDirectChats(userID uint) ([]models.Chat, error)
	TouchChat(id uint) error
}

// PostgresChatRepository implements ChatRepository for PostgreSQL
type PostgresChatRepository struct {
	db *gorm.DB
}

// NewPostgresChatRepository creates a new PostgresChatRepository
func NewPostgresChatRepository(db *gorm.DB) *PostgresChatRepository {
	return &PostgresChatRepository{db: db}
}

// GetOrCreateDirect returns the one direct chat for the pair, creating it on
// first use. Safe under concurrent calls for the same pair in either argument
// order: both callers converge on the same row.
func (r *PostgresChatRepository) GetOrCreateDirect(a, b uint) (*models.Chat, error) {
	if a == b {
		return nil, apperrors.ErrSelfReference
	}
	low, high := models.CanonicalPair(a, b)

	var chat models.Chat
	err := r.db.Where("kind = ? AND user_low = ? AND user_high = ?", models.ChatKindDirect, low, high).First(&chat).Error
	if err == nil {
		return &chat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	chat = models.Chat{Kind: models.ChatKindDirect, UserLow: &low, UserHigh: &high}
	if createErr := r.db.Create(&chat).Error; createErr != nil {
		// Lost the race: the unique index over (user_low, user_high) means the
		// row now exists, so re-read instead of failing.
		if errors.Is(createErr, gorm.ErrDuplicatedKey) {
			if err := r.db.Where("kind = ? AND user_low = ? AND user_high = ?", models.ChatKindDirect, low, high).First(&chat).Error; err != nil {
				return nil, err
			}
			return &chat, nil
		}
		return nil, createErr
	}
	return &chat, nil
}

// GetOrCreateGroup returns the one chat bound to the group, creating it on
// first use with the same duplicate-key convergence as the direct path.
func (r *PostgresChatRepository) GetOrCreateGroup(groupID uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.Where("kind = ? AND group_id = ?", models.ChatKindGroup, groupID).First(&chat).Error
	if err == nil {
		return &chat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	chat = models.Chat{Kind: models.ChatKindGroup, GroupID: &groupID}
	if createErr := r.db.Create(&chat).Error; createErr != nil {
		if errors.Is(createErr, gorm.ErrDuplicatedKey) {
			if err := r.db.Where("kind = ? AND group_id = ?", models.ChatKindGroup, groupID).First(&chat).Error; err != nil {
				return nil, err
			}
			return &chat, nil
		}
		return nil, createErr
	}
	return &chat, nil
}

// GetChatByID retrieves a chat by ID
func (r *PostgresChatRepository) GetChatByID(id uint) (*models.Chat, error) {
	var chat models.Chat
	if err := r.db.First(&chat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrChatNotFound
		}
		return nil, err
	}
	return &chat, nil
}

// ListDirectChats retrieves the user's direct chats, most recently active first.
func (r *PostgresChatRepository) ListDirectChats(userID uint) ([]models.Chat, error) {
	var chats []models.Chat
	if err := r.db.
		Where("kind = ? AND (user_low = ? OR user_high = ?)", models.ChatKindDirect, userID, userID).
		Order("updated_at DESC").
		Find(&chats).Error; err != nil {
		return nil, err
	}
	return chats, nil
}

// TouchChat bumps updated_at so the chat sorts to the top of listings.
func (r *PostgresChatRepository) TouchChat(id uint) error {
	return r.db.Model(&models.Chat{}).Where("id = ?", id).Update("updated_at", time.Now()).Error
}
