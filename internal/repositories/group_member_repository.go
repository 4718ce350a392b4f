package repositories

import (
	"errors"

	"github.com/studylink/backend/internal/models"
	"gorm.io/gorm"
)

// GroupMemberRepository is the read-only membership surface the access checks
// consult. Group management itself happens outside the messaging core.
type GroupMemberRepository interface {
	IsActiveMember(groupID, userID uint) (bool, error)
	Role(groupID, userID uint) (string, error)
}

// PostgresGroupMemberRepository implements GroupMemberRepository for PostgreSQL
type PostgresGroupMemberRepository struct {
	db *gorm.DB
}

// NewPostgresGroupMemberRepository creates a new PostgresGroupMemberRepository
func NewPostgresGroupMemberRepository(db *gorm.DB) *PostgresGroupMemberRepository {
	return &PostgresGroupMemberRepository{db: db}
}

// IsActiveMember reports whether the user holds an active membership in the group.
func (r *PostgresGroupMemberRepository) IsActiveMember(groupID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ? AND is_active = ?", groupID, userID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Role returns the member's role in the group, or "" when not an active member.
func (r *PostgresGroupMemberRepository) Role(groupID, userID uint) (string, error) {
	var member models.GroupMember
	err := r.db.
		Where("group_id = ? AND user_id = ? AND is_active = ?", groupID, userID, true).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return member.Role, nil
}
