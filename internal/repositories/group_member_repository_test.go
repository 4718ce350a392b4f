package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studylink/backend/internal/models"
)

func TestGroupMembership(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostgresGroupMemberRepository(db)

	require.NoError(t, db.Create(&models.GroupMember{GroupID: 1, UserID: 2, Role: models.GroupRoleOwner, IsActive: true}).Error)
	require.NoError(t, db.Create(&models.GroupMember{GroupID: 1, UserID: 3, Role: models.GroupRoleMember, IsActive: false}).Error)

	active, err := repo.IsActiveMember(1, 2)
	require.NoError(t, err)
	assert.True(t, active)

	// Inactive memberships do not count, and the flag must survive the
	// insert as false rather than being swallowed by a column default.
	var stored models.GroupMember
	require.NoError(t, db.Where("group_id = ? AND user_id = ?", 1, 3).First(&stored).Error)
	assert.False(t, stored.IsActive)

	active, err = repo.IsActiveMember(1, 3)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = repo.IsActiveMember(1, 4)
	require.NoError(t, err)
	assert.False(t, active)

	role, err := repo.Role(1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.GroupRoleOwner, role)

	role, err = repo.Role(1, 3)
	require.NoError(t, err)
	assert.Equal(t, "", role)
}
