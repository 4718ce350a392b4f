package repositories

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studylink/backend/internal/models"
	"github.com/studylink/backend/pkg/apperrors"
)

func TestGetOrCreateDirectIdempotentEitherOrder(t *testing.T) {
	repo := NewPostgresChatRepository(newTestDB(t))

	first, err := repo.GetOrCreateDirect(10, 4)
	require.NoError(t, err)
	require.NotNil(t, first.UserLow)
	require.NotNil(t, first.UserHigh)
	assert.Equal(t, uint(4), *first.UserLow)
	assert.Equal(t, uint(10), *first.UserHigh)
	assert.Equal(t, models.ChatKindDirect, first.Kind)

	second, err := repo.GetOrCreateDirect(4, 10)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetOrCreateDirectConcurrentCallersConverge(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostgresChatRepository(db)

	const callers = 8
	var wg sync.WaitGroup
	ids := make([]uint, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := uint(1), uint(2)
			if i%2 == 1 {
				a, b = b, a
			}
			chat, err := repo.GetOrCreateDirect(a, b)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = chat.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	var count int64
	require.NoError(t, db.Model(&models.Chat{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGetOrCreateDirectRejectsSelf(t *testing.T) {
	repo := NewPostgresChatRepository(newTestDB(t))

	_, err := repo.GetOrCreateDirect(3, 3)
	assert.ErrorIs(t, err, apperrors.ErrSelfReference)
}

func TestGetOrCreateDirectDistinctPairsDistinctChats(t *testing.T) {
	repo := NewPostgresChatRepository(newTestDB(t))

	ab, err := repo.GetOrCreateDirect(1, 2)
	require.NoError(t, err)
	ac, err := repo.GetOrCreateDirect(1, 3)
	require.NoError(t, err)
	assert.NotEqual(t, ab.ID, ac.ID)
}

func TestGetOrCreateGroupIdempotent(t *testing.T) {
	repo := NewPostgresChatRepository(newTestDB(t))

	first, err := repo.GetOrCreateGroup(42)
	require.NoError(t, err)
	require.NotNil(t, first.GroupID)
	assert.Equal(t, uint(42), *first.GroupID)
	assert.Equal(t, models.ChatKindGroup, first.Kind)
	assert.Nil(t, first.UserLow)

	second, err := repo.GetOrCreateGroup(42)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetChatByIDNotFound(t *testing.T) {
	repo := NewPostgresChatRepository(newTestDB(t))

	_, err := repo.GetChatByID(999)
	assert.ErrorIs(t, err, apperrors.ErrChatNotFound)
}

func TestListDirectChatsOrderedByActivity(t *testing.T) {
	repo := NewPostgresChatRepository(newTestDB(t))

	older, err := repo.GetOrCreateDirect(1, 2)
	require.NoError(t, err)
	newer, err := repo.GetOrCreateDirect(1, 3)
	require.NoError(t, err)
	_, err = repo.GetOrCreateGroup(7)
	require.NoError(t, err)
	_, err = repo.GetOrCreateDirect(4, 5)
	require.NoError(t, err)

	// Activity on the older chat floats it above the newer one.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, repo.TouchChat(older.ID))

	chats, err := repo.ListDirectChats(1)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, older.ID, chats[0].ID)
	assert.Equal(t, newer.ID, chats[1].ID)
}
