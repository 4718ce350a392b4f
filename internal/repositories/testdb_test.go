package repositories

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/studylink/backend/internal/models"
	"github.com/studylink/backend/internal/realtime"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory sqlite database and migrates the
// relational schema. TranslateError matches the production configuration so
// the duplicate-key paths behave the same.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.FriendRequest{},
		&models.Relationship{},
		&models.Chat{},
		&models.GroupMember{},
	))
	return db
}

type emittedEvent struct {
	UserID uint
	ChatID uint
	Except uint
	Event  realtime.Event
}

// fakeEmitter records emissions for assertions.
type fakeEmitter struct {
	mu     sync.Mutex
	events []emittedEvent
}

func (f *fakeEmitter) ToUser(userID uint, event realtime.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emittedEvent{UserID: userID, Event: event})
}

func (f *fakeEmitter) ToChat(chatID uint, event realtime.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emittedEvent{ChatID: chatID, Event: event})
}

func (f *fakeEmitter) ToChatExcept(chatID, exceptUserID uint, event realtime.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emittedEvent{ChatID: chatID, Except: exceptUserID, Event: event})
}

func (f *fakeEmitter) recorded() []emittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]emittedEvent, len(f.events))
	copy(out, f.events)
	return out
}
