package repositories

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studylink/backend/internal/models"
	"github.com/studylink/backend/pkg/apperrors"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var testMongo *mongo.Database

// startMongoContainer wraps the container start in a recover: testcontainers
// panics rather than returning an error when no Docker host can be found, and
// the sqlite-backed tests in this package must still run on such machines.
func startMongoContainer(ctx context.Context) (container *mongodb.MongoDBContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			container, err = nil, fmt.Errorf("starting mongo container: %v", r)
		}
	}()
	return mongodb.Run(ctx, "mongo:7")
}

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := startMongoContainer(ctx)
	if err != nil {
		// No Docker available: the sqlite-backed tests in this package still run.
		log.Printf("skipping mongo integration tests, failed to start container: %s", err)
		os.Exit(m.Run())
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	}()

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		log.Fatalf("failed to get connection string: %v", err)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		log.Fatalf("failed to ping mongo: %v", err)
	}
	testMongo = client.Database("studylink_test")

	code := m.Run()

	client.Disconnect(ctx)
	os.Exit(code)
}

func newMessageRepo(t *testing.T) *MongoMessageRepository {
	t.Helper()
	if testMongo == nil {
		t.Skip("mongo container not available")
	}
	t.Cleanup(func() {
		require.NoError(t, testMongo.Collection("messages").Drop(context.Background()))
	})
	return NewMongoMessageRepository(testMongo)
}

func seedMessage(t *testing.T, repo *MongoMessageRepository, chatID, senderID uint, content string) *models.Message {
	t.Helper()
	msg := &models.Message{ChatID: chatID, SenderID: senderID, Content: content}
	require.NoError(t, repo.CreateMessage(context.Background(), msg))
	// Creation timestamps must be strictly increasing for ordering assertions.
	time.Sleep(2 * time.Millisecond)
	return msg
}

func Test_CreateMessageDefaults(t *testing.T) {
	repo := newMessageRepo(t)

	msg := seedMessage(t, repo, 1, 2, "hello")
	assert.False(t, msg.ID.IsZero())
	assert.Equal(t, models.MessageStatusSent, msg.Status)
	assert.NotNil(t, msg.Attachments)
	assert.False(t, msg.CreatedAt.IsZero())

	fetched, err := repo.GetMessageByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", fetched.Content)
	assert.Equal(t, uint(2), fetched.SenderID)
}

func Test_ListBeforePagination(t *testing.T) {
	repo := newMessageRepo(t)
	ctx := context.Background()

	first := seedMessage(t, repo, 1, 1, "one")
	seedMessage(t, repo, 1, 2, "two")
	third := seedMessage(t, repo, 1, 1, "three")
	seedMessage(t, repo, 2, 1, "other chat")

	messages, err := repo.ListBefore(ctx, 1, time.Now(), 50)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "one", messages[0].Content)
	assert.Equal(t, "three", messages[2].Content)

	// The limit trims from the old end, order stays chronological.
	messages, err = repo.ListBefore(ctx, 1, time.Now(), 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "two", messages[0].Content)
	assert.Equal(t, "three", messages[1].Content)

	// Before is exclusive: paging from the third message yields the older two.
	// Use the stored timestamp, mongo truncates to millisecond precision.
	stored, err := repo.GetMessageByID(ctx, third.ID)
	require.NoError(t, err)
	messages, err = repo.ListBefore(ctx, 1, stored.CreatedAt, 50)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, first.ID, messages[0].ID)
}

func Test_MarkSeenIdempotent(t *testing.T) {
	repo := newMessageRepo(t)
	ctx := context.Background()

	seedMessage(t, repo, 1, 2, "unread one")
	seedMessage(t, repo, 1, 2, "unread two")
	seedMessage(t, repo, 1, 1, "own message")

	unread, err := repo.CountUnread(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	changed, err := repo.MarkSeen(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	changed, err = repo.MarkSeen(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), changed)

	unread, err = repo.CountUnread(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}

func Test_AppendAttachment(t *testing.T) {
	repo := newMessageRepo(t)
	ctx := context.Background()

	msg := seedMessage(t, repo, 1, 1, "with file")
	att := models.Attachment{
		ID:       primitive.NewObjectID().Hex(),
		Kind:     models.AttachmentKindFile,
		Name:     "notes.pdf",
		URL:      "https://storage.googleapis.com/bucket/chats/1/notes.pdf",
		Size:     2048,
		MimeType: "application/pdf",
	}
	require.NoError(t, repo.AppendAttachment(ctx, msg.ID, att))

	fetched, err := repo.GetMessageByID(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, fetched.Attachments, 1)
	assert.Equal(t, "notes.pdf", fetched.Attachments[0].Name)

	err = repo.AppendAttachment(ctx, primitive.NewObjectID(), att)
	assert.ErrorIs(t, err, apperrors.ErrMessageNotFound)
}

func Test_SoftDeleteHidesFromListings(t *testing.T) {
	repo := newMessageRepo(t)
	ctx := context.Background()

	kept := seedMessage(t, repo, 1, 1, "kept")
	deleted := seedMessage(t, repo, 1, 1, "deleted")

	// Only the sender may delete.
	err := repo.SoftDeleteMessage(ctx, deleted.ID, 2)
	assert.ErrorIs(t, err, apperrors.ErrMessageNotFound)

	require.NoError(t, repo.SoftDeleteMessage(ctx, deleted.ID, 1))

	messages, err := repo.ListBefore(ctx, 1, time.Now(), 50)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, kept.ID, messages[0].ID)

	last, err := repo.LastMessage(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, kept.ID, last.ID)

	// Deleting twice reports not found.
	err = repo.SoftDeleteMessage(ctx, deleted.ID, 1)
	assert.ErrorIs(t, err, apperrors.ErrMessageNotFound)
}

func Test_LastMessageEmptyChat(t *testing.T) {
	repo := newMessageRepo(t)

	last, err := repo.LastMessage(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, last)
}
