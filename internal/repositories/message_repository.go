package repositories

import (
	"context"
	"time"

	"github.com/studylink/backend/internal/models"
	"github.com/studylink/backend/pkg/apperrors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository is the message archive. Messages live in MongoDB while
// the chats they belong to stay relational; the chat id is the only link.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	AppendAttachment(ctx context.Context, messageID primitive.ObjectID, att models.Attachment) error
	GetMessageByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	ListBefore(ctx context.Context, chatID uint, before time.Time, limit int64) ([]models.Message, error)
	MarkSeen(ctx context.Context, chatID, senderID uint) (int64, error)
	CountUnread(ctx context.Context, chatID, viewerID uint) (int64, error)
	LastMessage(ctx context.Context, chatID uint) (*models.Message, error)
	SoftDeleteMessage(ctx context.Context, id primitive.ObjectID, senderID uint) error
}

// MongoMessageRepository implements MessageRepository for MongoDB
type MongoMessageRepository struct {
	collection *mongo.Collection
}

// NewMongoMessageRepository creates a new MongoMessageRepository
func NewMongoMessageRepository(db *mongo.Database) *MongoMessageRepository {
	return &MongoMessageRepository{collection: db.Collection("messages")}
}

// CreateMessage inserts a new message with status sent. The message is
// readable immediately, before any attachment upload completes.
func (r *MongoMessageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = primitive.NewObjectID()
	msg.Status = models.MessageStatusSent
	msg.CreatedAt = time.Now()
	if msg.Attachments == nil {
		msg.Attachments = []models.Attachment{}
	}
	_, err := r.collection.InsertOne(ctx, msg)
	return err
}

// AppendAttachment adds one stored attachment to an existing message.
func (r *MongoMessageRepository) AppendAttachment(ctx context.Context, messageID primitive.ObjectID, att models.Attachment) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": messageID},
		bson.M{"$push": bson.M{"attachments": att}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrMessageNotFound
	}
	return nil
}

// GetMessageByID retrieves a message by ID
func (r *MongoMessageRepository) GetMessageByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var msg models.Message
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// ListBefore retrieves up to limit messages strictly older than before. The
// query walks newest-first so the limit trims from the old end, but the page
// is returned in chronological order.
func (r *MongoMessageRepository) ListBefore(ctx context.Context, chatID uint, before time.Time, limit int64) ([]models.Message, error) {
	filter := bson.M{
		"chat_id":    chatID,
		"created_at": bson.M{"$lt": before},
		"deleted_at": bson.M{"$exists": false},
	}
	findOptions := options.Find().SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkSeen bulk-advances every not-yet-seen message in the chat sent by
// senderID to seen, in one update. Returns the number of changed messages;
// a repeat call changes nothing and returns zero.
func (r *MongoMessageRepository) MarkSeen(ctx context.Context, chatID, senderID uint) (int64, error) {
	res, err := r.collection.UpdateMany(ctx,
		bson.M{
			"chat_id":   chatID,
			"sender_id": senderID,
			"status":    bson.M{"$ne": models.MessageStatusSeen},
		},
		bson.M{"$set": bson.M{"status": models.MessageStatusSeen}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CountUnread counts messages in the chat that the viewer has not seen and
// did not send.
func (r *MongoMessageRepository) CountUnread(ctx context.Context, chatID, viewerID uint) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{
		"chat_id":    chatID,
		"sender_id":  bson.M{"$ne": viewerID},
		"status":     bson.M{"$ne": models.MessageStatusSeen},
		"deleted_at": bson.M{"$exists": false},
	})
}

// LastMessage retrieves the newest non-deleted message of the chat, nil when
// the chat has no messages yet.
func (r *MongoMessageRepository) LastMessage(ctx context.Context, chatID uint) (*models.Message, error) {
	findOptions := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var msg models.Message
	err := r.collection.FindOne(ctx, bson.M{
		"chat_id":    chatID,
		"deleted_at": bson.M{"$exists": false},
	}, findOptions).Decode(&msg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// SoftDeleteMessage marks the sender's own message as deleted. Content stays
// in place; listings filter on deleted_at.
func (r *MongoMessageRepository) SoftDeleteMessage(ctx context.Context, id primitive.ObjectID, senderID uint) error {
	now := time.Now()
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "sender_id": senderID, "deleted_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"deleted_at": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrMessageNotFound
	}
	return nil
}
