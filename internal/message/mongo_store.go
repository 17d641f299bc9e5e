package message

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/varun72004/Twin-Talk/internal/database"
)

const mongoOpTimeout = 5 * time.Second

// messageDocument is the MongoDB document shape for a message.
type messageDocument struct {
	OID       primitive.ObjectID `bson:"_id,omitempty"`
	ID        string             `bson:"id"`
	RoomID    string             `bson:"room_id"`
	UserID    string             `bson:"user_id"`
	Username  string             `bson:"username"`
	Content   string             `bson:"content"`
	Type      string             `bson:"type"`
	FileURL   *string            `bson:"file_url,omitempty"`
	Timestamp time.Time          `bson:"timestamp"`
	Deleted   bool               `bson:"deleted"`
	DeletedAt *time.Time         `bson:"deleted_at,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (doc *messageDocument) toMessage() *Message {
	return &Message{
		ID:        doc.ID,
		RoomID:    doc.RoomID,
		UserID:    doc.UserID,
		Username:  doc.Username,
		Content:   doc.Content,
		Type:      doc.Type,
		FileURL:   doc.FileURL,
		Timestamp: doc.Timestamp,
		Deleted:   doc.Deleted,
		DeletedAt: doc.DeletedAt,
	}
}

// MongoStore implements Store on a MongoDB collection. Writes are
// acknowledged by the server before the call returns.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates the store and its indexes.
func NewMongoStore(db *database.MongoDB) (*MongoStore, error) {
	s := &MongoStore{collection: db.Collection("messages")}

	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "id", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("create message indexes: %w", err)
	}
	return s, nil
}

// Append implements Store.
func (s *MongoStore) Append(ctx context.Context, msg *Message) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	doc := &messageDocument{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		Username:  msg.Username,
		Content:   msg.Content,
		Type:      msg.Type,
		FileURL:   msg.FileURL,
		Timestamp: msg.Timestamp,
		Deleted:   msg.Deleted,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// ListActive implements Store.
func (s *MongoStore) ListActive(ctx context.Context, roomID string) ([]Message, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	filter := bson.M{"room_id": roomID, "deleted": false}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := []Message{}
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		messages = append(messages, *doc.toMessage())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// SoftDelete implements Store. The filter requires id, room, author and
// not-yet-deleted in one shot, so "missing", "wrong owner" and "already
// deleted" all surface as ErrNotFound.
func (s *MongoStore) SoftDelete(ctx context.Context, messageID, roomID, requestingUserID string) (*Message, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{
		"id":      messageID,
		"room_id": roomID,
		"user_id": requestingUserID,
		"deleted": false,
	}
	update := bson.M{"$set": bson.M{"deleted": true, "deleted_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc messageDocument
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete message: %w", err)
	}
	return doc.toMessage(), nil
}

// Close implements Store. The shared client is closed by its owner.
func (s *MongoStore) Close() error { return nil }
