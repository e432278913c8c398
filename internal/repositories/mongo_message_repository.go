package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"school-service/internal/models"
)

// MongoMessageRepo stores each message as one document with embedded
// recipients and deletions.
type MongoMessageRepo struct {
	col *mongo.Collection
}

// NewMongoMessageRepo constructs a MongoMessageRepo.
func NewMongoMessageRepo(db *mongo.Database) *MongoMessageRepo {
	return &MongoMessageRepo{col: db.Collection("messages")}
}

// CreateMessage inserts the message document.
func (r *MongoMessageRepo) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := mongoNow()
	msg.CreatedAt, msg.UpdatedAt = now, now
	if msg.Attachments == nil {
		msg.Attachments = models.Attachments{}
	}
	for i := range msg.Recipients {
		msg.Recipients[i].MessageID = msg.ID
	}
	msg.DeletedBy = []models.Deletion{}

	_, err := r.col.InsertOne(ctx, msg)
	return err
}

// GetMessage fetches one message.
func (r *MongoMessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.col.FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	fillMessageIDs(&msg)
	return msg, nil
}

// ListThread returns the root and its direct replies ordered by creation.
func (r *MongoMessageRepo) ListThread(ctx context.Context, rootID string) ([]models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"_id": rootID},
		bson.M{"parent_message_id": rootID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, filter, opts)
}

// ListInbox returns visible messages where the user is a recipient.
func (r *MongoMessageRepo) ListInbox(ctx context.Context, userID string) ([]models.Message, error) {
	filter := bson.M{
		"recipients.user_id": userID,
		"is_deleted":         false,
		"deleted_by.user_id": bson.M{"$ne": userID},
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// ListSent returns visible messages sent by the user.
func (r *MongoMessageRepo) ListSent(ctx context.Context, userID string) ([]models.Message, error) {
	filter := bson.M{
		"sender_id":          userID,
		"is_deleted":         false,
		"deleted_by.user_id": bson.M{"$ne": userID},
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// CountUnread counts visible messages the user has not read.
func (r *MongoMessageRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	count, err := r.col.CountDocuments(ctx, bson.M{
		"recipients":         bson.M{"$elemMatch": bson.M{"user_id": userID, "read_at": nil}},
		"is_deleted":         false,
		"deleted_by.user_id": bson.M{"$ne": userID},
	})
	return int(count), err
}

// MarkRead sets read_at on the matching unread recipient entry. The filter
// only matches while read_at is null, so at most one caller wins.
func (r *MongoMessageRepo) MarkRead(ctx context.Context, messageID string, userID string, at time.Time) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"_id":        messageID,
			"recipients": bson.M{"$elemMatch": bson.M{"user_id": userID, "read_at": nil}},
		},
		bson.M{"$set": bson.M{"recipients.$.read_at": at, "updated_at": at}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// SoftDelete appends the user's deletion once and flags the message deleted
// when every participant has removed it.
func (r *MongoMessageRepo) SoftDelete(ctx context.Context, messageID string, userID string, at time.Time) (models.Message, error) {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": messageID, "deleted_by.user_id": bson.M{"$ne": userID}},
		bson.M{
			"$push": bson.M{"deleted_by": bson.M{"user_id": userID, "deleted_at": at}},
			"$set":  bson.M{"updated_at": at},
		},
	)
	if err != nil {
		return models.Message{}, err
	}

	msg, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.IsDeleted || !deletedByAll(msg) {
		return msg, nil
	}

	if _, err := r.col.UpdateOne(ctx,
		bson.M{"_id": messageID, "is_deleted": false},
		bson.M{"$set": bson.M{"is_deleted": true, "updated_at": at}},
	); err != nil {
		return models.Message{}, err
	}
	msg.IsDeleted = true
	return msg, nil
}

func (r *MongoMessageRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Message, error) {
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := []models.Message{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	for i := range msgs {
		fillMessageIDs(&msgs[i])
	}
	return msgs, nil
}

func fillMessageIDs(msg *models.Message) {
	if msg.Recipients == nil {
		msg.Recipients = []models.Recipient{}
	}
	if msg.DeletedBy == nil {
		msg.DeletedBy = []models.Deletion{}
	}
	for i := range msg.Recipients {
		msg.Recipients[i].MessageID = msg.ID
	}
	for i := range msg.DeletedBy {
		msg.DeletedBy[i].MessageID = msg.ID
	}
}

func deletedByAll(msg models.Message) bool {
	for _, id := range msg.Participants() {
		if !msg.DeletedFor(id) {
			return false
		}
	}
	return true
}

// mongoNow matches the millisecond precision BSON dates are stored with.
func mongoNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
