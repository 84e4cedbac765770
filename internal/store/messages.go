package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	pkgerrors "sentinella/pkg/errors"
	"sentinella/pkg/models"
)

// MessageQuery narrows List results. Zero values mean "no restriction".
type MessageQuery struct {
	Status    models.MessageStatus
	Priority  string
	Author    string
	Type      models.ContentType
	Important *bool
	Tags      []string
	DateFrom  *time.Time
	DateTo    *time.Time
	Search    string
	Page      int
	Limit     int
}

// MessageRepository is the message store accessor. Create enforces
// message-ID uniqueness; Save detects conflicting concurrent writes through
// the revision field.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	Save(ctx context.Context, msg *models.Message) error
	Get(ctx context.Context, id string) (*models.Message, error)
	List(ctx context.Context, q MessageQuery) ([]models.Message, int64, error)
	UpdateMetadata(ctx context.Context, id string, fields map[string]interface{}) (*models.Message, error)
	Delete(ctx context.Context, id string) error
}

type mongoMessageRepository struct {
	collection *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) MessageRepository {
	return &mongoMessageRepository{
		collection: db.Collection(messagesCollection),
	}
}

func (r *mongoMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	now := time.Now()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	msg.Revision = 0
	if msg.Status == "" {
		msg.Status = models.StatusReceived
	}
	if msg.Metadata.Priority == "" {
		msg.Metadata.Priority = models.PriorityMedium
	}

	_, err := r.collection.InsertOne(ctx, msg)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return pkgerrors.ErrDuplicate.WithCause(err).
				WithDetail("message", fmt.Sprintf("message '%s' already exists", msg.MessageID))
		}
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// Save persists the message guarded by its revision. A concurrent writer that
// bumped the revision first makes the update match nothing; that case is
// reported as a conflict so callers can treat it as already-persisted.
func (r *mongoMessageRepository) Save(ctx context.Context, msg *models.Message) error {
	msg.UpdatedAt = time.Now()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": msg.ID, "revision": msg.Revision},
		bson.M{
			"$set": bson.M{
				"status":     msg.Status,
				"metadata":   msg.Metadata,
				"updated_at": msg.UpdatedAt,
			},
			"$inc": bson.M{"revision": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	if result.MatchedCount == 0 {
		count, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": msg.ID})
		if countErr == nil && count > 0 {
			return pkgerrors.ErrConflict.
				WithDetail("message", fmt.Sprintf("message '%s' was modified concurrently", msg.ID))
		}
		return pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("message '%s' not found", msg.ID))
	}

	msg.Revision++
	return nil
}

func (r *mongoMessageRepository) Get(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if err == mongo.ErrNoDocuments {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("message '%s' not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &msg, nil
}

func (r *mongoMessageRepository) List(ctx context.Context, q MessageQuery) ([]models.Message, int64, error) {
	query := bson.M{}

	if q.Status != "" {
		query["status"] = q.Status
	}
	if q.Priority != "" {
		query["metadata.priority"] = q.Priority
	}
	if q.Author != "" {
		query["from.phone_number"] = q.Author
	}
	if q.Type != "" {
		query["content.type"] = q.Type
	}
	if q.Important != nil {
		query["metadata.is_important"] = *q.Important
	}
	if len(q.Tags) > 0 {
		query["metadata.tags"] = bson.M{"$in": q.Tags}
	}
	if q.DateFrom != nil || q.DateTo != nil {
		ts := bson.M{}
		if q.DateFrom != nil {
			ts["$gte"] = *q.DateFrom
		}
		if q.DateTo != nil {
			ts["$lte"] = *q.DateTo
		}
		query["timestamp"] = ts
	}
	if q.Search != "" {
		query["content.text"] = bson.M{"$regex": q.Search, "$options": "i"}
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, 0, fmt.Errorf("failed to decode messages: %w", err)
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return messages, total, nil
}

func (r *mongoMessageRepository) UpdateMetadata(ctx context.Context, id string, fields map[string]interface{}) (*models.Message, error) {
	set := bson.M{"updated_at": time.Now()}
	for k, v := range fields {
		set[k] = v
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg models.Message
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set, "$inc": bson.M{"revision": 1}},
		opts,
	).Decode(&msg)
	if err == mongo.ErrNoDocuments {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("message '%s' not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update message metadata: %w", err)
	}

	return &msg, nil
}

func (r *mongoMessageRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	if result.DeletedCount == 0 {
		return pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("message '%s' not found", id))
	}

	return nil
}
