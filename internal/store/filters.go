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

// FilterRepository is the rule store accessor.
type FilterRepository interface {
	FindEnabled(ctx context.Context) ([]models.Filter, error)
	FindByName(ctx context.Context, name string) (*models.Filter, error)
	List(ctx context.Context) ([]models.Filter, error)
	Get(ctx context.Context, id string) (*models.Filter, error)
	Create(ctx context.Context, filter *models.Filter) error
	Save(ctx context.Context, filter *models.Filter) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	RecordMatch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type mongoFilterRepository struct {
	collection *mongo.Collection
}

func NewFilterRepository(db *mongo.Database) FilterRepository {
	return &mongoFilterRepository{
		collection: db.Collection(filtersCollection),
	}
}

func (r *mongoFilterRepository) FindEnabled(ctx context.Context) ([]models.Filter, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"enabled": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled filters: %w", err)
	}
	defer cursor.Close(ctx)

	var filters []models.Filter
	if err := cursor.All(ctx, &filters); err != nil {
		return nil, fmt.Errorf("failed to decode filters: %w", err)
	}

	return filters, nil
}

func (r *mongoFilterRepository) FindByName(ctx context.Context, name string) (*models.Filter, error) {
	var filter models.Filter
	err := r.collection.FindOne(ctx, bson.M{"name": name}).Decode(&filter)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find filter by name: %w", err)
	}

	return &filter, nil
}

func (r *mongoFilterRepository) List(ctx context.Context) ([]models.Filter, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list filters: %w", err)
	}
	defer cursor.Close(ctx)

	var filters []models.Filter
	if err := cursor.All(ctx, &filters); err != nil {
		return nil, fmt.Errorf("failed to decode filters: %w", err)
	}

	return filters, nil
}

func (r *mongoFilterRepository) Get(ctx context.Context, id string) (*models.Filter, error) {
	var filter models.Filter
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&filter)
	if err == mongo.ErrNoDocuments {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("filter '%s' not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get filter: %w", err)
	}

	return &filter, nil
}

func (r *mongoFilterRepository) Create(ctx context.Context, filter *models.Filter) error {
	if filter.ID == "" {
		filter.ID = uuid.New().String()
	}
	now := time.Now()
	filter.CreatedAt = now
	filter.UpdatedAt = now
	filter.KeywordMatchMode = filter.KeywordMatchMode.Normalize()

	_, err := r.collection.InsertOne(ctx, filter)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return pkgerrors.ErrDuplicate.WithCause(err).
				WithDetail("message", fmt.Sprintf("filter with name '%s' already exists", filter.Name))
		}
		return fmt.Errorf("failed to create filter: %w", err)
	}

	return nil
}

func (r *mongoFilterRepository) Save(ctx context.Context, filter *models.Filter) error {
	filter.UpdatedAt = time.Now()
	filter.KeywordMatchMode = filter.KeywordMatchMode.Normalize()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": filter.ID},
		bson.M{"$set": filter},
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return pkgerrors.ErrDuplicate.WithCause(err).
				WithDetail("message", fmt.Sprintf("filter with name '%s' already exists", filter.Name))
		}
		return fmt.Errorf("failed to save filter: %w", err)
	}

	if result.MatchedCount == 0 {
		return pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("filter '%s' not found", filter.ID))
	}

	return nil
}

func (r *mongoFilterRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	set := bson.M{"updated_at": time.Now()}
	for k, v := range fields {
		set[k] = v
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("failed to update filter fields: %w", err)
	}

	if result.MatchedCount == 0 {
		return pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("filter '%s' not found", id))
	}

	return nil
}

// RecordMatch bumps the filter's match counter and last-match instant.
// Callers treat failures as non-fatal.
func (r *mongoFilterRepository) RecordMatch(ctx context.Context, id string, at time.Time) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"stats.matches": 1},
			"$set": bson.M{"stats.last_match": at},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to record filter match: %w", err)
	}
	return nil
}

func (r *mongoFilterRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete filter: %w", err)
	}

	if result.DeletedCount == 0 {
		return pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("filter '%s' not found", id))
	}

	return nil
}
