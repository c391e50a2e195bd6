package repositories

import (
	"context"

	"github.com/anhct/chirper/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FeedRepository defines the interface for the materialized per-user feed.
// Entries are written by fan-out on publish, by backfill on follow, and
// removed by retraction on unfollow.
type FeedRepository interface {
	UpsertEntry(ctx context.Context, entry *models.FeedEntry) error
	DeleteByOwnerAndAuthor(ctx context.Context, ownerID, authorID uint) (int64, error)
	ListByOwner(ctx context.Context, ownerID uint, skip, limit int64) ([]models.FeedEntry, error)
	CountByOwner(ctx context.Context, ownerID uint) (int64, error)
}

// MongoFeedRepository implements FeedRepository for MongoDB
type MongoFeedRepository struct {
	collection *mongo.Collection
}

// NewMongoFeedRepository creates a new MongoFeedRepository
func NewMongoFeedRepository(db *mongo.Database) *MongoFeedRepository {
	return &MongoFeedRepository{collection: db.Collection("feed_entries")}
}

// EnsureIndexes creates the unique (owner_id, post_id) index that backs the
// one-entry-per-post-per-owner invariant, plus the owner read index.
func (r *MongoFeedRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "post_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "inserted_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "author_id", Value: 1}},
		},
	})
	return err
}

// UpsertEntry writes a feed entry if the owner does not already hold one for
// the same post. Re-delivering a post to an owner is a no-op, which makes
// fan-out and backfill safely retryable.
func (r *MongoFeedRepository) UpsertEntry(ctx context.Context, entry *models.FeedEntry) error {
	filter := bson.M{"owner_id": entry.OwnerID, "post_id": entry.PostID}
	update := bson.M{"$setOnInsert": bson.M{
		"owner_id":    entry.OwnerID,
		"post_id":     entry.PostID,
		"author_id":   entry.AuthorID,
		"inserted_at": entry.InsertedAt,
	}}
	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// DeleteByOwnerAndAuthor removes every entry in the owner's feed whose post
// was authored by the given user. Returns the number of entries removed.
func (r *MongoFeedRepository) DeleteByOwnerAndAuthor(ctx context.Context, ownerID, authorID uint) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"owner_id": ownerID, "author_id": authorID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListByOwner retrieves a page of the owner's feed entries, newest first.
func (r *MongoFeedRepository) ListByOwner(ctx context.Context, ownerID uint, skip, limit int64) ([]models.FeedEntry, error) {
	var entries []models.FeedEntry
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "inserted_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CountByOwner returns the total number of entries in the owner's feed.
func (r *MongoFeedRepository) CountByOwner(ctx context.Context, ownerID uint) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"owner_id": ownerID})
}
