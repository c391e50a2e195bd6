package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeedEntry marks one post as visible in one user's timeline. AuthorID is
// denormalized from the post so unfollow cleanup is a single delete-many.
// At most one entry exists per (owner, post) pair.
type FeedEntry struct {
	ID         primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	OwnerID    uint               `json:"owner_id" bson:"owner_id"`
	PostID     primitive.ObjectID `json:"post_id" bson:"post_id"`
	AuthorID   uint               `json:"author_id" bson:"author_id"`
	InsertedAt time.Time          `json:"inserted_at" bson:"inserted_at"`
}
