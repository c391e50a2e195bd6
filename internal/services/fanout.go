package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/anhct/chirper/backend/internal/graph"
	"github.com/anhct/chirper/backend/internal/models"
	"github.com/anhct/chirper/backend/internal/repositories"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PartialError reports feed writes that failed while the rest of the fan-out
// proceeded. It is never fatal to the relationship or post operation that
// triggered it; callers log it and move on.
type PartialError struct {
	Op     string
	Failed int
	err    *multierror.Error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%s: %d feed writes failed: %v", e.Op, e.Failed, e.err)
}

func (e *PartialError) Unwrap() error { return e.err }

// FeedFanoutEngine pushes posts into follower timelines. Publish copies a new
// post into every current follower's feed (plus the author's own), Backfill
// copies a followee's back-catalog into a new follower's feed, and Retract
// removes an unfollowed author's posts from the follower's feed. All three
// are idempotent per (owner, post) thanks to the feed repository's upsert.
type FeedFanoutEngine struct {
	store    *graph.EdgeStore
	feedRepo repositories.FeedRepository
	postRepo repositories.PostRepository
	clk      clock.Clock
	workers  int
	log      *logrus.Entry
}

// NewFeedFanoutEngine creates a fan-out engine that parallelizes publish
// across at most workers goroutines.
func NewFeedFanoutEngine(store *graph.EdgeStore, feedRepo repositories.FeedRepository, postRepo repositories.PostRepository, clk clock.Clock, workers int, log *logrus.Entry) *FeedFanoutEngine {
	if workers < 1 {
		workers = 1
	}
	return &FeedFanoutEngine{
		store:    store,
		feedRepo: feedRepo,
		postRepo: postRepo,
		clk:      clk,
		workers:  workers,
		log:      log,
	}
}

// Publish writes one feed entry per current follower of the post's author,
// plus the author. Every entry of one publish carries the same timestamp.
// Owners are written independently: one owner's failure never aborts the
// others. Failures are aggregated into a PartialError.
func (e *FeedFanoutEngine) Publish(ctx context.Context, post *models.Post) error {
	owners := e.store.Incoming(post.AuthorID)
	owners = append(owners, post.AuthorID)
	insertedAt := e.clk.Now()

	var (
		mu   sync.Mutex
		merr *multierror.Error
	)
	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, owner := range owners {
		owner := owner
		g.Go(func() error {
			entry := &models.FeedEntry{
				OwnerID:    owner,
				PostID:     post.ID,
				AuthorID:   post.AuthorID,
				InsertedAt: insertedAt,
			}
			if err := e.feedRepo.UpsertEntry(ctx, entry); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, fmt.Errorf("owner %d: %w", owner, err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	if merr != nil {
		return &PartialError{Op: "publish", Failed: len(merr.Errors), err: merr}
	}
	e.log.WithFields(logrus.Fields{
		"post_id":   post.ID.Hex(),
		"author_id": post.AuthorID,
		"owners":    len(owners),
	}).Debug("post fanned out")
	return nil
}

// Backfill copies every existing post authored by followingID into
// followerID's feed, so a new follower immediately sees the back-catalog.
// Already-present entries are skipped. Per-post failures are aggregated into
// a PartialError; failing to enumerate the posts at all fails the backfill.
func (e *FeedFanoutEngine) Backfill(ctx context.Context, followerID, followingID uint) error {
	posts, err := e.postRepo.ListByAuthor(ctx, followingID, 0, 0)
	if err != nil {
		return fmt.Errorf("backfill: list posts by author %d: %w", followingID, err)
	}
	insertedAt := e.clk.Now()

	var merr *multierror.Error
	for i := range posts {
		entry := &models.FeedEntry{
			OwnerID:    followerID,
			PostID:     posts[i].ID,
			AuthorID:   followingID,
			InsertedAt: insertedAt,
		}
		if err := e.feedRepo.UpsertEntry(ctx, entry); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("post %s: %w", posts[i].ID.Hex(), err))
		}
	}

	if merr != nil {
		return &PartialError{Op: "backfill", Failed: len(merr.Errors), err: merr}
	}
	return nil
}

// Retract deletes every entry in followerID's feed authored by followingID.
// Pure cleanup: callers must not fail their own operation on a retract error.
func (e *FeedFanoutEngine) Retract(ctx context.Context, followerID, followingID uint) error {
	removed, err := e.feedRepo.DeleteByOwnerAndAuthor(ctx, followerID, followingID)
	if err != nil {
		return fmt.Errorf("retract feed entries of %d for owner %d: %w", followingID, followerID, err)
	}
	e.log.WithFields(logrus.Fields{
		"owner_id":  followerID,
		"author_id": followingID,
		"removed":   removed,
	}).Debug("feed entries retracted")
	return nil
}
