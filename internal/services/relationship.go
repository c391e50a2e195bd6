package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/anhct/chirper/backend/internal/graph"
	"github.com/anhct/chirper/backend/internal/models"
	"github.com/anhct/chirper/backend/internal/repositories"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrNotPersisted indicates the durable store rejected a relationship change.
// The in-memory graph is left untouched when this is returned.
var ErrNotPersisted = errors.New("relationship not persisted")

// RelationshipCoordinator orchestrates follow and unfollow. It validates the
// pair, writes the durable edge first, then mutates the in-memory graph, then
// triggers feed backfill or retraction. The durable write always precedes the
// in-memory one so the graph never shows an edge the store does not have.
// Feed maintenance is best-effort: its failures are logged, never surfaced as
// failure of the relationship change.
type RelationshipCoordinator struct {
	// mu serializes the check-then-act on the edge itself so concurrent
	// duplicate requests for the same pair collapse into one edge and one
	// fan-out. Best-effort feed and notification work runs outside the
	// lock; a slow backfill must not block unrelated relationship changes.
	mu sync.Mutex

	store      *graph.EdgeStore
	index      *graph.Index
	followRepo repositories.FollowRepository
	userRepo   repositories.UserRepository
	notifRepo  repositories.NotificationRepository
	fanout     *FeedFanoutEngine
	log        *logrus.Entry
}

// NewRelationshipCoordinator wires the coordinator. notifRepo may be nil to
// disable follow notifications.
func NewRelationshipCoordinator(
	store *graph.EdgeStore,
	index *graph.Index,
	followRepo repositories.FollowRepository,
	userRepo repositories.UserRepository,
	notifRepo repositories.NotificationRepository,
	fanout *FeedFanoutEngine,
	log *logrus.Entry,
) *RelationshipCoordinator {
	return &RelationshipCoordinator{
		store:      store,
		index:      index,
		followRepo: followRepo,
		userRepo:   userRepo,
		notifRepo:  notifRepo,
		fanout:     fanout,
		log:        log,
	}
}

// Follow makes followerID follow followingID. Following a user twice is a
// no-op returning success.
func (c *RelationshipCoordinator) Follow(ctx context.Context, followerID, followingID uint) error {
	if followerID == followingID {
		return graph.ErrSelfFollow
	}

	created, err := c.createEdge(followerID, followingID)
	if err != nil || !created {
		return err
	}

	if err := c.fanout.Backfill(ctx, followerID, followingID); err != nil {
		c.log.WithFields(logrus.Fields{
			"follower_id":  followerID,
			"following_id": followingID,
		}).WithError(err).Warn("feed backfill incomplete after follow")
	}
	c.notifyFollow(followerID, followingID)

	c.log.WithFields(logrus.Fields{
		"follower_id":  followerID,
		"following_id": followingID,
	}).Info("follow relationship created")
	return nil
}

// createEdge performs the serialized part of Follow: endpoint resolution,
// the durable write, then the in-memory edge. Returns false with a nil
// error when the edge already existed.
func (c *RelationshipCoordinator) createEdge(followerID, followingID uint) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureKnown(followerID); err != nil {
		return false, err
	}
	if err := c.ensureKnown(followingID); err != nil {
		return false, err
	}
	if c.store.HasEdge(followerID, followingID) {
		return false, nil
	}

	if err := c.followRepo.CreateFollow(&models.Follow{
		FollowerID:  followerID,
		FollowingID: followingID,
	}); err != nil {
		return false, fmt.Errorf("%w: %v", ErrNotPersisted, err)
	}
	if err := c.store.AddEdge(followerID, followingID); err != nil {
		// Both endpoints were just resolved, so this cannot happen short of
		// a programming error.
		return false, err
	}
	return true, nil
}

// Unfollow removes the followerID -> followingID relationship. Unfollowing a
// user that is not followed is a no-op returning success. Feed retraction
// failures are swallowed: a stale feed is tolerable, a phantom follow is not.
func (c *RelationshipCoordinator) Unfollow(ctx context.Context, followerID, followingID uint) error {
	if followerID == followingID {
		return graph.ErrSelfFollow
	}

	removed, err := c.removeEdge(followerID, followingID)
	if err != nil || !removed {
		return err
	}

	if err := c.fanout.Retract(ctx, followerID, followingID); err != nil {
		c.log.WithFields(logrus.Fields{
			"follower_id":  followerID,
			"following_id": followingID,
		}).WithError(err).Warn("feed cleanup failed but unfollow succeeded")
	}

	c.log.WithFields(logrus.Fields{
		"follower_id":  followerID,
		"following_id": followingID,
	}).Info("follow relationship removed")
	return nil
}

// removeEdge performs the serialized part of Unfollow. Returns false with a
// nil error when there was no edge to remove.
func (c *RelationshipCoordinator) removeEdge(followerID, followingID uint) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.store.HasEdge(followerID, followingID) {
		return false, nil
	}

	if err := c.followRepo.DeleteFollow(followerID, followingID); err != nil {
		return false, fmt.Errorf("%w: %v", ErrNotPersisted, err)
	}
	c.store.RemoveEdge(followerID, followingID)
	return true, nil
}

// ensureKnown resolves the ID against the index, falling back to the durable
// store and caching the record on first reference.
func (c *RelationshipCoordinator) ensureKnown(id uint) error {
	if c.index.Known(id) {
		return nil
	}
	user, err := c.userRepo.GetUserByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %d: %w", id, graph.ErrUnknownUser)
		}
		return fmt.Errorf("resolve user %d: %w", id, err)
	}
	c.index.AddUser(user.ToCompact())
	return nil
}

func (c *RelationshipCoordinator) notifyFollow(followerID, followingID uint) {
	if c.notifRepo == nil {
		return
	}
	actor := c.index.Resolve([]uint{followerID})
	message := "started following you"
	if len(actor) == 1 {
		message = actor[0].Username + " started following you"
	}
	if err := c.notifRepo.CreateNotification(&models.Notification{
		Type:        "follow",
		ActorID:     followerID,
		RecipientID: followingID,
		Message:     message,
	}); err != nil {
		c.log.WithError(err).Warn("failed to create follow notification")
	}
}
