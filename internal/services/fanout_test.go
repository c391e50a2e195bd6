package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anhct/chirper/backend/internal/graph"
	"github.com/anhct/chirper/backend/internal/models"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestGraph(t *testing.T, users []uint, edges [][2]uint) *graph.EdgeStore {
	t.Helper()
	store := graph.NewEdgeStore()
	for _, id := range users {
		store.AddUser(id)
	}
	for _, e := range edges {
		require.NoError(t, store.AddEdge(e[0], e[1]))
	}
	return store
}

func TestPublishReachesFollowersAndAuthor(t *testing.T) {
	// 2 and 3 follow 1; 4 does not.
	store := newTestGraph(t, []uint{1, 2, 3, 4}, [][2]uint{{2, 1}, {3, 1}})
	feedRepo := newFakeFeedRepo()
	clk := testclock.NewClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	engine := NewFeedFanoutEngine(store, feedRepo, &fakePostRepo{}, clk, 4, testLogger())

	post := &models.Post{ID: primitive.NewObjectID(), AuthorID: 1, Content: "hello"}
	require.NoError(t, engine.Publish(context.Background(), post))

	for _, owner := range []uint{1, 2, 3} {
		entries := feedRepo.ownerEntries(owner)
		require.Len(t, entries, 1, "owner %d", owner)
		assert.Equal(t, post.ID, entries[0].PostID)
		assert.Equal(t, uint(1), entries[0].AuthorID)
		assert.Equal(t, clk.Now(), entries[0].InsertedAt)
	}
	assert.Empty(t, feedRepo.ownerEntries(4))
}

func TestPublishTimestampConsistentAcrossOwners(t *testing.T) {
	store := newTestGraph(t, []uint{1, 2, 3, 4, 5}, [][2]uint{{2, 1}, {3, 1}, {4, 1}, {5, 1}})
	feedRepo := newFakeFeedRepo()
	clk := testclock.NewClock(time.Now())
	engine := NewFeedFanoutEngine(store, feedRepo, &fakePostRepo{}, clk, 2, testLogger())

	post := &models.Post{ID: primitive.NewObjectID(), AuthorID: 1}
	require.NoError(t, engine.Publish(context.Background(), post))

	var stamps []time.Time
	for _, owner := range []uint{1, 2, 3, 4, 5} {
		entries := feedRepo.ownerEntries(owner)
		require.Len(t, entries, 1)
		stamps = append(stamps, entries[0].InsertedAt)
	}
	for _, s := range stamps[1:] {
		assert.True(t, s.Equal(stamps[0]))
	}
}

func TestPublishIsIdempotentPerPost(t *testing.T) {
	store := newTestGraph(t, []uint{1, 2}, [][2]uint{{2, 1}})
	feedRepo := newFakeFeedRepo()
	engine := NewFeedFanoutEngine(store, feedRepo, &fakePostRepo{}, testclock.NewClock(time.Now()), 2, testLogger())

	post := &models.Post{ID: primitive.NewObjectID(), AuthorID: 1}
	require.NoError(t, engine.Publish(context.Background(), post))
	require.NoError(t, engine.Publish(context.Background(), post))

	assert.Len(t, feedRepo.ownerEntries(1), 1)
	assert.Len(t, feedRepo.ownerEntries(2), 1)
}

func TestPublishPartialFailureContinuesOtherOwners(t *testing.T) {
	store := newTestGraph(t, []uint{1, 2, 3}, [][2]uint{{2, 1}, {3, 1}})
	feedRepo := newFakeFeedRepo()
	feedRepo.failFor[2] = errors.New("write timeout")
	engine := NewFeedFanoutEngine(store, feedRepo, &fakePostRepo{}, testclock.NewClock(time.Now()), 2, testLogger())

	post := &models.Post{ID: primitive.NewObjectID(), AuthorID: 1}
	err := engine.Publish(context.Background(), post)

	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "publish", partial.Op)
	assert.Equal(t, 1, partial.Failed)

	// The failing owner lost the entry, everyone else got theirs.
	assert.Empty(t, feedRepo.ownerEntries(2))
	assert.Len(t, feedRepo.ownerEntries(1), 1)
	assert.Len(t, feedRepo.ownerEntries(3), 1)
}

func TestBackfillCopiesBackCatalog(t *testing.T) {
	store := newTestGraph(t, []uint{1, 2}, nil)
	feedRepo := newFakeFeedRepo()
	postRepo := &fakePostRepo{posts: []models.Post{
		{ID: primitive.NewObjectID(), AuthorID: 2},
		{ID: primitive.NewObjectID(), AuthorID: 2},
		{ID: primitive.NewObjectID(), AuthorID: 9},
	}}
	engine := NewFeedFanoutEngine(store, feedRepo, postRepo, testclock.NewClock(time.Now()), 2, testLogger())

	require.NoError(t, engine.Backfill(context.Background(), 1, 2))

	entries := feedRepo.ownerEntries(1)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, uint(2), entry.AuthorID)
	}
}

func TestBackfillRerunAddsNothing(t *testing.T) {
	store := newTestGraph(t, []uint{1, 2}, nil)
	feedRepo := newFakeFeedRepo()
	postRepo := &fakePostRepo{posts: []models.Post{{ID: primitive.NewObjectID(), AuthorID: 2}}}
	engine := NewFeedFanoutEngine(store, feedRepo, postRepo, testclock.NewClock(time.Now()), 2, testLogger())

	require.NoError(t, engine.Backfill(context.Background(), 1, 2))
	require.NoError(t, engine.Backfill(context.Background(), 1, 2))
	assert.Len(t, feedRepo.ownerEntries(1), 1)
}

func TestBackfillFailsWhenListingFails(t *testing.T) {
	store := newTestGraph(t, []uint{1, 2}, nil)
	boom := errors.New("cursor error")
	engine := NewFeedFanoutEngine(store, newFakeFeedRepo(), &fakePostRepo{listErr: boom}, testclock.NewClock(time.Now()), 2, testLogger())

	assert.ErrorIs(t, engine.Backfill(context.Background(), 1, 2), boom)
}

func TestBackfillAggregatesPerPostFailures(t *testing.T) {
	store := newTestGraph(t, []uint{1, 2}, nil)
	feedRepo := newFakeFeedRepo()
	feedRepo.failFor[1] = errors.New("write timeout")
	postRepo := &fakePostRepo{posts: []models.Post{
		{ID: primitive.NewObjectID(), AuthorID: 2},
		{ID: primitive.NewObjectID(), AuthorID: 2},
	}}
	engine := NewFeedFanoutEngine(store, feedRepo, postRepo, testclock.NewClock(time.Now()), 2, testLogger())

	err := engine.Backfill(context.Background(), 1, 2)
	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "backfill", partial.Op)
	assert.Equal(t, 2, partial.Failed)
}

func TestRetractRemovesOnlyThatAuthor(t *testing.T) {
	store := newTestGraph(t, []uint{1, 2, 3}, [][2]uint{{1, 2}, {1, 3}})
	feedRepo := newFakeFeedRepo()
	engine := NewFeedFanoutEngine(store, feedRepo, &fakePostRepo{}, testclock.NewClock(time.Now()), 2, testLogger())

	ctx := context.Background()
	post2 := &models.Post{ID: primitive.NewObjectID(), AuthorID: 2}
	post3 := &models.Post{ID: primitive.NewObjectID(), AuthorID: 3}
	require.NoError(t, engine.Publish(ctx, post2))
	require.NoError(t, engine.Publish(ctx, post3))
	require.Len(t, feedRepo.ownerEntries(1), 2)

	require.NoError(t, engine.Retract(ctx, 1, 2))

	entries := feedRepo.ownerEntries(1)
	require.Len(t, entries, 1)
	assert.Equal(t, uint(3), entries[0].AuthorID)
	// The author's own copy of their post is untouched.
	assert.Len(t, feedRepo.ownerEntries(2), 1)
}
