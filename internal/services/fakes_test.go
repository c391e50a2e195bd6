package services

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/anhct/chirper/backend/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l.WithField("component", "test")
}

// fakeUserRepo serves GetUserByID from a fixed map; everything else is unused
// by the services under test.
type fakeUserRepo struct {
	users map[uint]models.User
}

func (f *fakeUserRepo) CreateUser(user *models.User) error { return nil }

func (f *fakeUserRepo) GetUserByID(id uint) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (f *fakeUserRepo) GetUserByEmail(email string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetUsers() ([]models.User, error) {
	users := make([]models.User, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, u)
	}
	return users, nil
}

func (f *fakeUserRepo) UpdateUser(user *models.User) error { return nil }

func (f *fakeUserRepo) SearchUsers(query string) ([]models.User, error) { return nil, nil }

// fakeFollowRepo records created and deleted edges and can be told to fail.
type fakeFollowRepo struct {
	mu      sync.Mutex
	created []models.Follow
	deleted []models.Follow

	createErr error
	deleteErr error
}

func (f *fakeFollowRepo) CreateFollow(follow *models.Follow) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	f.created = append(f.created, *follow)
	f.mu.Unlock()
	return nil
}

func (f *fakeFollowRepo) DeleteFollow(followerID, followingID uint) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, models.Follow{FollowerID: followerID, FollowingID: followingID})
	f.mu.Unlock()
	return nil
}

func (f *fakeFollowRepo) IsFollowing(followerID, followingID uint) (bool, error) {
	return false, nil
}

func (f *fakeFollowRepo) GetAllFollows() ([]models.Follow, error) { return nil, nil }

func (f *fakeFollowRepo) GetFollowersCount(userID uint) (int64, error) { return 0, nil }

func (f *fakeFollowRepo) GetFollowingCount(userID uint) (int64, error) { return 0, nil }

// fakeFeedRepo keeps entries in a map keyed like the unique Mongo index, so
// upserts are naturally idempotent. failFor injects per-owner write failures.
type fakeFeedRepo struct {
	mu      sync.Mutex
	entries map[string]models.FeedEntry
	failFor map[uint]error
	upserts int
}

func newFakeFeedRepo() *fakeFeedRepo {
	return &fakeFeedRepo{
		entries: make(map[string]models.FeedEntry),
		failFor: make(map[uint]error),
	}
}

func feedKey(ownerID uint, postID primitive.ObjectID) string {
	return fmt.Sprintf("%d/%s", ownerID, postID.Hex())
}

func (f *fakeFeedRepo) UpsertEntry(ctx context.Context, entry *models.FeedEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if err := f.failFor[entry.OwnerID]; err != nil {
		return err
	}
	key := feedKey(entry.OwnerID, entry.PostID)
	if _, exists := f.entries[key]; exists {
		return nil
	}
	f.entries[key] = *entry
	return nil
}

func (f *fakeFeedRepo) DeleteByOwnerAndAuthor(ctx context.Context, ownerID, authorID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[ownerID]; err != nil {
		return 0, err
	}
	var removed int64
	for key, entry := range f.entries {
		if entry.OwnerID == ownerID && entry.AuthorID == authorID {
			delete(f.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeFeedRepo) ListByOwner(ctx context.Context, ownerID uint, skip, limit int64) ([]models.FeedEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []models.FeedEntry
	for _, entry := range f.entries {
		if entry.OwnerID == ownerID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (f *fakeFeedRepo) CountByOwner(ctx context.Context, ownerID uint) (int64, error) {
	entries, _ := f.ListByOwner(ctx, ownerID, 0, 0)
	return int64(len(entries)), nil
}

func (f *fakeFeedRepo) ownerEntries(ownerID uint) []models.FeedEntry {
	entries, _ := f.ListByOwner(context.Background(), ownerID, 0, 0)
	return entries
}

// fakePostRepo serves ListByAuthor from a fixed slice.
type fakePostRepo struct {
	posts   []models.Post
	listErr error
}

func (f *fakePostRepo) CreatePost(ctx context.Context, post *models.Post) error { return nil }

func (f *fakePostRepo) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	return nil, nil
}

func (f *fakePostRepo) ListByAuthor(ctx context.Context, authorID uint, skip, limit int64) ([]models.Post, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var posts []models.Post
	for _, p := range f.posts {
		if p.AuthorID == authorID {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func (f *fakePostRepo) GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	return nil, nil
}

func (f *fakePostRepo) DeletePost(ctx context.Context, id string) error { return nil }

// blockingPostRepo parks ListByAuthor for one author until released, to
// observe what else can proceed in the meantime.
type blockingPostRepo struct {
	fakePostRepo
	blockAuthor uint
	entered     chan struct{}
	release     chan struct{}
	once        sync.Once
}

func (b *blockingPostRepo) ListByAuthor(ctx context.Context, authorID uint, skip, limit int64) ([]models.Post, error) {
	if authorID == b.blockAuthor {
		b.once.Do(func() { close(b.entered) })
		<-b.release
	}
	return b.fakePostRepo.ListByAuthor(ctx, authorID, skip, limit)
}

// fakeNotifRepo records created notifications.
type fakeNotifRepo struct {
	mu      sync.Mutex
	created []models.Notification
}

func (f *fakeNotifRepo) CreateNotification(n *models.Notification) error {
	f.mu.Lock()
	f.created = append(f.created, *n)
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifRepo) GetByRecipientID(recipientID uint, page, limit int) ([]models.Notification, int64, error) {
	return nil, 0, nil
}

func (f *fakeNotifRepo) GetUnreadCount(recipientID uint) (int64, error) { return 0, nil }

func (f *fakeNotifRepo) MarkAllAsRead(recipientID uint) error { return nil }
