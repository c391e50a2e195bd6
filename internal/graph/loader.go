package graph

import (
	"fmt"

	"github.com/anhct/chirper/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// UserSource yields every persisted user record.
type UserSource interface {
	GetUsers() ([]models.User, error)
}

// FollowSource yields every persisted follow relationship.
type FollowSource interface {
	GetAllFollows() ([]models.Follow, error)
}

// Loader rebuilds the in-memory graph from the durable store. It runs once,
// before the graph is exposed to traffic: all users first, then all edges.
// An edge referencing a user that was not loaded means the stored snapshot
// is inconsistent, which aborts startup rather than being papered over.
type Loader struct {
	store   *EdgeStore
	index   *Index
	users   UserSource
	follows FollowSource
	log     *logrus.Entry
}

// NewLoader creates a Loader populating the given store and index from the
// given sources.
func NewLoader(store *EdgeStore, index *Index, users UserSource, follows FollowSource, log *logrus.Entry) *Loader {
	return &Loader{store: store, index: index, users: users, follows: follows, log: log}
}

// Load reads the full user and follow tables and populates the graph.
func (l *Loader) Load() error {
	users, err := l.users.GetUsers()
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	for i := range users {
		l.index.AddUser(users[i].ToCompact())
	}

	follows, err := l.follows.GetAllFollows()
	if err != nil {
		return fmt.Errorf("load follows: %w", err)
	}
	for _, f := range follows {
		if err := l.store.AddEdge(f.FollowerID, f.FollowingID); err != nil {
			return fmt.Errorf("load edge %d->%d: %w", f.FollowerID, f.FollowingID, err)
		}
	}

	l.log.WithFields(logrus.Fields{
		"users": len(users),
		"edges": len(follows),
	}).Info("social graph loaded")
	return nil
}
