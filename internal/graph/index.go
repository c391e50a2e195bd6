package graph

import (
	"sync"

	"github.com/anhct/chirper/backend/internal/models"
)

// Index wraps an EdgeStore with identity resolution and traversal queries.
// It maps user IDs to compact user records and answers the read-side graph
// questions (neighbors, two-hop, mutuals). The Index never mutates edges;
// relationship changes go through the coordinator.
type Index struct {
	edges *EdgeStore

	mu    sync.RWMutex
	users map[uint]models.UserCompact
}

// NewIndex creates an Index over the given edge store.
func NewIndex(edges *EdgeStore) *Index {
	return &Index{
		edges: edges,
		users: make(map[uint]models.UserCompact),
	}
}

// AddUser registers a user record with the index and the underlying edge
// store. Records are inserted lazily on first reference and never removed.
func (ix *Index) AddUser(u models.UserCompact) {
	ix.edges.AddUser(u.ID)
	ix.mu.Lock()
	ix.users[u.ID] = u
	ix.mu.Unlock()
}

// Known reports whether a record exists for the given ID.
func (ix *Index) Known(id uint) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.users[id]
	return ok
}

// IsFollowing reports whether follower currently follows following.
func (ix *Index) IsFollowing(follower, following uint) bool {
	return ix.edges.HasEdge(follower, following)
}

// Following returns the IDs the user follows.
func (ix *Index) Following(id uint) []uint {
	return ix.edges.Outgoing(id)
}

// Followers returns the IDs following the user.
func (ix *Index) Followers(id uint) []uint {
	return ix.edges.Incoming(id)
}

// TwoHop returns the IDs reachable by exactly two outgoing edges from the
// given user, excluding the user itself and anyone it already follows.
// Multiple paths to the same node collapse; order is unspecified.
func (ix *Index) TwoHop(id uint) []uint {
	firstHop := ix.edges.Outgoing(id)
	exclude := make(map[uint]struct{}, len(firstHop)+1)
	exclude[id] = struct{}{}
	for _, f := range firstHop {
		exclude[f] = struct{}{}
	}

	seen := make(map[uint]struct{})
	var result []uint
	for _, f := range firstHop {
		for _, g := range ix.edges.Outgoing(f) {
			if _, skip := exclude[g]; skip {
				continue
			}
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			result = append(result, g)
		}
	}
	return result
}

// Mutual returns the IDs followed by both users.
func (ix *Index) Mutual(a, b uint) []uint {
	outB := ix.edges.Outgoing(b)
	setB := make(map[uint]struct{}, len(outB))
	for _, id := range outB {
		setB[id] = struct{}{}
	}

	var mutual []uint
	for _, id := range ix.edges.Outgoing(a) {
		if _, ok := setB[id]; ok {
			mutual = append(mutual, id)
		}
	}
	return mutual
}

// Resolve maps IDs to their user records, silently dropping IDs with no
// known record.
func (ix *Index) Resolve(ids []uint) []models.UserCompact {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	users := make([]models.UserCompact, 0, len(ids))
	for _, id := range ids {
		if u, ok := ix.users[id]; ok {
			users = append(users, u)
		}
	}
	return users
}
