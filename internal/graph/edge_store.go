package graph

import (
	"fmt"
	"sync"
)

// EdgeStore is the in-memory adjacency structure for the follow graph. Every
// edge lives in two views: the follower's outgoing set and the followee's
// incoming set. Both views move together under a single write lock, so no
// reader can ever observe one side of an edge without the other. Readers take
// the shared lock and copy, never exposing the live maps.
type EdgeStore struct {
	mu       sync.RWMutex
	outgoing map[uint]map[uint]struct{} // follower -> followees
	incoming map[uint]map[uint]struct{} // followee -> followers
}

// NewEdgeStore creates an empty edge store.
func NewEdgeStore() *EdgeStore {
	return &EdgeStore{
		outgoing: make(map[uint]map[uint]struct{}),
		incoming: make(map[uint]map[uint]struct{}),
	}
}

// AddUser registers a node in the graph. Idempotent; adding a user that is
// already present is a no-op.
func (s *EdgeStore) AddUser(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outgoing[id]; ok {
		return
	}
	s.outgoing[id] = make(map[uint]struct{})
	s.incoming[id] = make(map[uint]struct{})
}

// HasUser reports whether the node is present in the graph.
func (s *EdgeStore) HasUser(id uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.outgoing[id]
	return ok
}

// AddEdge inserts a directed edge from follower to following. Both endpoints
// must already be registered and self-loops are rejected. Inserting an edge
// that already exists is a no-op.
func (s *EdgeStore) AddEdge(follower, following uint) error {
	if follower == following {
		return fmt.Errorf("add edge %d->%d: %w", follower, following, ErrInvalidEdge)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outgoing[follower]; !ok {
		return fmt.Errorf("add edge %d->%d: follower not in graph: %w", follower, following, ErrInvalidEdge)
	}
	if _, ok := s.outgoing[following]; !ok {
		return fmt.Errorf("add edge %d->%d: followee not in graph: %w", follower, following, ErrInvalidEdge)
	}
	s.outgoing[follower][following] = struct{}{}
	s.incoming[following][follower] = struct{}{}
	return nil
}

// RemoveEdge deletes the directed edge from follower to following from both
// views. Removing an absent edge is a no-op.
func (s *EdgeStore) RemoveEdge(follower, following uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.outgoing[follower]; ok {
		delete(set, following)
	}
	if set, ok := s.incoming[following]; ok {
		delete(set, follower)
	}
}

// HasEdge reports whether follower currently follows following.
func (s *EdgeStore) HasEdge(follower, following uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.outgoing[follower][following]
	return ok
}

// Outgoing returns a snapshot of the IDs that the given user follows. The
// returned slice is a copy; callers may retain and iterate it freely.
func (s *EdgeStore) Outgoing(id uint) []uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.outgoing[id])
}

// Incoming returns a snapshot of the IDs that follow the given user.
func (s *EdgeStore) Incoming(id uint) []uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.incoming[id])
}

func collect(set map[uint]struct{}) []uint {
	if len(set) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}
