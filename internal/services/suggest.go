package services

import (
	"math/rand"

	"github.com/anhct/chirper/backend/internal/graph"
	"github.com/anhct/chirper/backend/internal/models"
)

// SuggestionEngine computes friends-of-friends follow candidates and mutual
// connections. It only reads the graph, never mutates it.
type SuggestionEngine struct {
	index *graph.Index
}

// NewSuggestionEngine creates a SuggestionEngine over the given index.
func NewSuggestionEngine(index *graph.Index) *SuggestionEngine {
	return &SuggestionEngine{index: index}
}

// Suggest returns at most maxCount users reachable by exactly two follow
// hops from userID. The user itself and anyone it already follows are
// excluded. Selection among surplus candidates is random; no ordering is
// promised, but no candidate appears twice.
func (s *SuggestionEngine) Suggest(userID uint, maxCount int) []models.UserCompact {
	if maxCount <= 0 {
		return nil
	}

	candidates := s.index.TwoHop(userID)

	// TwoHop already excludes self and the first hop; re-check here so a
	// future traversal change cannot leak either into suggestions.
	following := s.index.Following(userID)
	exclude := make(map[uint]struct{}, len(following)+1)
	exclude[userID] = struct{}{}
	for _, id := range following {
		exclude[id] = struct{}{}
	}
	filtered := candidates[:0]
	for _, id := range candidates {
		if _, skip := exclude[id]; !skip {
			filtered = append(filtered, id)
		}
	}

	rand.Shuffle(len(filtered), func(i, j int) {
		filtered[i], filtered[j] = filtered[j], filtered[i]
	})
	if len(filtered) > maxCount {
		filtered = filtered[:maxCount]
	}
	return s.index.Resolve(filtered)
}

// MutualConnections returns the users followed by both a and b.
func (s *SuggestionEngine) MutualConnections(a, b uint) []models.UserCompact {
	return s.index.Resolve(s.index.Mutual(a, b))
}
