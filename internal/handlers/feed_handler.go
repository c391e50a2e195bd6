package handlers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/anhct/chirper/backend/internal/graph"
	"github.com/anhct/chirper/backend/internal/models"
	"github.com/anhct/chirper/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeedHandler serves the materialized per-user timeline
type FeedHandler struct {
	feedRepository repositories.FeedRepository
	postRepository repositories.PostRepository
	index          *graph.Index
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(feedRepo repositories.FeedRepository, postRepo repositories.PostRepository, index *graph.Index) *FeedHandler {
	return &FeedHandler{
		feedRepository: feedRepo,
		postRepository: postRepo,
		index:          index,
	}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
}

// FeedItem is a feed entry joined with its post and author record
type FeedItem struct {
	Post       models.Post        `json:"post"`
	Author     models.UserCompact `json:"author"`
	InsertedAt time.Time          `json:"inserted_at"`
}

// GetFeed returns the authenticated user's timeline, newest first. Entries
// were pushed here at publish/follow time, so this is a plain read of the
// feed_entries collection joined with the posts they reference.
func (h *FeedHandler) GetFeed(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	page, limit := parsePagination(c)
	skip := int64((page - 1) * limit)
	ctx := c.Request().Context()

	entries, err := h.feedRepository.ListByOwner(ctx, currentUserID, skip, int64(limit))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	totalItems, err := h.feedRepository.CountByOwner(ctx, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	postIDs := make([]primitive.ObjectID, len(entries))
	authorIDs := make([]uint, len(entries))
	for i, e := range entries {
		postIDs[i] = e.PostID
		authorIDs[i] = e.AuthorID
	}

	posts, err := h.postRepository.GetPostsByIDs(ctx, postIDs)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	postMap := make(map[primitive.ObjectID]models.Post, len(posts))
	for _, p := range posts {
		postMap[p.ID] = p
	}

	authorMap := make(map[uint]models.UserCompact)
	for _, u := range h.index.Resolve(authorIDs) {
		authorMap[u.ID] = u
	}

	items := make([]FeedItem, 0, len(entries))
	for _, e := range entries {
		post, ok := postMap[e.PostID]
		if !ok {
			// Post deleted after fan-out; skip the dangling entry.
			continue
		}
		items = append(items, FeedItem{
			Post:       post,
			Author:     authorMap[e.AuthorID],
			InsertedAt: e.InsertedAt,
		})
	}

	totalPages := int(math.Ceil(float64(totalItems) / float64(limit)))

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"items": items,
		},
		"meta": echo.Map{
			"currentPage":     page,
			"totalPages":      totalPages,
			"totalItems":      totalItems,
			"itemsPerPage":    limit,
			"hasNextPage":     int64(page) < int64(totalPages),
			"hasPreviousPage": page > 1,
		},
	})
}

func parsePagination(c echo.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}
	return page, limit
}
