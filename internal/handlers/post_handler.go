package handlers

import (
	"errors"
	"net/http"

	"github.com/anhct/chirper/backend/internal/models"
	"github.com/anhct/chirper/backend/internal/repositories"
	"github.com/anhct/chirper/backend/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// PostHandler handles post-related HTTP requests
type PostHandler struct {
	postRepository repositories.PostRepository
	fanout         *services.FeedFanoutEngine
	log            *logrus.Entry
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(postRepo repositories.PostRepository, fanout *services.FeedFanoutEngine, log *logrus.Entry) *PostHandler {
	return &PostHandler{postRepository: postRepo, fanout: fanout, log: log}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/:id", h.GetPost)
	g.GET("/users/:id/posts", h.GetUserPosts)
	g.DELETE("/posts/:id", h.DeletePost)
}

// CreatePost publishes a new post and fans it out to follower feeds. A
// degraded fan-out (some follower feeds missed) still returns success; the
// post itself is the primary outcome.
func (h *PostHandler) CreatePost(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	post := &models.Post{
		AuthorID:  currentUserID,
		Content:   req.Content,
		ImageURLs: req.ImageURLs,
	}
	if err := h.postRepository.CreatePost(c.Request().Context(), post); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.fanout.Publish(c.Request().Context(), post); err != nil {
		var partial *services.PartialError
		if errors.As(err, &partial) {
			h.log.WithFields(logrus.Fields{
				"post_id": post.ID.Hex(),
				"failed":  partial.Failed,
			}).Warn("post published with degraded fan-out")
		} else {
			h.log.WithError(err).Warn("post fan-out failed")
		}
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": echo.Map{"post": post}})
}

// GetPost retrieves a single post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.postRepository.GetPostByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"post": post}})
}

// GetUserPosts retrieves a page of posts authored by :id, newest first
func (h *PostHandler) GetUserPosts(c echo.Context) error {
	userID, err := parseUserID(c, "id")
	if err != nil {
		return err
	}
	page, limit := parsePagination(c)
	skip := int64((page - 1) * limit)

	posts, err := h.postRepository.ListByAuthor(c.Request().Context(), userID, skip, int64(limit))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"posts": posts}})
}

// DeletePost removes a post owned by the authenticated user
func (h *PostHandler) DeletePost(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	post, err := h.postRepository.GetPostByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	if post.AuthorID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You can only delete your own posts")
	}

	if err := h.postRepository.DeletePost(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
