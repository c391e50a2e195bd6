package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/anhct/chirper/backend/internal/graph"
	"github.com/anhct/chirper/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FollowHandler handles follow/unfollow and graph query HTTP requests
type FollowHandler struct {
	coordinator *services.RelationshipCoordinator
	suggestions *services.SuggestionEngine
	index       *graph.Index
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(coordinator *services.RelationshipCoordinator, suggestions *services.SuggestionEngine, index *graph.Index) *FollowHandler {
	return &FollowHandler{
		coordinator: coordinator,
		suggestions: suggestions,
		index:       index,
	}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:id/follow", h.FollowUser)
	g.DELETE("/users/:id/follow", h.UnfollowUser)
	g.GET("/users/:id/followers", h.GetFollowers)
	g.GET("/users/:id/following", h.GetFollowing)
	g.GET("/users/:id/follow/status", h.GetFollowStatus)
	g.GET("/users/:id/mutual", h.GetMutualConnections)
	g.GET("/users/suggestions", h.GetSuggestions)
}

// FollowUser follows a user
func (h *FollowHandler) FollowUser(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	targetID, err := parseUserID(c, "id")
	if err != nil {
		return err
	}

	if err := h.coordinator.Follow(c.Request().Context(), currentUserID, targetID); err != nil {
		return relationshipError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"following": true}})
}

// UnfollowUser unfollows a user
func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	targetID, err := parseUserID(c, "id")
	if err != nil {
		return err
	}

	if err := h.coordinator.Unfollow(c.Request().Context(), currentUserID, targetID); err != nil {
		return relationshipError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"following": false}})
}

// GetFollowers returns the users following the given user
func (h *FollowHandler) GetFollowers(c echo.Context) error {
	userID, err := parseUserID(c, "id")
	if err != nil {
		return err
	}
	users := h.index.Resolve(h.index.Followers(userID))
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"users": users}})
}

// GetFollowing returns the users the given user follows
func (h *FollowHandler) GetFollowing(c echo.Context) error {
	userID, err := parseUserID(c, "id")
	if err != nil {
		return err
	}
	users := h.index.Resolve(h.index.Following(userID))
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"users": users}})
}

// GetFollowStatus reports whether the authenticated user follows :id
func (h *FollowHandler) GetFollowStatus(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	targetID, err := parseUserID(c, "id")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"following": h.index.IsFollowing(currentUserID, targetID)},
	})
}

// GetMutualConnections returns users followed by both the authenticated user and :id
func (h *FollowHandler) GetMutualConnections(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	targetID, err := parseUserID(c, "id")
	if err != nil {
		return err
	}
	users := h.suggestions.MutualConnections(currentUserID, targetID)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"users": users}})
}

// GetSuggestions returns follow suggestions for the authenticated user
func (h *FollowHandler) GetSuggestions(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 50 {
		limit = 10
	}

	users := h.suggestions.Suggest(currentUserID, limit)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"users": users}})
}

func parseUserID(c echo.Context, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}
	return uint(id), nil
}

func relationshipError(err error) error {
	switch {
	case errors.Is(err, graph.ErrSelfFollow):
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot follow or unfollow yourself")
	case errors.Is(err, graph.ErrUnknownUser):
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
