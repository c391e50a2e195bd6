package router

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
	"github.com/anhct/chirper/backend/internal/graph"
	"github.com/anhct/chirper/backend/internal/handlers"
	"github.com/anhct/chirper/backend/internal/middleware"
	"github.com/anhct/chirper/backend/internal/models"
	"github.com/anhct/chirper/backend/internal/repositories"
	"github.com/anhct/chirper/backend/internal/services"
	"github.com/anhct/chirper/backend/pkg/config"
	"github.com/juju/clock"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
}

// SetupRoutes migrates the relational schema, rebuilds the in-memory social
// graph from the durable store, and wires all application routes. It must
// complete before the server starts accepting traffic: the graph has to hold
// a consistent snapshot before the first request reads it.
func SetupRoutes(e *echo.Echo, pgdb *gorm.DB, mgdb *mongo.Database, firebaseAuthClient *auth.Client, cfg *config.Config, logger *logrus.Logger) error {
	if err := pgdb.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.Notification{},
	); err != nil {
		return fmt.Errorf("auto migrate models: %w", err)
	}

	// --- Repositories ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	followRepo := repositories.NewPostgresFollowRepository(pgdb)
	notificationRepo := repositories.NewPostgresNotificationRepository(pgdb)
	postRepo := repositories.NewMongoPostRepository(mgdb)
	feedRepo := repositories.NewMongoFeedRepository(mgdb)
	if err := feedRepo.EnsureIndexes(context.Background()); err != nil {
		return fmt.Errorf("ensure feed indexes: %w", err)
	}

	// --- Social graph: load once, then maintain incrementally ---
	edgeStore := graph.NewEdgeStore()
	index := graph.NewIndex(edgeStore)
	loader := graph.NewLoader(edgeStore, index, userRepo, followRepo, logger.WithField("component", "graph-loader"))
	if err := loader.Load(); err != nil {
		return fmt.Errorf("load social graph: %w", err)
	}

	// --- Services ---
	fanout := services.NewFeedFanoutEngine(
		edgeStore, feedRepo, postRepo,
		clock.WallClock, cfg.FanoutWorkers,
		logger.WithField("component", "fanout"),
	)
	coordinator := services.NewRelationshipCoordinator(
		edgeStore, index, followRepo, userRepo, notificationRepo, fanout,
		logger.WithField("component", "relationships"),
	)
	suggestions := services.NewSuggestionEngine(index)

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(userRepo, index, firebaseAuthClient, cfg.JWTSecret)
	authHandler.RegisterAuthRoutes(authGroup)

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))

	userHandler := handlers.NewUserHandler(userRepo, followRepo)
	userHandler.RegisterProfileRoutes(api)

	followHandler := handlers.NewFollowHandler(coordinator, suggestions, index)
	followHandler.RegisterFollowRoutes(api)

	postHandler := handlers.NewPostHandler(postRepo, fanout, logger.WithField("component", "posts"))
	postHandler.RegisterPostRoutes(api)

	feedHandler := handlers.NewFeedHandler(feedRepo, postRepo, index)
	feedHandler.RegisterFeedRoutes(api)

	notificationHandler := handlers.NewNotificationHandler(notificationRepo)
	notificationHandler.RegisterNotificationRoutes(api)

	logger.Info("all routes configured")
	return nil
}
