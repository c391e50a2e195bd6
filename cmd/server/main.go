package main

import (
	"context"
	"log"

	"firebase.google.com/go/v4/auth"
	"github.com/anhct/chirper/backend/internal/router"
	"github.com/anhct/chirper/backend/pkg/config"
	"github.com/anhct/chirper/backend/pkg/firebase"
	"github.com/anhct/chirper/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger := logrus.New()
	if cfg.Env == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	// Firebase is optional; without credentials the firebase-login route is disabled.
	var firebaseAuthClient *auth.Client
	if cfg.FirebaseCredentialsPath != "" {
		firebaseApp, err := firebase.InitFirebase(context.Background(), cfg.FirebaseCredentialsPath)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
		firebaseAuthClient = firebaseApp.AuthClient
	} else {
		logger.Warn("FIREBASE_CREDENTIALS_PATH not set, firebase login disabled")
	}

	// Create Echo instance
	e := echo.New()
	e.Validator = validators.NewValidator()

	// Setup global middleware
	router.SetupMiddleware(e)

	// Setup routes, migrations, and the in-memory social graph
	if err := router.SetupRoutes(e, db.Postgres, db.Mongo.Database(cfg.MongoDatabase), firebaseAuthClient, cfg, logger); err != nil {
		log.Fatalf("Failed to set up server: %v", err)
	}

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
