package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/studylink/backend/internal/router"
	"github.com/studylink/backend/pkg/config"
	"github.com/studylink/backend/pkg/firebase"
	"github.com/studylink/backend/pkg/storage"
	"github.com/studylink/backend/pkg/validators"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	// Initialize Firebase
	ctx := context.Background()
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.StorageBucket)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	// Attachment storage rides on the Firebase bucket when one is configured
	var blobStorage storage.BlobStorage
	if firebaseApp.Bucket != nil {
		blobStorage = storage.NewFirebaseStorage(firebaseApp.Bucket, cfg.StorageBucket)
	}

	// Create Echo instance
	e := echo.New()

	// Setup global middleware
	router.SetupMiddleware(e)

	// Setup routes and dependencies
	router.SetupRoutes(e, db.Postgres, db.Mongo, firebaseApp.AuthClient, blobStorage)

	// Validator
	e.Validator = validators.NewValidator()

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
