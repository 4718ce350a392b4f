package router

import (
	"log"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/studylink/backend/internal/access"
	"github.com/studylink/backend/internal/handlers"
	"github.com/studylink/backend/internal/middleware"
	"github.com/studylink/backend/internal/models"
	"github.com/studylink/backend/internal/realtime"
	"github.com/studylink/backend/internal/repositories"
	"github.com/studylink/backend/pkg/storage"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, pgdb *gorm.DB, mgClient *mongo.Client, firebaseAuthClient *auth.Client, blobStorage storage.BlobStorage) {
	// AutoMigrate PostgreSQL models
	err := pgdb.AutoMigrate(
		&models.User{},
		&models.FriendRequest{},
		&models.Relationship{},
		&models.Chat{},
		&models.Group{},
		&models.GroupMember{},
	)
	if err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Realtime hub: one instance per process, injected everywhere ---
	hub := realtime.NewHub()

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	relationshipRepo := repositories.NewPostgresRelationshipRepository(pgdb, hub)
	chatRepo := repositories.NewPostgresChatRepository(pgdb)
	memberRepo := repositories.NewPostgresGroupMemberRepository(pgdb)
	messageRepo := repositories.NewMongoMessageRepository(mgClient.Database("studylink"))

	gate := access.NewGate(memberRepo)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(userRepo, firebaseAuthClient)
	authHandler.RegisterAuthRoutes(authGroup)
	log.Println("Auth routes configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware())
	log.Println("JWT authentication middleware applied to /api/v1 group.")

	// User lookup routes
	userHandler := handlers.NewUserHandler(userRepo)
	userHandler.RegisterUserRoutes(api)
	log.Println("User routes configured.")

	// Friendship routes
	friendshipHandler := handlers.NewFriendshipHandler(relationshipRepo, userRepo)
	friendshipHandler.RegisterFriendshipRoutes(api)
	log.Println("Friendship routes configured.")

	// Chat routes
	chatHandler := handlers.NewChatHandler(chatRepo, messageRepo, userRepo, relationshipRepo, memberRepo, gate)
	chatHandler.RegisterChatRoutes(api)
	log.Println("Chat routes configured.")

	// Message routes
	messageHandler := handlers.NewMessageHandler(chatRepo, messageRepo, userRepo, gate, blobStorage, hub)
	messageHandler.RegisterMessageRoutes(api)
	log.Println("Message routes configured.")

	// Websocket endpoint
	wsHandler := handlers.NewWSHandler(hub, chatRepo, gate)
	wsHandler.RegisterWSRoutes(e)
	log.Println("Websocket endpoint configured.")

	log.Println("All routes configured.")
}
