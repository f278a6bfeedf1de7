package main

import (
	"fmt"
	"log"
	"net/http"

	"studybuddy/backend/internal/auth"
	"studybuddy/backend/internal/config"
	"studybuddy/backend/internal/database"
	"studybuddy/backend/internal/handler"
	"studybuddy/backend/internal/hub"
	"studybuddy/backend/internal/mailer"
	"studybuddy/backend/internal/presence"
	"studybuddy/backend/internal/session"
	"studybuddy/backend/internal/store"
	"studybuddy/backend/internal/ws"

	"github.com/gin-gonic/gin"

	// Swagger imports
	_ "studybuddy/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// @title           StudyBuddy API
// @version         1.0
// @description     This is the API for the StudyBuddy service.
// @host            localhost:8080
// @BasePath        /api
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	// Connect to the database
	database.Connect(config.AppConfig.DatabaseURL)

	// Lobby lifecycle wiring: one store, one registry, one hub, one
	// coordinator per process.
	lobbyStore := store.NewGormStore(database.DB)
	registry := session.NewRegistry()
	fanout := hub.New()
	coordinator := presence.NewCoordinator(registry, lobbyStore, fanout)

	authHandler := handler.NewAuthHandler(mailer.FromConfig(config.AppConfig))
	lobbyHandler := handler.NewLobbyHandler(lobbyStore)

	router := gin.Default()

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API is working"})
	})

	// Lobby WebSocket endpoint
	router.GET("/ws", ws.Serve(fanout, coordinator))

	api := router.Group("/api")
	{
		// Auth routes
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.GET("/verify-email", authHandler.VerifyEmail)
			authRoutes.POST("/forgot-password", authHandler.ForgotPassword)
			authRoutes.POST("/reset-password", authHandler.ResetPassword)
		}

		// User routes (protected)
		userRoutes := api.Group("/user")
		userRoutes.Use(auth.AuthMiddleware())
		{
			userRoutes.GET("/getuser", handler.GetUser)
			userRoutes.PUT("/profile", handler.UpdateProfile)
		}

		// School lookup (protected)
		schoolRoutes := api.Group("/schools")
		schoolRoutes.Use(auth.AuthMiddleware())
		{
			schoolRoutes.GET("/search", handler.SearchSchools)
		}

		// Lobby routes (protected)
		lobbyRoutes := api.Group("/lobbies")
		lobbyRoutes.Use(auth.AuthMiddleware())
		{
			lobbyRoutes.POST("/create", lobbyHandler.CreateLobby)
			lobbyRoutes.GET("/list", lobbyHandler.ListLobbies)
			lobbyRoutes.POST("/join", lobbyHandler.JoinLobby)
		}
	}

	fmt.Printf("Server is running on %s\n", config.AppConfig.ServerPort)
	fmt.Println("Swagger UI is available at http://localhost:8080/swagger/index.html")
	log.Fatal(router.Run(config.AppConfig.ServerPort))
}
